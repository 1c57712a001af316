// Package httputil fetches small remote assets, such as site icons, with
// retries and an on-disk response cache.
//
// [Client.Get] retries network errors, 429 and 5xx responses with
// exponential backoff through [Retry]. Other 4xx responses fail at once.
// Successful bodies are stored in an optional [Cache] keyed by URL:
//
//	c, _ := httputil.NewCache("", 24*time.Hour)
//	client := httputil.NewClient(httputil.WithCache(c.Namespace("icon:")))
//	resp, err := client.Get(ctx, "https://example.com/apple-touch-icon.png")
//
// [Retry] and [RetryWithBackoff] are also used on their own for other
// transient failures, such as connecting to Redis.
package httputil
