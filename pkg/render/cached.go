package render

import (
	"context"

	"github.com/matzehuels/shotframe/pkg/cache"
	"github.com/matzehuels/shotframe/pkg/observability"
)

// Cached memoizes a Renderer keyed by the document hash and width.
// Cache failures fall through to the inner renderer.
type Cached struct {
	inner Renderer
	cache cache.Cache
	keyer cache.Keyer
}

// NewCached wraps inner. A nil cache disables memoization; a nil keyer
// means the default keyer.
func NewCached(inner Renderer, c cache.Cache, k cache.Keyer) *Cached {
	if c == nil {
		c = cache.NewNullCache()
	}
	if k == nil {
		k = cache.NewDefaultKeyer()
	}
	return &Cached{inner: inner, cache: c, keyer: k}
}

// RenderPNG implements Renderer.
func (r *Cached) RenderPNG(ctx context.Context, svg []byte, width int) ([]byte, error) {
	key := r.keyer.RenderKey(cache.Hash(svg), cache.RenderKeyOpts{Width: width, Format: "png"})
	hooks := observability.Cache()

	if data, hit, err := r.cache.Get(ctx, key); err == nil && hit {
		hooks.OnCacheHit(ctx, "render")
		return data, nil
	}
	hooks.OnCacheMiss(ctx, "render")

	data, err := r.inner.RenderPNG(ctx, svg, width)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, data, cache.TTLRender); err == nil {
		hooks.OnCacheSet(ctx, "render", len(data))
	}
	return data, nil
}

var _ Renderer = (*Cached)(nil)
