package capture

import (
	"context"
	"net/url"

	"github.com/matzehuels/shotframe/pkg/asset"
	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/httputil"
)

// IconFetcher downloads the touch icon a page advertises.
type IconFetcher struct {
	client *httputil.Client
}

// NewIconFetcher returns a fetcher using client, or a default client when nil.
func NewIconFetcher(client *httputil.Client) *IconFetcher {
	if client == nil {
		client = httputil.NewClient()
	}
	return &IconFetcher{client: client}
}

// Fetch resolves href against pageURL and downloads it. The body must be a
// PNG, JPEG or WEBP image.
func (f *IconFetcher) Fetch(ctx context.Context, pageURL, href string) (asset.Raster, error) {
	iconURL, err := ResolveIconURL(pageURL, href)
	if err != nil {
		return asset.Raster{}, err
	}
	resp, err := f.client.Get(ctx, iconURL)
	if err != nil {
		return asset.Raster{}, err
	}
	return asset.FromBytes(resp.Body, "")
}

// ResolveIconURL resolves an icon href, which may be relative, against the
// URL of the page that declared it.
func ResolveIconURL(pageURL, href string) (string, error) {
	if href == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "empty icon url")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "icon url %q", href)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		return "", errors.New(errors.ErrCodeInvalidInput, "cannot resolve icon %q against %q", href, pageURL)
	}
	return base.ResolveReference(ref).String(), nil
}
