package cache

// ScopedKeyer prefixes every key of an inner Keyer.
//
// The preview server scopes its keys so that it can share a Redis instance
// with CLI runs without mixing entries:
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "serve:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// A nil inner keyer means DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RenderKey implements Keyer.
func (k *ScopedKeyer) RenderKey(svgHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(svgHash, opts)
}

// SquareKey implements Keyer.
func (k *ScopedKeyer) SquareKey(imageHash string, opts SquareKeyOpts) string {
	return k.prefix + k.inner.SquareKey(imageHash, opts)
}

// IconKey implements Keyer.
func (k *ScopedKeyer) IconKey(url string) string {
	return k.prefix + k.inner.IconKey(url)
}
