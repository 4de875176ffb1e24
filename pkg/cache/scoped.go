package cache

// ScopedKeyer prefixes every key of an inner keyer, so several projects can
// share one Redis database without seeing each other's entries.
//
//	k := cache.NewScopedKeyer(nil, "project:motor-driver:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner (the default keyer when nil) with prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// LayoutKey implements [Keyer].
func (k *ScopedKeyer) LayoutKey(designHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(designHash, opts)
}
