package cache

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey identifies a routed layout of one design under one
	// configuration.
	LayoutKey(designHash string, opts LayoutKeyOpts) string
}

// LayoutKeyOpts are the inputs besides the design that change a layout.
type LayoutKeyOpts struct {
	// ConfigHash is the hash of the canonical configuration.
	ConfigHash string `json:"config"`
	// Version is the tool version; layouts from other versions miss.
	Version string `json:"version,omitempty"`
}

// DefaultKeyer produces plain, unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// LayoutKey implements [Keyer].
func (DefaultKeyer) LayoutKey(designHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", designHash, opts)
}
