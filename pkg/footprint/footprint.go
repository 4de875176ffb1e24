package footprint

import (
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

// Definition is one library footprint.
type Definition struct {
	Name      string        `json:"name" yaml:"name"`
	Width     float64       `json:"width" yaml:"width"`
	Height    float64       `json:"height" yaml:"height"`
	Courtyard float64       `json:"courtyard,omitempty" yaml:"courtyard,omitempty"`
	Pads      []netlist.Pin `json:"pads" yaml:"pads"`
}

// Footprint returns the outline part of the definition.
func (d Definition) Footprint() netlist.Footprint {
	return netlist.Footprint{Name: d.Name, Width: d.Width, Height: d.Height, Courtyard: d.Courtyard}
}

// Validate checks dimensions and pad ids.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New(errors.ErrCodeInvalidInput, "footprint without name")
	}
	if d.Width <= 0 || d.Height <= 0 || d.Courtyard < 0 {
		return errors.New(errors.ErrCodeInvalidGeometry, "footprint %s: invalid size %gx%g courtyard %g",
			d.Name, d.Width, d.Height, d.Courtyard).About(d.Name)
	}
	seen := make(map[string]bool, len(d.Pads))
	for _, p := range d.Pads {
		if p.ID == "" {
			return errors.New(errors.ErrCodeInvalidGeometry, "footprint %s: pad without id", d.Name).About(d.Name)
		}
		if seen[p.ID] {
			return errors.New(errors.ErrCodeInvalidGeometry, "footprint %s: duplicate pad %s", d.Name, p.ID).About(d.Name)
		}
		seen[p.ID] = true
	}
	return nil
}

// Apply sets the footprint of c. Pins declared on the component are kept;
// a component without pins gets a copy of the library pads.
func (d Definition) Apply(c *netlist.Component) {
	c.Footprint = d.Footprint()
	if len(c.Pins) == 0 {
		c.Pins = append([]netlist.Pin(nil), d.Pads...)
	}
}
