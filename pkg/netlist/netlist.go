package netlist

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
)

// PinRole is the electrical role of a pin.
type PinRole string

const (
	RoleSignal  PinRole = "signal"
	RolePower   PinRole = "power"
	RoleGround  PinRole = "ground"
	RolePassive PinRole = "passive"
)

// PadSide selects the copper layers a pad exists on.
type PadSide string

const (
	// SideThrough pads are plated through and present on every layer.
	SideThrough PadSide = ""
	// SideTop pads exist only on the first copper layer.
	SideTop PadSide = "top"
	// SideBottom pads exist only on the last copper layer.
	SideBottom PadSide = "bottom"
)

// Pin is a connection point on a footprint.
type Pin struct {
	ID     string     `json:"id" yaml:"id"`
	Offset geom.Point `json:"offset" yaml:"offset"`
	Role   PinRole    `json:"role,omitempty" yaml:"role,omitempty"`
	Side   PadSide    `json:"side,omitempty" yaml:"side,omitempty"`
}

// Footprint is the physical outline of a component. Width and Height are the
// body extent in the unrotated frame; Courtyard is the keep-out margin added
// on every side.
type Footprint struct {
	Name      string  `json:"name,omitempty" yaml:"name,omitempty"`
	Width     float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height    float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Courtyard float64 `json:"courtyard,omitempty" yaml:"courtyard,omitempty"`
}

// Resolved reports whether the footprint has usable dimensions.
func (f Footprint) Resolved() bool { return f.Width > 0 && f.Height > 0 }

// Placement is the position of a component's footprint centre.
type Placement struct {
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	Rotation int     `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	// Placed marks a suggested position; components without one are
	// positioned freely by the placement engine.
	Placed bool `json:"placed,omitempty" yaml:"placed,omitempty"`
	// Fixed components are never moved by the placement engine.
	Fixed bool `json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

// Center returns the placement as a point.
func (p Placement) Center() geom.Point { return geom.Pt(p.X, p.Y) }

// Component classes used by the placement thermal/EMI heuristics.
const (
	ClassPower     = "power"     // regulators, high-current switches
	ClassThermal   = "thermal"   // parts that dissipate significant heat
	ClassSensitive = "sensitive" // oscillators, analog front ends
)

// Component is a placed footprint with pins.
type Component struct {
	Ref       string    `json:"ref" yaml:"ref"`
	Kind      string    `json:"type,omitempty" yaml:"type,omitempty"`
	Value     string    `json:"value,omitempty" yaml:"value,omitempty"`
	Class     string    `json:"class,omitempty" yaml:"class,omitempty"`
	Footprint Footprint `json:"footprint" yaml:"footprint"`
	Placement Placement `json:"placement" yaml:"placement"`
	Pins      []Pin     `json:"pins,omitempty" yaml:"pins,omitempty"`
}

// Pin returns the pin with the given id.
func (c *Component) Pin(id string) (Pin, bool) {
	for _, p := range c.Pins {
		if p.ID == id {
			return p, true
		}
	}
	return Pin{}, false
}

// Courtyard returns the keep-out rectangle of the component at its current
// placement, after rotation.
func (c *Component) Courtyard() geom.Rect {
	return c.CourtyardAt(c.Placement.Center(), c.Placement.Rotation)
}

// CourtyardAt returns the keep-out rectangle the component would occupy at
// the given centre and rotation.
func (c *Component) CourtyardAt(center geom.Point, rotation int) geom.Rect {
	w, h := geom.RotatedSize(c.Footprint.Width, c.Footprint.Height, rotation)
	return geom.RectAround(center, w, h).Expand(c.Footprint.Courtyard)
}

// PinPosition returns the absolute board coordinate of a pin: placement
// centre plus the pin offset rotated by the placement rotation.
func (c *Component) PinPosition(p Pin) geom.Point {
	return c.Placement.Center().Add(geom.Rotate(p.Offset, c.Placement.Rotation))
}

// Endpoint names one pin of one component.
type Endpoint struct {
	Ref string `json:"ref" yaml:"ref"`
	Pin string `json:"pin" yaml:"pin"`
}

// String returns the "REF.PIN" notation.
func (e Endpoint) String() string { return e.Ref + "." + e.Pin }

// ParseEndpoint parses "REF.PIN" notation. The pin id is everything after
// the first dot so pins like "A.1" survive.
func ParseEndpoint(s string) (Endpoint, error) {
	ref, pin, ok := strings.Cut(s, ".")
	if !ok || ref == "" || pin == "" {
		return Endpoint{}, errors.New(errors.ErrCodeInvalidInput, "invalid endpoint %q (want REF.PIN)", s)
	}
	return Endpoint{Ref: ref, Pin: pin}, nil
}

// Net classes. Power and ground nets are ignored when clustering components.
const (
	NetSignal = "signal"
	NetPower  = "power"
	NetGround = "ground"
)

// Net is a set of pins that must be electrically connected.
type Net struct {
	Name      string     `json:"name" yaml:"name"`
	Endpoints []Endpoint `json:"endpoints" yaml:"endpoints"`
	Class     string     `json:"class,omitempty" yaml:"class,omitempty"`
	// Priority orders nets within the same tier; higher routes first.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
	// Critical nets route before all non-critical nets.
	Critical bool `json:"critical,omitempty" yaml:"critical,omitempty"`
	// MatchGroup names a length-matched group (e.g. a differential pair).
	// Nets in a match group are treated as critical.
	MatchGroup string `json:"match_group,omitempty" yaml:"match_group,omitempty"`
}

// EffectiveClass returns the declared class or one inferred from the name.
func (n *Net) EffectiveClass() string {
	if n.Class != "" {
		return n.Class
	}
	return InferClass(n.Name)
}

// InferClass guesses a net class from common power and ground names.
func InferClass(name string) string {
	u := strings.ToUpper(strings.TrimLeft(name, "/"))
	switch {
	case u == "GND" || u == "AGND" || u == "DGND" || u == "PGND" || u == "VSS" || strings.HasPrefix(u, "GND_"):
		return NetGround
	case u == "VCC" || u == "VDD" || u == "VBUS" || u == "VIN" || strings.HasPrefix(u, "+") ||
		strings.HasPrefix(u, "VCC_") || strings.HasPrefix(u, "VDD_"):
		return NetPower
	}
	return NetSignal
}

// Board is the physical board outline.
type Board struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	// Keepouts are rectangular regions no trace may enter on any layer.
	Keepouts []geom.Rect `json:"keepouts,omitempty" yaml:"keepouts,omitempty"`
	// KeepoutPolygons are polygonal keep-out regions on every layer.
	KeepoutPolygons []geom.Polygon `json:"keepout_polygons,omitempty" yaml:"keepout_polygons,omitempty"`
}

// Bounds returns the board rectangle anchored at the origin.
func (b Board) Bounds() geom.Rect { return geom.Rect{MaxX: b.Width, MaxY: b.Height} }

// PinRef is a resolved net endpoint with its absolute board position.
type PinRef struct {
	Component *Component
	Pin       Pin
	Position  geom.Point
}

// Endpoint returns the endpoint notation for the pin.
func (p PinRef) Endpoint() Endpoint { return Endpoint{Ref: p.Component.Ref, Pin: p.Pin.ID} }

// Netlist is an immutable query surface over a parsed design.
// Netlist is not safe for concurrent mutation; concurrent reads are fine.
type Netlist struct {
	Name       string
	Board      Board
	components []*Component
	nets       []*Net
	byRef      map[string]*Component
	byNet      map[string]*Net
}

// New builds a netlist, indexing components and nets. Duplicate or invalid
// component references and duplicate net names fail immediately; endpoint
// integrity is checked by [Netlist.Validate].
func New(name string, board Board, components []*Component, nets []*Net) (*Netlist, error) {
	nl := &Netlist{
		Name:  name,
		Board: board,
		byRef: make(map[string]*Component, len(components)),
		byNet: make(map[string]*Net, len(nets)),
	}
	for _, c := range components {
		if err := errors.ValidateReference(c.Ref); err != nil {
			return nil, err
		}
		if _, dup := nl.byRef[c.Ref]; dup {
			return nil, errors.New(errors.ErrCodeDuplicateReference, "duplicate component reference %s", c.Ref).About(c.Ref)
		}
		c.Placement.Rotation = geom.SnapRotation(float64(c.Placement.Rotation))
		nl.byRef[c.Ref] = c
		nl.components = append(nl.components, c)
	}
	for _, n := range nets {
		if err := errors.ValidateNetName(n.Name); err != nil {
			return nil, err
		}
		if _, dup := nl.byNet[n.Name]; dup {
			return nil, errors.New(errors.ErrCodeDuplicateReference, "duplicate net name %s", n.Name).About(n.Name)
		}
		nl.byNet[n.Name] = n
		nl.nets = append(nl.nets, n)
	}
	return nl, nil
}

// Components returns the components in declaration order.
func (nl *Netlist) Components() []*Component { return nl.components }

// Nets returns the nets in declaration order.
func (nl *Netlist) Nets() []*Net { return nl.nets }

// Component looks up a component by reference.
func (nl *Netlist) Component(ref string) (*Component, bool) {
	c, ok := nl.byRef[ref]
	return c, ok
}

// Net looks up a net by name.
func (nl *Netlist) Net(name string) (*Net, bool) {
	n, ok := nl.byNet[name]
	return n, ok
}

// Index returns the declaration index of a component, or -1.
func (nl *Netlist) Index(ref string) int {
	return slices.IndexFunc(nl.components, func(c *Component) bool { return c.Ref == ref })
}

// PinsOf returns the endpoints of a net in declaration order, each resolved
// to its component, pin and absolute board coordinate.
func (nl *Netlist) PinsOf(netName string) ([]PinRef, error) {
	n, ok := nl.byNet[netName]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "unknown net %s", netName).About(netName)
	}
	pins := make([]PinRef, 0, len(n.Endpoints))
	for _, ep := range n.Endpoints {
		c, ok := nl.byRef[ep.Ref]
		if !ok {
			return nil, errors.New(errors.ErrCodeDanglingReference, "net %s references unknown component %s", n.Name, ep.Ref).About(n.Name)
		}
		p, ok := c.Pin(ep.Pin)
		if !ok {
			return nil, errors.New(errors.ErrCodeDanglingReference, "net %s references unknown pin %s", n.Name, ep).About(n.Name)
		}
		pins = append(pins, PinRef{Component: c, Pin: p, Position: c.PinPosition(p)})
	}
	return pins, nil
}

// Validate checks endpoint integrity. Any net referencing an unknown
// component or pin fails the whole netlist with DANGLING_REFERENCE. Nets with
// fewer than two distinct endpoints are removed and reported as
// SINGLETON_NET warnings.
func (nl *Netlist) Validate() ([]*errors.Error, error) {
	var warnings []*errors.Error
	kept := nl.nets[:0:0]
	for _, n := range nl.nets {
		if _, err := nl.PinsOf(n.Name); err != nil {
			return warnings, err
		}
		if distinctEndpoints(n) < 2 {
			warnings = append(warnings, errors.New(errors.ErrCodeSingletonNet,
				"net %s has fewer than 2 endpoints and was dropped", n.Name).About(n.Name))
			delete(nl.byNet, n.Name)
			continue
		}
		kept = append(kept, n)
	}
	nl.nets = kept
	return warnings, nil
}

func distinctEndpoints(n *Net) int {
	seen := make(map[Endpoint]bool, len(n.Endpoints))
	for _, ep := range n.Endpoints {
		seen[ep] = true
	}
	return len(seen)
}

// ApplyPlacements updates component placements. References that do not
// exist are an error; components not in the map keep their placement.
func (nl *Netlist) ApplyPlacements(placements map[string]Placement) error {
	for ref, p := range placements {
		c, ok := nl.byRef[ref]
		if !ok {
			return errors.New(errors.ErrCodeDanglingReference, "placement for unknown component %s", ref).About(ref)
		}
		p.Rotation = geom.SnapRotation(float64(p.Rotation))
		c.Placement = p
	}
	return nil
}

// Clone returns a deep copy so callers can place and route without
// mutating the original design.
func (nl *Netlist) Clone() *Netlist {
	comps := make([]*Component, len(nl.components))
	for i, c := range nl.components {
		cc := *c
		cc.Pins = slices.Clone(c.Pins)
		comps[i] = &cc
	}
	nets := make([]*Net, len(nl.nets))
	for i, n := range nl.nets {
		nn := *n
		nn.Endpoints = slices.Clone(n.Endpoints)
		nets[i] = &nn
	}
	board := nl.Board
	board.Keepouts = slices.Clone(nl.Board.Keepouts)
	board.KeepoutPolygons = slices.Clone(nl.Board.KeepoutPolygons)
	out, err := New(nl.Name, board, comps, nets)
	if err != nil {
		// The source netlist already passed the same checks.
		panic(fmt.Sprintf("netlist: clone of valid netlist failed: %v", err))
	}
	return out
}

// EndpointCount returns the number of distinct endpoints of a net.
func EndpointCount(n *Net) int { return distinctEndpoints(n) }
