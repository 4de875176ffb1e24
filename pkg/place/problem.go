package place

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/boardroute/pkg/config"
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

const (
	eps = 1e-9
	// scanStep is the search raster when no placement grid is configured.
	scanStep = 0.5
)

// Problem is one placement task: the usable area, what is already on the
// board, and the components to position.
type Problem struct {
	Netlist *netlist.Netlist
	Config  config.Config

	// Area is the board minus the edge margin.
	Area geom.Rect
	// Clearance is the minimum courtyard-to-courtyard gap.
	Clearance float64
	// Snap is the placement grid, or zero.
	Snap float64

	// Movable components in declaration order, with the rotation they
	// should be placed at already applied.
	Movable []*netlist.Component
	// Anchored components keep their position.
	Anchored []*netlist.Component

	keepouts []geom.Rect
	occupied []geom.Rect
	warnings []*errors.Error
	fallback bool
}

// NewProblem checks that every component can fit and that anchored
// components are legal, and derives the usable area.
func NewProblem(nl *netlist.Netlist, cfg config.Config) (*Problem, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	b := nl.Board
	p := &Problem{
		Netlist:   nl,
		Config:    cfg,
		Clearance: cfg.ComponentClearanceMM,
		Snap:      cfg.PlacementGridMM,
		keepouts:  append([]geom.Rect(nil), b.Keepouts...),
	}
	for _, pg := range b.KeepoutPolygons {
		p.keepouts = append(p.keepouts, pg.Bounds())
	}

	margin := cfg.EdgeMarginMM
	for _, c := range nl.Components() {
		if !c.Footprint.Resolved() {
			return nil, errors.New(errors.ErrCodePlacementFailed, "component %s has no footprint dimensions", c.Ref).About(c.Ref)
		}
		if c.Placement.Fixed || (c.Placement.Placed && cfg.PlacementStrategy != config.StrategyOptimize) {
			r := c.Courtyard()
			if !b.Bounds().ContainsRect(r) {
				return nil, errors.New(errors.ErrCodePlacementFailed,
					"component %s at (%g, %g) extends outside the %gx%g board", c.Ref, c.Placement.X, c.Placement.Y, b.Width, b.Height).About(c.Ref)
			}
			for _, a := range p.Anchored {
				if r.Overlaps(a.Courtyard()) {
					return nil, errors.New(errors.ErrCodePlacementFailed, "component %s overlaps %s", c.Ref, a.Ref).About(c.Ref)
				}
			}
			p.Anchored = append(p.Anchored, c)
			p.occupied = append(p.occupied, r)
			continue
		}

		rot, ok := orientation(c, b)
		if !ok {
			w, h := c.Footprint.Width, c.Footprint.Height
			return nil, errors.New(errors.ErrCodePlacementFailed,
				"component %s (%gx%g mm) does not fit on the %gx%g board", c.Ref, w, h, b.Width, b.Height).About(c.Ref)
		}
		c.Placement.Rotation = rot
		r := c.CourtyardAt(geom.Point{}, rot)
		margin = math.Min(margin, (b.Width-r.Width())/2)
		margin = math.Min(margin, (b.Height-r.Height())/2)
		p.Movable = append(p.Movable, c)
	}
	p.Area = b.Bounds().Expand(-math.Max(0, margin))

	var need float64
	for _, c := range p.Movable {
		r := c.CourtyardAt(geom.Point{}, c.Placement.Rotation)
		need += (r.Width() + p.Clearance) * (r.Height() + p.Clearance)
	}
	if have := (p.Area.Width() + p.Clearance) * (p.Area.Height() + p.Clearance); need > have+eps {
		return nil, errors.New(errors.ErrCodeBoardTooSmall,
			"board %gx%g cannot hold %d components needing %.1f mm² (%.1f mm² usable)", b.Width, b.Height, len(p.Movable), need, have)
	}
	return p, nil
}

// orientation returns the component's rotation if its courtyard fits the
// board, otherwise the quarter turn that does.
func orientation(c *netlist.Component, b netlist.Board) (int, bool) {
	for _, rot := range []int{c.Placement.Rotation, (c.Placement.Rotation + 90) % 360} {
		r := c.CourtyardAt(geom.Point{}, rot)
		if r.Width() <= b.Width+eps && r.Height() <= b.Height+eps {
			return rot, true
		}
	}
	return 0, false
}

// fits reports whether a courtyard can go at r given everything already
// occupied.
func (p *Problem) fits(r geom.Rect) bool {
	if !p.Area.ContainsRect(r) {
		return false
	}
	for _, k := range p.keepouts {
		if r.Overlaps(k) {
			return false
		}
	}
	for _, o := range p.occupied {
		if r.Overlaps(o) || r.Gap(o) < p.Clearance-eps {
			return false
		}
	}
	return true
}

// put places c at center and marks its courtyard occupied.
func (p *Problem) put(c *netlist.Component, center geom.Point) {
	c.Placement.X, c.Placement.Y = center.X, center.Y
	c.Placement.Placed = true
	p.occupied = append(p.occupied, c.Courtyard())
}

// reset forgets movable placements so another placer can start over.
func (p *Problem) reset() {
	p.occupied = p.occupied[:len(p.Anchored)]
	for _, c := range p.Movable {
		c.Placement.Placed = false
	}
}

func (p *Problem) step() float64 {
	if p.Snap > 0 {
		return p.Snap
	}
	return scanStep
}

// snap rounds v to the placement grid.
func (p *Problem) snap(v float64) float64 {
	if p.Snap <= 0 {
		return v
	}
	return math.Round(v/p.Snap) * p.Snap
}

// firstFit scans the area row by row for the first position where a
// footprint of the given courtyard size fits.
func (p *Problem) firstFit(c *netlist.Component) (geom.Point, bool) {
	r := c.CourtyardAt(geom.Point{}, c.Placement.Rotation)
	s := p.step()
	x0 := p.scanStart(p.Area.MinX + r.Width()/2)
	y0 := p.scanStart(p.Area.MinY + r.Height()/2)
	for y := y0; y+r.Height()/2 <= p.Area.MaxY+eps; y += s {
		for x := x0; x+r.Width()/2 <= p.Area.MaxX+eps; x += s {
			center := geom.Pt(x, y)
			if p.fits(c.CourtyardAt(center, c.Placement.Rotation)) {
				return center, true
			}
		}
	}
	return geom.Point{}, false
}

// scanStart is the first grid position at or after v.
func (p *Problem) scanStart(v float64) float64 {
	if p.Snap <= 0 {
		return v
	}
	return math.Ceil(v/p.Snap-eps) * p.Snap
}

// verify checks the final arrangement.
func (p *Problem) verify() error {
	placed := make([]*netlist.Component, 0, len(p.Anchored)+len(p.Movable))
	placed = append(placed, p.Anchored...)
	for _, c := range p.Movable {
		if !c.Placement.Placed {
			return errors.New(errors.ErrCodePlacementFailed, "component %s was not placed", c.Ref).About(c.Ref)
		}
		r := c.Courtyard()
		if !p.Area.ContainsRect(r) {
			return errors.New(errors.ErrCodeInternal, "component %s placed outside the board", c.Ref).About(c.Ref)
		}
		for _, o := range placed {
			if r.Overlaps(o.Courtyard()) || r.Gap(o.Courtyard()) < p.Clearance-1e-6 {
				return errors.New(errors.ErrCodeInternal, "component %s placed too close to %s", c.Ref, o.Ref).About(c.Ref)
			}
		}
		placed = append(placed, c)
	}
	return nil
}

// keepOutWarnings reports class pairs closer than their keep-out rule.
func (p *Problem) keepOutWarnings() []*errors.Error {
	var out []*errors.Error
	comps := p.Netlist.Components()
	for i, a := range comps {
		for _, b := range comps[i+1:] {
			d := p.Config.KeepOutDistance(a.Class, b.Class)
			if d <= 0 {
				continue
			}
			if gap := a.Courtyard().Gap(b.Courtyard()); gap < d-eps {
				out = append(out, errors.New(errors.ErrCodePlacementFailed,
					"%s (%s) and %s (%s) are %.1fmm apart, want %.1fmm", a.Ref, a.Class, b.Ref, b.Class, gap, d).About(a.Ref))
			}
		}
	}
	return out
}

// WireLength is the half-perimeter wire length of every net at the
// current placement.
func WireLength(nl *netlist.Netlist) float64 {
	var total float64
	var xs, ys []float64
	for _, n := range nl.Nets() {
		xs, ys = xs[:0], ys[:0]
		for _, ep := range n.Endpoints {
			c, ok := nl.Component(ep.Ref)
			if !ok {
				continue
			}
			pin, ok := c.Pin(ep.Pin)
			if !ok {
				continue
			}
			pos := c.PinPosition(pin)
			xs, ys = append(xs, pos.X), append(ys, pos.Y)
		}
		total += hpwl(xs, ys)
	}
	return total
}

func hpwl(xs, ys []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return floats.Max(xs) - floats.Min(xs) + floats.Max(ys) - floats.Min(ys)
}
