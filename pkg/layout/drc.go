package layout

import (
	"cmp"
	"math"
	"slices"

	"github.com/matzehuels/boardroute/pkg/geom"
)

// Violation is a clearance failure between copper of two nets.
type Violation struct {
	Layer int        `json:"layer"`
	NetA  string     `json:"net_a"`
	NetB  string     `json:"net_b"`
	At    geom.Point `json:"at"`
	GapMM float64    `json:"gap_mm"`
}

// piece is one straight run of copper: a trace piece or a via disc (a == b).
type piece struct {
	net    int
	layer  int
	a, b   geom.Point
	radius float64
	box    geom.Rect
}

// CheckClearance measures every pair of copper features of different nets on
// the same layer and reports the closest approach of each offending pair
// whose edge-to-edge gap is below the layout clearance.
func CheckClearance(l Layout) []Violation {
	var pieces []piece
	add := func(net, layer int, a, b geom.Point, radius float64) {
		box := geom.Rect{
			MinX: math.Min(a.X, b.X), MinY: math.Min(a.Y, b.Y),
			MaxX: math.Max(a.X, b.X), MaxY: math.Max(a.Y, b.Y),
		}.Expand(radius + l.Clearance)
		pieces = append(pieces, piece{net: net, layer: layer, a: a, b: b, radius: radius, box: box})
	}
	for i, n := range l.Nets {
		for _, s := range n.Segments {
			w := s.WidthMM
			if w == 0 {
				w = l.TraceWidth
			}
			if len(s.Points) == 1 {
				add(i, s.Layer, s.Points[0], s.Points[0], w/2)
			}
			for k := 1; k < len(s.Points); k++ {
				add(i, s.Layer, s.Points[k-1], s.Points[k], w/2)
			}
		}
		for _, v := range n.Vias {
			lo, hi := min(v.From, v.To), max(v.From, v.To)
			for layer := lo; layer <= hi; layer++ {
				add(i, layer, v.Position, v.Position, v.DiameterMM/2)
			}
		}
	}

	type pairKey struct{ layer, a, b int }
	worst := make(map[pairKey]Violation)
	for i := range pieces {
		p := &pieces[i]
		for j := i + 1; j < len(pieces); j++ {
			q := &pieces[j]
			if p.net == q.net || p.layer != q.layer || !touches(p.box, q.box) {
				continue
			}
			gap := geom.SegmentDistance(p.a, p.b, q.a, q.b) - p.radius - q.radius
			if gap >= l.Clearance-1e-6 {
				continue
			}
			a, b := p.net, q.net
			if a > b {
				a, b = b, a
			}
			k := pairKey{p.layer, a, b}
			if v, seen := worst[k]; seen && v.GapMM <= gap {
				continue
			}
			worst[k] = Violation{
				Layer: p.layer,
				NetA:  l.Nets[a].Name,
				NetB:  l.Nets[b].Name,
				At:    midpoint(p.a, p.b),
				GapMM: math.Max(0, gap),
			}
		}
	}

	out := make([]Violation, 0, len(worst))
	for _, v := range worst {
		out = append(out, v)
	}
	slices.SortFunc(out, func(x, y Violation) int {
		return cmp.Or(
			cmp.Compare(x.Layer, y.Layer),
			cmp.Compare(x.NetA, y.NetA),
			cmp.Compare(x.NetB, y.NetB),
		)
	})
	return out
}

func touches(a, b geom.Rect) bool {
	return a.MinX <= b.MaxX && b.MinX <= a.MaxX && a.MinY <= b.MaxY && b.MinY <= a.MaxY
}

func midpoint(a, b geom.Point) geom.Point {
	return geom.Pt((a.X+b.X)/2, (a.Y+b.Y)/2)
}
