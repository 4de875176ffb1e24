package route

import (
	"math"

	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/grid"
	"github.com/matzehuels/boardroute/pkg/layout"
)

// Commit reserves a path's cells and new vias for net. On failure nothing
// stays reserved.
func Commit(g *grid.Grid, net grid.NetID, p Path) error {
	if err := g.Reserve(net, p.Nodes); err != nil {
		return err
	}
	for i, h := range p.Hops {
		if h.Existing {
			continue
		}
		if err := g.ReserveVia(net, h.Cell, h.From, h.To); err != nil {
			for _, done := range p.Hops[:i] {
				if !done.Existing {
					g.ReleaseVia(net, done.Cell, done.From, done.To)
				}
			}
			g.Release(net, p.Nodes)
			return err
		}
	}
	return nil
}

// Release undoes a matching Commit.
func Release(g *grid.Grid, net grid.NetID, p Path) {
	for _, h := range p.Hops {
		if !h.Existing {
			g.ReleaseVia(net, h.Cell, h.From, h.To)
		}
	}
	g.Release(net, p.Nodes)
}

// Geometry is the physical copper of a path.
type Geometry struct {
	Segments []layout.Segment
	Vias     []layout.Via
	LengthMM float64
}

// Copper sizes recorded on emitted geometry.
type Copper struct {
	TraceWidth  float64
	ViaDiameter float64
	ViaDrill    float64
}

// Geometry splits the path into per-layer segments with corner points in
// board millimetres, and lists the new vias.
func (p Path) Geometry(g *grid.Grid, c Copper) Geometry {
	var out Geometry
	if len(p.Nodes) == 0 {
		return out
	}
	start := 0
	for i := 1; i <= len(p.Nodes); i++ {
		if i < len(p.Nodes) && p.Nodes[i].Layer == p.Nodes[start].Layer {
			continue
		}
		seg := segment(g, p.Nodes[start:i], c.TraceWidth)
		out.LengthMM += seg.LengthMM
		// Single-node runs between two hops are the via itself.
		if len(seg.Cells) > 1 || len(p.Nodes) == 1 {
			out.Segments = append(out.Segments, seg)
		}
		start = i
	}
	for _, h := range p.Hops {
		if h.Existing {
			continue
		}
		out.Vias = append(out.Vias, layout.Via{
			Position:   g.Center(h.Cell),
			Cell:       h.Cell,
			From:       h.From,
			To:         h.To,
			DiameterMM: c.ViaDiameter,
			DrillMM:    c.ViaDrill,
		})
	}
	return out
}

func segment(g *grid.Grid, run []grid.Node, width float64) layout.Segment {
	seg := layout.Segment{Layer: run[0].Layer, WidthMM: width}
	seg.Cells = make([]grid.Cell, len(run))
	for i, n := range run {
		seg.Cells[i] = n.Cell()
	}
	seg.Points = append(seg.Points, g.Center(seg.Cells[0]))
	for i := 1; i < len(run); i++ {
		a, b := run[i-1], run[i]
		if a.X != b.X && a.Y != b.Y {
			seg.LengthMM += math.Sqrt2 * g.Pitch()
		} else {
			seg.LengthMM += g.Pitch()
		}
		// Keep corners only.
		if i+1 < len(run) && direction(a, b) == direction(b, run[i+1]) {
			continue
		}
		seg.Points = append(seg.Points, g.Center(b.Cell()))
	}
	return seg
}

func direction(a, b grid.Node) geom.Point {
	return geom.Pt(float64(b.X-a.X), float64(b.Y-a.Y))
}
