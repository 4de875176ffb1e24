package place

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

// Cluster places groups of connected components as compact blocks.
type Cluster struct{}

// Place implements [Placer].
func (Cluster) Place(ctx context.Context, p *Problem) error {
	for _, members := range Clusters(p.Netlist, p.Movable) {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrCodeCanceled, err, "cluster placement canceled")
		}
		if p.placeBlock(members) {
			continue
		}
		// The block does not fit whole; place its members one by one.
		for _, c := range members {
			center, ok := p.firstFit(c)
			if !ok {
				return errors.New(errors.ErrCodeBoardTooSmall,
					"board %gx%g has no room left for %s", p.Netlist.Board.Width, p.Netlist.Board.Height, c.Ref)
			}
			p.put(c, center)
		}
	}
	return nil
}

// placeBlock arranges members in a near-square block and places it at the
// first position where every member fits.
func (p *Problem) placeBlock(members []*netlist.Component) bool {
	var cw, ch float64
	for _, c := range members {
		r := c.CourtyardAt(geom.Point{}, c.Placement.Rotation)
		cw, ch = math.Max(cw, r.Width()), math.Max(ch, r.Height())
	}
	cw += p.Clearance
	ch += p.Clearance
	cols := int(math.Ceil(math.Sqrt(float64(len(members)))))
	rows := (len(members) + cols - 1) / cols
	bw, bh := float64(cols)*cw-p.Clearance, float64(rows)*ch-p.Clearance

	offsets := make([]geom.Point, len(members))
	for i := range members {
		offsets[i] = geom.Pt(float64(i%cols)*cw+(cw-p.Clearance)/2, float64(i/cols)*ch+(ch-p.Clearance)/2)
	}

	s := p.step()
	for y := p.scanStart(p.Area.MinY); y+bh <= p.Area.MaxY+eps; y += s {
		for x := p.scanStart(p.Area.MinX); x+bw <= p.Area.MaxX+eps; x += s {
			if p.blockFits(members, offsets, geom.Pt(x, y)) {
				for i, c := range members {
					p.put(c, p.blockCenter(geom.Pt(x, y), offsets[i]))
				}
				return true
			}
		}
	}
	return false
}

func (p *Problem) blockCenter(o, off geom.Point) geom.Point {
	c := o.Add(off)
	return geom.Pt(p.snap(c.X), p.snap(c.Y))
}

// blockFits checks members against the board and against each other.
func (p *Problem) blockFits(members []*netlist.Component, offsets []geom.Point, o geom.Point) bool {
	n := len(p.occupied)
	defer func() { p.occupied = p.occupied[:n] }()
	for i, c := range members {
		r := c.CourtyardAt(p.blockCenter(o, offsets[i]), c.Placement.Rotation)
		if !p.fits(r) {
			return false
		}
		p.occupied = append(p.occupied, r)
	}
	return true
}

// Clusters partitions components into placement groups: connected
// components over shared signal nets (power and ground nets touch nearly
// everything and are ignored), then the unconnected parts grouped by
// reference designator family. Groups are ordered by their first member
// in declaration order.
func Clusters(nl *netlist.Netlist, comps []*netlist.Component) [][]*netlist.Component {
	index := make(map[string]int, len(comps))
	g := simple.NewUndirectedGraph()
	for i, c := range comps {
		index[c.Ref] = i
		g.AddNode(simple.Node(i))
	}
	linked := make([]bool, len(comps))
	for _, n := range nl.Nets() {
		if n.EffectiveClass() != netlist.NetSignal {
			continue
		}
		first := -1
		for _, ep := range n.Endpoints {
			i, ok := index[ep.Ref]
			if !ok {
				continue
			}
			if first < 0 {
				first = i
				continue
			}
			if i != first {
				g.SetEdge(simple.Edge{F: simple.Node(first), T: simple.Node(i)})
				linked[first], linked[i] = true, true
			}
		}
	}

	var groups [][]int
	families := make(map[string][]int)
	for _, cc := range topo.ConnectedComponents(g) {
		ids := make([]int, len(cc))
		for k, n := range cc {
			ids[k] = int(n.ID())
		}
		slices.Sort(ids)
		if len(ids) == 1 && !linked[ids[0]] {
			f := family(comps[ids[0]])
			families[f] = append(families[f], ids[0])
			continue
		}
		groups = append(groups, ids)
	}
	for _, ids := range families {
		slices.Sort(ids)
		groups = append(groups, ids)
	}
	slices.SortFunc(groups, func(a, b []int) int { return cmp.Compare(a[0], b[0]) })

	out := make([][]*netlist.Component, len(groups))
	for i, ids := range groups {
		for _, id := range ids {
			out[i] = append(out[i], comps[id])
		}
	}
	return out
}

// family classifies a component by reference designator prefix.
func family(c *netlist.Component) string {
	switch {
	case strings.HasPrefix(c.Ref, "J") || strings.HasPrefix(c.Ref, "P"):
		return "connectors"
	case strings.HasPrefix(c.Ref, "U"):
		return "ics"
	case strings.HasPrefix(c.Ref, "R") || strings.HasPrefix(c.Ref, "C") || strings.HasPrefix(c.Ref, "L"):
		return "passives"
	case c.Class == netlist.ClassPower || strings.Contains(strings.ToLower(c.Value), "power"):
		return "power"
	}
	return "other"
}
