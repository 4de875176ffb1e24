package autoroute

import (
	"cmp"
	"slices"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/grid"
	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/netlist"
	"github.com/matzehuels/boardroute/pkg/route"
)

// pad is one pin of a net and the grid nodes of its copper. A pad whose
// cell could not be claimed has no nodes.
type pad struct {
	ref   netlist.PinRef
	nodes []grid.Node
}

// edge is one spanning-tree connection: v is the child, u its parent.
type edge struct{ u, v int }

type netState struct {
	net   *netlist.Net
	id    grid.NetID
	index int
	pins  []pad
	edges []edge

	groups  *groups
	routed  []bool
	paths   []route.Path
	fails   []string
	lastErr error
}

func (o *Orchestrator) newNetState(n *netlist.Net, index int) (*netState, error) {
	refs, err := o.nl.PinsOf(n.Name)
	if err != nil {
		return nil, err
	}
	ns := &netState{net: n, id: grid.NetID(index + 1), index: index}
	seen := make(map[netlist.Endpoint]bool, len(refs))
	for _, r := range refs {
		if seen[r.Endpoint()] {
			continue
		}
		seen[r.Endpoint()] = true
		o.g.Allow(ns.id, o.nl.Index(r.Component.Ref))
		ns.pins = append(ns.pins, pad{ref: r, nodes: o.claimPad(ns, r)})
	}
	ns.edges = spanningTree(ns.pins)
	ns.reset()
	return ns, nil
}

// claimPad reserves a pin's cell for its net: SMD pads on their side's
// outer layer, through-hole pads on every layer.
func (o *Orchestrator) claimPad(ns *netState, r netlist.PinRef) []grid.Node {
	c := o.g.CellOf(r.Position)
	var nodes []grid.Node
	ok := false
	switch r.Pin.Side {
	case netlist.SideTop:
		nodes = []grid.Node{c.At(0)}
		ok = o.g.Claim(ns.id, nodes[0])
	case netlist.SideBottom:
		nodes = []grid.Node{c.At(o.g.Layers() - 1)}
		ok = o.g.Claim(ns.id, nodes[0])
	default:
		for l := 0; l < o.g.Layers(); l++ {
			nodes = append(nodes, c.At(l))
		}
		ok = o.g.ClaimThrough(ns.id, c)
	}
	if ok {
		return nodes
	}
	w := errors.New(errors.ErrCodeNoPathFound, "pad %s of net %s is blocked at cell (%d,%d)",
		r.Endpoint(), ns.net.Name, c.X, c.Y).About(ns.net.Name)
	o.warnings = append(o.warnings, w)
	o.logger.Warn("pad blocked", "pad", r.Endpoint(), "net", ns.net.Name)
	return nil
}

// reset drops the routing outcome and regroups the net as bare pads.
func (ns *netState) reset() {
	ns.groups = newGroups(ns.pins)
	ns.routed = make([]bool, len(ns.edges))
	ns.paths = nil
	ns.fails = nil
	ns.lastErr = nil
}

func (ns *netState) commit(ei int, e edge, p route.Path) {
	ns.routed[ei] = true
	ns.groups.union(e.u, e.v)
	if len(p.Nodes) == 0 {
		return
	}
	ns.paths = append(ns.paths, p)
	// A path may run over copper of another group of the same net.
	for k := range ns.pins {
		if !ns.groups.same(k, e.v) && ns.groups.touches(k, p) {
			ns.groups.union(k, e.v)
		}
	}
	ns.groups.absorb(e.v, p)
}

func (ns *netState) fail(e edge, err error) {
	ns.fails = append(ns.fails, ns.pins[e.v].ref.Endpoint().String()+" -> "+
		ns.pins[e.u].ref.Endpoint().String()+": "+errors.UserMessage(err))
	ns.lastErr = err
}

// tearUp releases every committed path of the net. Pads stay claimed.
func (ns *netState) tearUp(g *grid.Grid) {
	for _, p := range ns.paths {
		route.Release(g, ns.id, p)
	}
}

func (ns *netState) routedCount() int {
	var n int
	for _, r := range ns.routed {
		if r {
			n++
		}
	}
	return n
}

func (ns *netState) newVias() int {
	var n int
	for _, p := range ns.paths {
		n += p.NewVias()
	}
	return n
}

func (ns *netState) status() layout.Status {
	switch ns.routedCount() {
	case len(ns.edges):
		return layout.StatusRouted
	case 0:
		return layout.StatusUnrouted
	default:
		return layout.StatusPartial
	}
}

// prioritized reports whether a net routes in the first tier.
func (ns *netState) prioritized() bool {
	return ns.net.Critical || ns.net.MatchGroup != ""
}

// orderNets returns nets in routing order: critical and length-matched
// nets, then descending priority, then fewer endpoints, then declaration
// order.
func orderNets(nets []*netState) []*netState {
	out := slices.Clone(nets)
	tier := func(ns *netState) int {
		if ns.prioritized() {
			return 0
		}
		return 1
	}
	slices.SortFunc(out, func(a, b *netState) int {
		return cmp.Or(
			cmp.Compare(tier(a), tier(b)),
			cmp.Compare(b.net.Priority, a.net.Priority),
			cmp.Compare(len(a.pins), len(b.pins)),
			cmp.Compare(a.index, b.index),
		)
	})
	return out
}

// =============================================================================
// Connected groups
// =============================================================================

// groups is a union-find over a net's pins, carrying the copper nodes of
// each connected group.
type groups struct {
	parent []int
	copper [][]grid.Node
	seen   []map[grid.Node]bool
}

func newGroups(pins []pad) *groups {
	g := &groups{
		parent: make([]int, len(pins)),
		copper: make([][]grid.Node, len(pins)),
		seen:   make([]map[grid.Node]bool, len(pins)),
	}
	for i, p := range pins {
		g.parent[i] = i
		g.seen[i] = make(map[grid.Node]bool)
		g.add(i, p.nodes...)
	}
	return g
}

func (g *groups) find(i int) int {
	for g.parent[i] != i {
		g.parent[i] = g.parent[g.parent[i]]
		i = g.parent[i]
	}
	return i
}

func (g *groups) same(a, b int) bool { return g.find(a) == g.find(b) }

// union merges the groups of a and b into the lower root.
func (g *groups) union(a, b int) {
	ra, rb := g.find(a), g.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	g.parent[rb] = ra
	g.add(ra, g.copper[rb]...)
	g.copper[rb], g.seen[rb] = nil, nil
}

func (g *groups) add(i int, nodes ...grid.Node) {
	r := g.find(i)
	for _, n := range nodes {
		if !g.seen[r][n] {
			g.seen[r][n] = true
			g.copper[r] = append(g.copper[r], n)
		}
	}
}

// absorb adds a path's copper, including the full span of its vias, to
// the group of pin i.
func (g *groups) absorb(i int, p route.Path) {
	g.add(i, p.Nodes...)
	for _, h := range p.Hops {
		lo, hi := min(h.From, h.To), max(h.From, h.To)
		for l := lo + 1; l < hi; l++ {
			g.add(i, h.Cell.At(l))
		}
	}
}

func (g *groups) nodes(i int) []grid.Node { return g.copper[g.find(i)] }

// touches reports whether any node of p is copper of pin i's group.
func (g *groups) touches(i int, p route.Path) bool {
	r := g.find(i)
	for _, n := range p.Nodes {
		if g.seen[r][n] {
			return true
		}
	}
	return false
}
