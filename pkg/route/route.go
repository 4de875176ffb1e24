package route

import (
	"container/heap"
	"context"
	"math"
	"time"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/grid"
)

// Default search tuning. See [DefaultOptions].
const (
	DefaultTurnPenalty = 0.5
	DefaultViaCost     = 10.0
	DefaultNodeBudget  = 400_000

	// pollEvery is the number of expansions between context and deadline
	// checks.
	pollEvery = 1024
)

// Options tunes one search. TurnPenalty and ViaCost are used as given, so
// zero means free turns or free layer changes; start from [DefaultOptions]
// for the usual tuning.
type Options struct {
	TurnPenalty float64   // cost per 45° heading change
	ViaCost     float64   // cost of one layer change
	NodeBudget  int       // max state expansions, zero means DefaultNodeBudget
	Deadline    time.Time // zero means no wall-clock limit

	// PreferLayer biases the search toward one layer by multiplying the
	// step cost on every other layer by 1+LayerBias. -1 disables it.
	PreferLayer int
	LayerBias   float64

	// Orthogonal disables diagonal steps.
	Orthogonal bool
}

// DefaultOptions returns the default search tuning.
func DefaultOptions() Options {
	return Options{
		TurnPenalty: DefaultTurnPenalty,
		ViaCost:     DefaultViaCost,
		NodeBudget:  DefaultNodeBudget,
		PreferLayer: -1,
	}
}

func (o *Options) setDefaults() {
	if o.NodeBudget <= 0 {
		o.NodeBudget = DefaultNodeBudget
	}
	if o.LayerBias <= 0 {
		o.PreferLayer = -1
	}
}

// Request asks for a path from any source node to any target node.
type Request struct {
	Net     grid.NetID
	Sources []grid.Node
	Targets []grid.Node
	Options Options
}

// Hop is a layer change at one cell.
type Hop struct {
	Cell grid.Cell
	From int
	To   int
	// Existing hops reuse a via or plated hole the net already owns.
	Existing bool
}

// Path is a found route, ordered from a source node to a target node.
type Path struct {
	Nodes    []grid.Node
	Hops     []Hop
	Cost     float64
	Expanded int
}

// NewVias returns the number of vias the path would add.
func (p Path) NewVias() int {
	var n int
	for _, h := range p.Hops {
		if !h.Existing {
			n++
		}
	}
	return n
}

// Headings in angular order, 45° apart.
var (
	dx       = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	dy       = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
	stepCost = [8]float64{1, math.Sqrt2, 1, math.Sqrt2, 1, math.Sqrt2, 1, math.Sqrt2}
)

const (
	headings  = 9 // 8 directions plus "none" for sources and after a via
	noHeading = 8
)

// turns returns the heading change between a and b in 45° units.
func turns(a, b int) int {
	if a == noHeading || b == noHeading {
		return 0
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return min(d, 8-d)
}

// Router searches paths on one grid, reusing its buffers across searches.
type Router struct {
	g  *grid.Grid
	ws *workspace
}

// New returns a router for g.
func New(g *grid.Grid) *Router {
	return &Router{g: g, ws: newWorkspace(g.Size())}
}

// Grid returns the grid the router searches.
func (r *Router) Grid() *grid.Grid { return r.g }

// Find searches for the cheapest path from any source to any target without
// modifying the grid. It returns NO_PATH_FOUND when the reachable region is
// exhausted, BUDGET_EXCEEDED when the node budget or deadline runs out, and
// CANCELED when ctx is done.
func (r *Router) Find(ctx context.Context, req Request) (Path, error) {
	opts := req.Options
	opts.setDefaults()
	g := r.g

	if len(req.Sources) == 0 || len(req.Targets) == 0 {
		return Path{}, errors.New(errors.ErrCodeInvalidInput, "route request needs sources and targets")
	}

	ws := r.ws
	ws.reset()

	box := bounds{x0: math.MaxInt, y0: math.MaxInt, x1: math.MinInt, y1: math.MinInt}
	targets := 0
	for _, t := range req.Targets {
		if !g.IsTraversable(t, req.Net) {
			continue
		}
		ws.markTarget(g.Index(t))
		box.add(t.X, t.Y)
		targets++
	}
	if targets == 0 {
		return Path{}, errors.New(errors.ErrCodeNoPathFound, "no reachable target for net %d", req.Net)
	}

	for _, s := range req.Sources {
		if !g.IsTraversable(s, req.Net) {
			continue
		}
		i := g.Index(s)
		if ws.isTarget(i) {
			return Path{Nodes: []grid.Node{s}}, nil
		}
		ws.push(state(i, noHeading), -1, 0, box.octile(s.X, s.Y))
	}
	if ws.open.Len() == 0 {
		return Path{}, errors.New(errors.ErrCodeNoPathFound, "no traversable source for net %d", req.Net)
	}
	if !opts.Deadline.IsZero() && !time.Now().Before(opts.Deadline) {
		return Path{}, errors.New(errors.ErrCodeBudgetExceeded, "net %d exceeded its time budget before searching", req.Net)
	}

	layers := g.Layers()
	expanded := 0
	for ws.open.Len() > 0 {
		it := heap.Pop(&ws.open).(item)
		if ws.isClosed(it.state) {
			continue
		}
		ws.close(it.state)
		expanded++

		if expanded%pollEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Path{}, errors.Wrap(errors.ErrCodeCanceled, err, "route net %d", req.Net)
			}
			if !opts.Deadline.IsZero() && !time.Now().Before(opts.Deadline) {
				return Path{}, errors.New(errors.ErrCodeBudgetExceeded, "net %d exceeded its time budget after %d expansions", req.Net, expanded)
			}
		}
		if expanded > opts.NodeBudget {
			return Path{}, errors.New(errors.ErrCodeBudgetExceeded, "net %d exceeded its budget of %d expansions", req.Net, opts.NodeBudget)
		}

		idx, head := split(it.state)
		if ws.isTarget(idx) {
			p := r.reconstruct(it.state, req.Net)
			p.Cost = ws.dist[it.state]
			p.Expanded = expanded
			return p, nil
		}

		cur := g.NodeAt(idx)
		base := ws.dist[it.state]
		layerMul := 1.0
		if opts.PreferLayer >= 0 && cur.Layer != opts.PreferLayer {
			layerMul += opts.LayerBias
		}

		// Planar steps.
		for d := 0; d < 8; d++ {
			diag := d%2 == 1
			if diag && opts.Orthogonal {
				continue
			}
			nb := grid.Node{X: cur.X + dx[d], Y: cur.Y + dy[d], Layer: cur.Layer}
			if !g.IsTraversable(nb, req.Net) {
				continue
			}
			if diag {
				// No corner cutting past a blocked orthogonal neighbour.
				if !g.IsTraversable(grid.Node{X: cur.X + dx[d], Y: cur.Y, Layer: cur.Layer}, req.Net) ||
					!g.IsTraversable(grid.Node{X: cur.X, Y: cur.Y + dy[d], Layer: cur.Layer}, req.Net) {
					continue
				}
			}
			cost := base + stepCost[d]*layerMul + opts.TurnPenalty*float64(turns(head, d))
			ws.relax(state(g.Index(nb), d), it.state, cost, box.octile(nb.X, nb.Y))
		}

		// Layer changes.
		for l := 0; l < layers; l++ {
			if l == cur.Layer {
				continue
			}
			nb := grid.Node{X: cur.X, Y: cur.Y, Layer: l}
			var cost float64
			switch {
			case existingVia(g, cur, l, req.Net):
				cost = base
			case g.CanPlaceVia(cur.Cell(), cur.Layer, l, req.Net):
				cost = base + opts.ViaCost
			default:
				continue
			}
			ws.relax(state(g.Index(nb), noHeading), it.state, cost, box.octile(nb.X, nb.Y))
		}
	}
	return Path{}, errors.New(errors.ErrCodeNoPathFound, "net %d: search exhausted %d reachable states", req.Net, expanded)
}

// existingVia reports whether net already owns a via spanning cur's layer
// through layer l at cur's cell.
func existingVia(g *grid.Grid, cur grid.Node, l int, net grid.NetID) bool {
	a, b := min(cur.Layer, l), max(cur.Layer, l)
	for k := a; k <= b; k++ {
		if !g.HasVia(grid.Node{X: cur.X, Y: cur.Y, Layer: k}, net) {
			return false
		}
	}
	return true
}

// Route finds a path and commits it to the grid.
func (r *Router) Route(ctx context.Context, req Request) (Path, error) {
	p, err := r.Find(ctx, req)
	if err != nil {
		return Path{}, err
	}
	if err := Commit(r.g, req.Net, p); err != nil {
		return Path{}, err
	}
	return p, nil
}

func (r *Router) reconstruct(s int32, net grid.NetID) Path {
	ws := r.ws
	var rev []grid.Node
	for cur := s; cur >= 0; cur = ws.prev[cur] {
		idx, _ := split(cur)
		rev = append(rev, r.g.NodeAt(idx))
	}
	nodes := make([]grid.Node, len(rev))
	for i, n := range rev {
		nodes[len(rev)-1-i] = n
	}
	nodes = simplify(nodes)

	var hops []Hop
	for i := 1; i < len(nodes); i++ {
		a, b := nodes[i-1], nodes[i]
		if a.Layer != b.Layer {
			hops = append(hops, Hop{
				Cell:     a.Cell(),
				From:     a.Layer,
				To:       b.Layer,
				Existing: existingVia(r.g, a, b.Layer, net),
			})
		}
	}
	return Path{Nodes: nodes, Hops: hops}
}

// simplify drops repeated nodes and layer excursions that return to the
// starting layer at the same cell.
func simplify(nodes []grid.Node) []grid.Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if k := len(out); k > 0 && out[k-1] == n {
			continue
		}
		if k := len(out); k >= 2 && out[k-2] == n && out[k-1].Cell() == n.Cell() {
			out = out[:k-1]
			continue
		}
		out = append(out, n)
	}
	return out
}

// =============================================================================
// Heuristic
// =============================================================================

type bounds struct{ x0, y0, x1, y1 int }

func (b *bounds) add(x, y int) {
	b.x0, b.y0 = min(b.x0, x), min(b.y0, y)
	b.x1, b.y1 = max(b.x1, x), max(b.y1, y)
}

// octile is the 8-connected distance from (x, y) to the target bounding
// box; it never overestimates the remaining cost.
func (b bounds) octile(x, y int) float64 {
	ddx := max(b.x0-x, 0, x-b.x1)
	ddy := max(b.y0-y, 0, y-b.y1)
	lo, hi := min(ddx, ddy), max(ddx, ddy)
	return float64(hi-lo) + math.Sqrt2*float64(lo)
}
