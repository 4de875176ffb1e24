package route

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/grid"
)

func testGrid(t *testing.T, w, h float64, layers int) *grid.Grid {
	t.Helper()
	g, err := grid.New(grid.Spec{Width: w, Height: h, Pitch: 1, Layers: layers, Clearance: 0.5, TraceWidth: 0.25, ViaDiameter: 0.8})
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	return g
}

func request(net grid.NetID, from, to grid.Node) Request {
	return Request{Net: net, Sources: []grid.Node{from}, Targets: []grid.Node{to}, Options: DefaultOptions()}
}

func TestFindStraight(t *testing.T) {
	g := testGrid(t, 10, 3, 1)
	p, err := New(g).Find(context.Background(), request(1, grid.Node{X: 1, Y: 1, Layer: 0}, grid.Node{X: 8, Y: 1, Layer: 0}))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(p.Nodes) != 8 {
		t.Errorf("len(Nodes) = %d, want 8", len(p.Nodes))
	}
	if p.Cost != 7 {
		t.Errorf("Cost = %v, want 7", p.Cost)
	}
	if len(p.Hops) != 0 {
		t.Errorf("Hops = %v, want none", p.Hops)
	}
}

func TestFindDiagonal(t *testing.T) {
	g := testGrid(t, 8, 8, 1)
	p, err := New(g).Find(context.Background(), request(1, grid.Node{X: 0, Y: 0, Layer: 0}, grid.Node{X: 5, Y: 5, Layer: 0}))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if want := 5 * math.Sqrt2; math.Abs(p.Cost-want) > 1e-9 {
		t.Errorf("Cost = %v, want %v", p.Cost, want)
	}
}

func TestFindPrefersStraightRuns(t *testing.T) {
	g := testGrid(t, 10, 5, 1)
	p, err := New(g).Find(context.Background(), request(1, grid.Node{X: 0, Y: 0, Layer: 0}, grid.Node{X: 6, Y: 2, Layer: 0}))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	geo := p.Geometry(g, Copper{TraceWidth: 0.25})
	if len(geo.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(geo.Segments))
	}
	if got := len(geo.Segments[0].Points); got != 3 {
		t.Errorf("corner points = %d, want 3 (one bend)", got)
	}
}

func TestFindViaAroundWall(t *testing.T) {
	g := testGrid(t, 20, 10, 2)
	g.MarkObstacle(geom.Rect{MinX: 10, MinY: 0, MaxX: 11, MaxY: 10}, 0)

	p, err := New(g).Find(context.Background(), request(1, grid.Node{X: 2, Y: 5, Layer: 0}, grid.Node{X: 17, Y: 5, Layer: 0}))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if p.NewVias() != 2 {
		t.Errorf("NewVias = %d, want 2", p.NewVias())
	}
	if want := 15 + 2*DefaultViaCost; math.Abs(p.Cost-want) > 1e-9 {
		t.Errorf("Cost = %v, want %v", p.Cost, want)
	}
	for _, n := range p.Nodes {
		if n.Layer == 0 && n.X == 10 {
			t.Errorf("path crosses the wall at %v", n)
		}
	}
}

func TestFindPreferLayer(t *testing.T) {
	g := testGrid(t, 20, 10, 2)
	req := request(1, grid.Node{X: 2, Y: 5, Layer: 0}, grid.Node{X: 17, Y: 5, Layer: 0})
	req.Options.PreferLayer, req.Options.LayerBias = 1, 5
	p, err := New(g).Find(context.Background(), req)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if p.NewVias() != 2 {
		t.Errorf("NewVias = %d, want 2 (detour through the preferred layer)", p.NewVias())
	}
}

func TestFindZeroCosts(t *testing.T) {
	g := testGrid(t, 20, 10, 2)
	g.MarkObstacle(geom.Rect{MinX: 10, MinY: 0, MaxX: 11, MaxY: 10}, 0)
	req := request(1, grid.Node{X: 2, Y: 5, Layer: 0}, grid.Node{X: 17, Y: 5, Layer: 0})
	req.Options.TurnPenalty, req.Options.ViaCost = 0, 0

	p, err := New(g).Find(context.Background(), req)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if p.Cost != 15 {
		t.Errorf("Cost = %v, want 15 with free vias", p.Cost)
	}
}

func TestFindDeadlinePassed(t *testing.T) {
	g := testGrid(t, 10, 3, 1)
	req := request(1, grid.Node{X: 1, Y: 1, Layer: 0}, grid.Node{X: 8, Y: 1, Layer: 0})
	req.Options.Deadline = time.Now().Add(-time.Second)
	_, err := New(g).Find(context.Background(), req)
	if !errors.Is(err, errors.ErrCodeBudgetExceeded) {
		t.Errorf("Find = %v, want BUDGET_EXCEEDED", err)
	}
}

func TestFindNoPath(t *testing.T) {
	g := testGrid(t, 10, 10, 1)
	g.MarkObstacle(geom.Rect{MinX: 5, MinY: 0, MaxX: 6, MaxY: 10}, grid.AllLayers)
	_, err := New(g).Find(context.Background(), request(1, grid.Node{X: 1, Y: 1, Layer: 0}, grid.Node{X: 8, Y: 8, Layer: 0}))
	if !errors.Is(err, errors.ErrCodeNoPathFound) {
		t.Errorf("Find = %v, want NO_PATH_FOUND", err)
	}
}

func TestFindBlockedEndpoints(t *testing.T) {
	g := testGrid(t, 10, 10, 1)
	g.MarkObstacle(geom.Rect{MaxX: 10, MaxY: 10}, grid.AllLayers)
	_, err := New(g).Find(context.Background(), request(1, grid.Node{X: 1, Y: 1, Layer: 0}, grid.Node{X: 8, Y: 8, Layer: 0}))
	if !errors.Is(err, errors.ErrCodeNoPathFound) {
		t.Errorf("Find on saturated grid = %v, want NO_PATH_FOUND", err)
	}
}

func TestFindBudgetExceeded(t *testing.T) {
	g := testGrid(t, 50, 50, 2)
	req := request(1, grid.Node{X: 0, Y: 0, Layer: 0}, grid.Node{X: 49, Y: 49, Layer: 1})
	req.Options.NodeBudget = 10
	_, err := New(g).Find(context.Background(), req)
	if !errors.Is(err, errors.ErrCodeBudgetExceeded) {
		t.Errorf("Find = %v, want BUDGET_EXCEEDED", err)
	}
}

func TestFindCanceled(t *testing.T) {
	g := testGrid(t, 100, 100, 1)
	g.MarkObstacle(geom.Rect{MinX: 90, MinY: 0, MaxX: 91, MaxY: 100}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(g).Find(ctx, request(1, grid.Node{X: 0, Y: 0, Layer: 0}, grid.Node{X: 99, Y: 99, Layer: 0}))
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("Find = %v, want CANCELED", err)
	}
}

func TestRouteRespectsClearance(t *testing.T) {
	g := testGrid(t, 20, 12, 2)
	r := New(g)
	ctx := context.Background()
	if _, err := r.Route(ctx, request(1, grid.Node{X: 0, Y: 6, Layer: 0}, grid.Node{X: 19, Y: 6, Layer: 0})); err != nil {
		t.Fatalf("Route net 1: %v", err)
	}

	p, err := r.Route(ctx, request(2, grid.Node{X: 10, Y: 1, Layer: 0}, grid.Node{X: 10, Y: 10, Layer: 0}))
	if err != nil {
		t.Fatalf("Route net 2: %v", err)
	}
	if p.NewVias() == 0 {
		t.Error("net 2 crossed net 1 without changing layer")
	}
	rings := g.ClearanceRings()
	for _, n := range p.Nodes {
		for y := n.Y - rings; y <= n.Y+rings; y++ {
			for x := n.X - rings; x <= n.X+rings; x++ {
				m := grid.Node{X: x, Y: y, Layer: n.Layer}
				if g.InBounds(m) && g.NetAt(m) == 1 {
					t.Fatalf("net 2 node %v within clearance of net 1 at %v", n, m)
				}
			}
		}
	}
}

func TestCommitReleaseRestoresGrid(t *testing.T) {
	g := testGrid(t, 20, 10, 2)
	g.MarkObstacle(geom.Rect{MinX: 10, MinY: 0, MaxX: 11, MaxY: 10}, 0)
	before := g.Snapshot()

	r := New(g)
	p, err := r.Route(context.Background(), request(1, grid.Node{X: 2, Y: 5, Layer: 0}, grid.Node{X: 17, Y: 5, Layer: 0}))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if g.Snapshot().Count(grid.Via) == 0 {
		t.Fatal("committed path has no vias on the grid")
	}
	Release(g, 1, p)
	if diff := cmp.Diff(before, g.Snapshot()); diff != "" {
		t.Errorf("grid after release differs (-before +after):\n%s", diff)
	}
	for _, n := range p.Nodes {
		if !g.IsTraversable(n, 2) {
			t.Errorf("node %v not traversable after release", n)
		}
	}
}

func TestFindDeterministic(t *testing.T) {
	run := func() []Path {
		g := testGrid(t, 30, 20, 2)
		g.MarkObstacle(geom.Rect{MinX: 12, MinY: 3, MaxX: 14, MaxY: 17}, 0)
		r := New(g)
		var out []Path
		for i, req := range []Request{
			request(1, grid.Node{X: 1, Y: 10, Layer: 0}, grid.Node{X: 28, Y: 10, Layer: 0}),
			request(2, grid.Node{X: 1, Y: 2, Layer: 0}, grid.Node{X: 28, Y: 18, Layer: 0}),
			request(3, grid.Node{X: 15, Y: 1, Layer: 1}, grid.Node{X: 15, Y: 19, Layer: 1}),
		} {
			p, err := r.Route(context.Background(), req)
			if err != nil {
				t.Fatalf("request %d: %v", i, err)
			}
			p.Expanded = 0
			out = append(out, p)
		}
		return out
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("routing is not deterministic (-first +second):\n%s", diff)
	}
}

func TestFindMultiTarget(t *testing.T) {
	g := testGrid(t, 20, 5, 1)
	req := Request{
		Net:     1,
		Sources: []grid.Node{{X: 10, Y: 2, Layer: 0}},
		Targets: []grid.Node{{X: 1, Y: 2, Layer: 0}, {X: 13, Y: 2, Layer: 0}},
	}
	p, err := New(g).Find(context.Background(), req)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if last := p.Nodes[len(p.Nodes)-1]; last != (grid.Node{X: 13, Y: 2, Layer: 0}) {
		t.Errorf("reached %v, want nearest target {13 2 0}", last)
	}
}

func TestGeometry(t *testing.T) {
	g := testGrid(t, 20, 10, 2)
	g.MarkObstacle(geom.Rect{MinX: 10, MinY: 0, MaxX: 11, MaxY: 10}, 0)
	p, err := New(g).Find(context.Background(), request(1, grid.Node{X: 2, Y: 5, Layer: 0}, grid.Node{X: 17, Y: 5, Layer: 0}))
	if err != nil {
		t.Fatal(err)
	}
	geo := p.Geometry(g, Copper{TraceWidth: 0.25, ViaDiameter: 0.8, ViaDrill: 0.4})
	if len(geo.Vias) != 2 {
		t.Errorf("vias = %d, want 2", len(geo.Vias))
	}
	if math.Abs(geo.LengthMM-15) > 1e-9 {
		t.Errorf("LengthMM = %v, want 15", geo.LengthMM)
	}
	for _, s := range geo.Segments {
		if s.WidthMM != 0.25 {
			t.Errorf("segment width = %v, want 0.25", s.WidthMM)
		}
	}
	if geo.Vias[0].DrillMM != 0.4 {
		t.Errorf("via drill = %v, want 0.4", geo.Vias[0].DrillMM)
	}
}

func TestSimplify(t *testing.T) {
	in := []grid.Node{{X: 1, Y: 1, Layer: 0}, {X: 1, Y: 1, Layer: 0}, {X: 2, Y: 1, Layer: 0}, {X: 2, Y: 1, Layer: 1}, {X: 2, Y: 1, Layer: 0}, {X: 3, Y: 1, Layer: 0}}
	want := []grid.Node{{X: 1, Y: 1, Layer: 0}, {X: 2, Y: 1, Layer: 0}, {X: 3, Y: 1, Layer: 0}}
	if diff := cmp.Diff(want, simplify(in)); diff != "" {
		t.Errorf("simplify (-want +got):\n%s", diff)
	}
}
