package pipeline

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/matzehuels/boardroute/pkg/cache"
	"github.com/matzehuels/boardroute/pkg/config"
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/footprint"
	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// Fixtures
// =============================================================================

func named(ref, fp string) *netlist.Component {
	return &netlist.Component{Ref: ref, Footprint: netlist.Footprint{Name: fp}}
}

func net(name string, eps ...string) *netlist.Net {
	n := &netlist.Net{Name: name}
	for _, s := range eps {
		ep, _ := netlist.ParseEndpoint(s)
		n.Endpoints = append(n.Endpoints, ep)
	}
	return n
}

// blinky is an LED circuit whose components name library footprints and
// carry no positions.
func blinky(t *testing.T, extra ...*netlist.Net) *netlist.Netlist {
	t.Helper()
	nets := append([]*netlist.Net{
		net("VCC", "J1.1", "R1.1"),
		net("LED_A", "R1.2", "D1.1"),
		net("GND", "D1.2", "J1.2"),
	}, extra...)
	nl, err := netlist.New("blinky", netlist.Board{Width: 40, Height: 30},
		[]*netlist.Component{
			named("J1", "PinHeader_1x02_P2.54mm"),
			named("R1", "R_0805"),
			named("D1", "LED_0805"),
		}, nets)
	if err != nil {
		t.Fatalf("netlist.New: %v", err)
	}
	return nl
}

func quietRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, log.NewWithOptions(io.Discard, log.Options{}))
}

// =============================================================================
// Execute
// =============================================================================

func TestExecute(t *testing.T) {
	nl := blinky(t)
	res, err := quietRunner(nil).Execute(context.Background(), nl, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	l := res.Layout
	if l.Stats.CompletionRate != 1 {
		t.Errorf("CompletionRate = %v, want 1 (unrouted %v)", l.Stats.CompletionRate, l.Stats.UnroutedNets)
	}
	if len(l.Placements) != 3 || len(l.Nets) != 3 {
		t.Errorf("placements = %d, nets = %d, want 3 and 3", len(l.Placements), len(l.Nets))
	}
	if l.RunID == "" || l.Design != "blinky" {
		t.Errorf("RunID = %q, Design = %q", l.RunID, l.Design)
	}
	if want := []string{"F.Cu", "B.Cu"}; !cmp.Equal(l.Layers, want) {
		t.Errorf("Layers = %v, want %v", l.Layers, want)
	}
	for _, c := range res.Netlist.Components() {
		if !c.Placement.Placed || !c.Footprint.Resolved() {
			t.Errorf("%s not placed or resolved: %+v", c.Ref, c)
		}
	}
	if r1, _ := nl.Component("R1"); r1.Footprint.Resolved() || len(r1.Pins) != 0 {
		t.Error("Execute modified the input netlist")
	}
	if res.Placement.Strategy != config.StrategyGrid {
		t.Errorf("Strategy = %s, want grid", res.Placement.Strategy)
	}
	if l.Grid != nil {
		t.Error("grid snapshot included without Snapshot option")
	}
}

func TestExecuteDeterministic(t *testing.T) {
	r := quietRunner(nil)
	a, err := r.Execute(context.Background(), blinky(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Execute(context.Background(), blinky(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a.Layout, b.Layout); diff != "" {
		t.Errorf("layouts differ (-first +second):\n%s", diff)
	}
}

func TestExecuteSnapshot(t *testing.T) {
	res, err := quietRunner(nil).Execute(context.Background(), blinky(t), Options{Snapshot: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Layout.Grid == nil || res.Layout.Grid.Layers != 2 {
		t.Fatalf("Grid = %+v, want 2-layer snapshot", res.Layout.Grid)
	}
}

func TestExecuteCache(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache()
	r := quietRunner(mem)

	first, err := r.Execute(ctx, blinky(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.LayoutHit {
		t.Error("first run hit the cache")
	}
	if mem.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", mem.Len())
	}

	second, err := r.Execute(ctx, blinky(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.LayoutHit {
		t.Error("second run missed the cache")
	}
	if diff := cmp.Diff(first.Layout, second.Layout); diff != "" {
		t.Errorf("cached layout differs:\n%s", diff)
	}
	for _, p := range second.Layout.Placements {
		c, _ := second.Netlist.Component(p.Ref)
		if c.Placement.X != p.X || c.Placement.Y != p.Y {
			t.Errorf("%s netlist at (%v,%v), layout at (%v,%v)", p.Ref, c.Placement.X, c.Placement.Y, p.X, p.Y)
		}
	}

	refreshed, err := r.Execute(ctx, blinky(t), Options{Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.CacheInfo.LayoutHit {
		t.Error("Refresh run hit the cache")
	}

	cfg := config.Default()
	cfg.TraceWidthMM = 0.3
	other, err := r.Execute(ctx, blinky(t), Options{Config: &cfg})
	if err != nil {
		t.Fatal(err)
	}
	if other.CacheInfo.LayoutHit {
		t.Error("changed configuration hit the cache")
	}
}

func TestExecuteDanglingReference(t *testing.T) {
	nl := blinky(t, net("SENSE", "R1.1", "U9.3"))
	res, err := quietRunner(nil).Execute(context.Background(), nl, Options{})
	if !errors.Is(err, errors.ErrCodeDanglingReference) {
		t.Fatalf("err = %v, want DANGLING_REFERENCE", err)
	}
	if res != nil {
		t.Error("result returned for a dangling reference")
	}
}

func TestExecuteSingletonNet(t *testing.T) {
	nl := blinky(t, net("NC", "R1.1"))
	res, err := quietRunner(nil).Execute(context.Background(), nl, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := res.Layout.Net("NC"); ok {
		t.Error("singleton net routed")
	}
	found := false
	for _, w := range res.Layout.Warnings {
		if w.Code == errors.ErrCodeSingletonNet && w.Subject == "NC" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want SINGLETON_NET for NC", res.Layout.Warnings)
	}
}

func TestExecuteUnknownFootprint(t *testing.T) {
	nl, _ := netlist.New("x", netlist.Board{Width: 20, Height: 20},
		[]*netlist.Component{named("U1", "QFN-99")}, nil)
	_, err := quietRunner(nil).Execute(context.Background(), nl, Options{})
	if !errors.Is(err, errors.ErrCodeFootprintNotFound) {
		t.Fatalf("err = %v, want FOOTPRINT_NOT_FOUND", err)
	}
	if errors.GetSubject(err) != "U1" {
		t.Errorf("subject = %q, want U1", errors.GetSubject(err))
	}
}

func TestExecuteCustomLibrary(t *testing.T) {
	src, err := footprint.NewMemorySource(footprint.Definition{
		Name: "R_0805", Width: 3, Height: 1.5, Courtyard: 0.25,
		Pads: []netlist.Pin{
			{ID: "1", Offset: geom.Pt(-1.2, 0), Side: netlist.SideTop},
			{ID: "2", Offset: geom.Pt(1.2, 0), Side: netlist.SideTop},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	lib := footprint.NewLibrary(footprint.Options{Sources: []footprint.Source{src, footprint.Builtin()}})

	res, err := quietRunner(nil).Execute(context.Background(), blinky(t), Options{Library: lib})
	if err != nil {
		t.Fatal(err)
	}
	r1, _ := res.Netlist.Component("R1")
	if r1.Footprint.Width != 3 {
		t.Errorf("R1 width = %v, want 3 from the custom source", r1.Footprint.Width)
	}
	if res.Layout.Stats.CompletionRate != 1 {
		t.Errorf("CompletionRate = %v, want 1", res.Layout.Stats.CompletionRate)
	}
}

func TestExecuteInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.TraceWidthMM = -1
	_, err := quietRunner(nil).Execute(context.Background(), blinky(t), Options{Config: &cfg})
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := quietRunner(nil).Execute(ctx, blinky(t), Options{})
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("err = %v, want CANCELED", err)
	}
}

func TestExecuteHooks(t *testing.T) {
	hooks := &recordingHooks{}
	_, err := quietRunner(nil).Execute(context.Background(), blinky(t), Options{Hooks: hooks})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"place-start", "place-complete", "route-start", "route-complete"}
	if diff := cmp.Diff(want, hooks.events); diff != "" {
		t.Errorf("hook events (-want +got):\n%s", diff)
	}
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	cfg := config.Default()
	opts := Options{Config: &cfg}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Config == &cfg {
		t.Error("options share the caller's config")
	}
	if cfg.NodeBudget != 0 {
		t.Errorf("caller config modified: NodeBudget = %d", cfg.NodeBudget)
	}
	if opts.Config.NodeBudget == 0 {
		t.Error("preset not applied to options config")
	}
	if opts.Library == nil || opts.Logger == nil || opts.Hooks == nil || opts.RoutingHooks == nil {
		t.Error("defaults missing")
	}
	first := opts.Config
	if err := opts.ValidateAndSetDefaults(); err != nil || opts.Config != first {
		t.Error("ValidateAndSetDefaults not idempotent")
	}
}

// =============================================================================
// Batch
// =============================================================================

func TestBatch(t *testing.T) {
	jobs := []Job{
		{Name: "a", Netlist: blinky(t)},
		{Name: "broken", Netlist: blinky(t, net("X", "R1.1", "U9.1"))},
		{Netlist: blinky(t)},
		{Name: "empty"},
	}
	results, err := quietRunner(cache.NewMemoryCache()).Batch(context.Background(), jobs, BatchOptions{Workers: 2})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("results = %d, want %d", len(results), len(jobs))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("good jobs failed: %v, %v", results[0].Err, results[2].Err)
	}
	if results[2].Name != "blinky" {
		t.Errorf("unnamed job = %q, want netlist name", results[2].Name)
	}
	if !errors.Is(results[1].Err, errors.ErrCodeDanglingReference) {
		t.Errorf("broken job err = %v, want DANGLING_REFERENCE", results[1].Err)
	}
	if !errors.Is(results[3].Err, errors.ErrCodeInvalidInput) {
		t.Errorf("empty job err = %v, want INVALID_INPUT", results[3].Err)
	}

	s := Summarize(results)
	want := Summary{Designs: 4, Failed: 2, FullyRouted: 2, MeanCompletion: 1}
	if s != want {
		t.Errorf("Summarize = %+v, want %+v", s, want)
	}
}

func TestBatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs := []Job{{Netlist: blinky(t)}, {Netlist: blinky(t)}}
	results, err := quietRunner(nil).Batch(ctx, jobs, BatchOptions{})
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Fatalf("err = %v, want CANCELED", err)
	}
	for i, r := range results {
		if !errors.Is(r.Err, errors.ErrCodeCanceled) {
			t.Errorf("job %d err = %v, want CANCELED", i, r.Err)
		}
	}
}

// ===== helpers =====

type recordingHooks struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHooks) add(e string) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recordingHooks) OnPlaceStart(context.Context, string, string, int) { h.add("place-start") }
func (h *recordingHooks) OnPlaceComplete(context.Context, string, string, time.Duration, error) {
	h.add("place-complete")
}
func (h *recordingHooks) OnRouteStart(context.Context, string, int) { h.add("route-start") }
func (h *recordingHooks) OnRouteComplete(context.Context, string, float64, time.Duration, error) {
	h.add("route-complete")
}
