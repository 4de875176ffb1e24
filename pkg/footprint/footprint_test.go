package footprint

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

func TestBuiltinDefinitionsValid(t *testing.T) {
	ctx := context.Background()
	names, err := Builtin().List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no built-in footprints")
	}
	for _, name := range names {
		d, ok, err := Builtin().Lookup(ctx, name)
		if !ok || err != nil {
			t.Errorf("Lookup(%s) = (%v, %v)", name, ok, err)
			continue
		}
		if err := d.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestBuiltinPackages(t *testing.T) {
	tests := []struct {
		name string
		pads int
		side netlist.PadSide
	}{
		{"R_0805", 2, netlist.SideTop},
		{"LED_0603", 2, netlist.SideTop},
		{"SOT-23", 3, netlist.SideTop},
		{"SOIC-8", 8, netlist.SideTop},
		{"DIP-14", 14, netlist.SideThrough},
		{"TO-92", 3, netlist.SideThrough},
		{"PinHeader_1x04_P2.54mm", 4, netlist.SideThrough},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok, _ := Builtin().Lookup(context.Background(), tt.name)
			if !ok {
				t.Fatalf("%s missing", tt.name)
			}
			if len(d.Pads) != tt.pads {
				t.Errorf("pads = %d, want %d", len(d.Pads), tt.pads)
			}
			for _, p := range d.Pads {
				if p.Side != tt.side {
					t.Errorf("pad %s side = %q, want %q", p.ID, p.Side, tt.side)
				}
			}
		})
	}
}

func TestDualNumbering(t *testing.T) {
	d := dual("SOIC-8", 8, 1.27, 5.4, netlist.SideTop)
	want := map[string]geom.Point{
		"1": geom.Pt(-2.7, -1.905),
		"4": geom.Pt(-2.7, 1.905),
		"5": geom.Pt(2.7, 1.905),
		"8": geom.Pt(2.7, -1.905),
	}
	for _, p := range d.Pads {
		w, ok := want[p.ID]
		if !ok {
			continue
		}
		if p.Offset.Distance(w) > 1e-9 {
			t.Errorf("pad %s at %v, want %v", p.ID, p.Offset, w)
		}
	}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		code errors.Code
	}{
		{"ok", Definition{Name: "X", Width: 1, Height: 1, Pads: []netlist.Pin{{ID: "1"}}}, ""},
		{"no name", Definition{Width: 1, Height: 1}, errors.ErrCodeInvalidInput},
		{"zero width", Definition{Name: "X", Height: 1}, errors.ErrCodeInvalidGeometry},
		{"negative courtyard", Definition{Name: "X", Width: 1, Height: 1, Courtyard: -1}, errors.ErrCodeInvalidGeometry},
		{"empty pad id", Definition{Name: "X", Width: 1, Height: 1, Pads: []netlist.Pin{{}}}, errors.ErrCodeInvalidGeometry},
		{"duplicate pad", Definition{Name: "X", Width: 1, Height: 1, Pads: []netlist.Pin{{ID: "1"}, {ID: "1"}}}, errors.ErrCodeInvalidGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %q, want %q (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "BUZZER.yaml", `
width: 12
height: 12
courtyard: 0.5
pads:
  - {id: "+", offset: {x: -3.25, y: 0}}
  - {id: "-", offset: {x: 3.25, y: 0}}
`)
	write(t, dir, "XTAL.json", `{"name":"XTAL","width":5,"height":3.2,"pads":[{"id":"1","offset":{"x":-1.85,"y":0}},{"id":"2","offset":{"x":1.85,"y":0}}]}`)
	write(t, dir, "BROKEN.yaml", "width: [")
	write(t, dir, "notes.txt", "ignored")

	s := NewDirSource(dir)
	ctx := context.Background()

	d, ok, err := s.Lookup(ctx, "BUZZER")
	if err != nil || !ok {
		t.Fatalf("Lookup(BUZZER) = (%v, %v)", ok, err)
	}
	if d.Name != "BUZZER" || d.Width != 12 || len(d.Pads) != 2 || d.Pads[0].Offset.X != -3.25 {
		t.Errorf("BUZZER = %+v", d)
	}

	if d, ok, _ := s.Lookup(ctx, "XTAL"); !ok || d.Height != 3.2 {
		t.Errorf("XTAL = %+v, %v", d, ok)
	}
	if _, ok, err := s.Lookup(ctx, "NOPE"); ok || err != nil {
		t.Errorf("Lookup(NOPE) = (%v, %v), want miss", ok, err)
	}
	if _, _, err := s.Lookup(ctx, "BROKEN"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Lookup(BROKEN) err = %v, want INVALID_INPUT", err)
	}
	if _, _, err := s.Lookup(ctx, "../etc/passwd"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("path traversal err = %v, want INVALID_INPUT", err)
	}

	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"BROKEN", "BUZZER", "XTAL"}
	if len(names) != len(want) {
		t.Fatalf("List = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestLibraryGet(t *testing.T) {
	ctx := context.Background()
	lib := NewLibrary(Options{})

	d, err := lib.Get(ctx, "R_0603")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	d.Pads[0].ID = "mutated"
	again, _ := lib.Get(ctx, "R_0603")
	if again.Pads[0].ID != "1" {
		t.Error("caller mutation leaked into the library")
	}

	_, err = lib.Get(ctx, "NOPE")
	if !errors.Is(err, errors.ErrCodeFootprintNotFound) {
		t.Errorf("Get(NOPE) err = %v, want FOOTPRINT_NOT_FOUND", err)
	}
	if errors.GetSubject(err) != "NOPE" {
		t.Errorf("subject = %q, want NOPE", errors.GetSubject(err))
	}
}

func TestLibrarySourceOrder(t *testing.T) {
	override, _ := NewMemorySource(Definition{Name: "R_0603", Width: 9, Height: 9})
	lib := NewLibrary(Options{Sources: []Source{override, Builtin()}})
	d, err := lib.Get(context.Background(), "R_0603")
	if err != nil {
		t.Fatal(err)
	}
	if d.Width != 9 {
		t.Errorf("Width = %v, want first source to win", d.Width)
	}
}

func TestLibraryConcurrentGetLoadsOnce(t *testing.T) {
	src := &countingSource{Source: Builtin(), release: make(chan struct{})}
	hooks := &countingHooks{}
	lib := NewLibrary(Options{Sources: []Source{src}, Hooks: hooks})

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := lib.Get(context.Background(), "SOIC-8")
			if err == nil && len(d.Pads) != 8 {
				t.Errorf("pads = %d, want 8", len(d.Pads))
			}
			errs <- err
		}()
	}
	close(src.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Get: %v", err)
		}
	}
	if n := src.lookups.Load(); n != 1 {
		t.Errorf("source lookups = %d, want 1", n)
	}
	if n := hooks.sets.Load(); n != 1 {
		t.Errorf("cache sets = %d, want 1", n)
	}
	if _, err := lib.Get(context.Background(), "SOIC-8"); err != nil {
		t.Fatal(err)
	}
	if hooks.hits.Load() == 0 {
		t.Error("no cache hit after load")
	}
}

func TestLibraryResolve(t *testing.T) {
	lib := NewLibrary(Options{})
	comps := []*netlist.Component{
		{Ref: "R1", Footprint: netlist.Footprint{Name: "R_0805"}},
		{Ref: "U1", Footprint: netlist.Footprint{Name: "SOT-23", Courtyard: 1}, Pins: []netlist.Pin{{ID: "G"}}},
		{Ref: "J1", Footprint: netlist.Footprint{Width: 3, Height: 3}},
	}
	if err := lib.Resolve(context.Background(), comps); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !comps[0].Footprint.Resolved() || len(comps[0].Pins) != 2 {
		t.Errorf("R1 = %+v", comps[0])
	}
	if comps[1].Footprint.Courtyard != 1 {
		t.Errorf("U1 courtyard = %v, want component override 1", comps[1].Footprint.Courtyard)
	}
	if len(comps[1].Pins) != 1 || comps[1].Pins[0].ID != "G" {
		t.Errorf("U1 pins = %+v, want declared pins kept", comps[1].Pins)
	}
	if comps[2].Footprint.Name != "" {
		t.Errorf("J1 footprint touched: %+v", comps[2].Footprint)
	}
}

func TestLibraryResolveUnknown(t *testing.T) {
	lib := NewLibrary(Options{})
	comps := []*netlist.Component{{Ref: "Q9", Footprint: netlist.Footprint{Name: "SOT-999"}}}
	err := lib.Resolve(context.Background(), comps)
	if !errors.Is(err, errors.ErrCodeFootprintNotFound) {
		t.Fatalf("err = %v, want FOOTPRINT_NOT_FOUND", err)
	}
	if errors.GetSubject(err) != "Q9" {
		t.Errorf("subject = %q, want Q9", errors.GetSubject(err))
	}
}

func TestLibraryNames(t *testing.T) {
	lib := NewLibrary(Options{})
	if err := lib.Add(Definition{Name: "ZZ_CUSTOM", Width: 1, Height: 1}); err != nil {
		t.Fatal(err)
	}
	names, err := lib.Names(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if names[len(names)-1] != "ZZ_CUSTOM" {
		t.Errorf("last name = %s, want ZZ_CUSTOM", names[len(names)-1])
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted and unique at %d: %s, %s", i, names[i-1], names[i])
		}
	}
}

func TestLibraryCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLibrary(Options{}).Get(ctx, "R_0603")
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("err = %v, want CANCELED", err)
	}
}

func TestLibraryCanceledWaiterDoesNotFailOthers(t *testing.T) {
	src := &countingSource{Source: Builtin(), release: make(chan struct{}), started: make(chan struct{}, 1)}
	lib := NewLibrary(Options{Sources: []Source{src}})

	// The first caller starts the shared load and then gives up.
	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := lib.Get(ctx, "SOIC-8")
		first <- err
	}()
	<-src.started
	cancel()
	if err := <-first; !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("canceled caller err = %v, want CANCELED", err)
	}

	second := make(chan error, 1)
	go func() {
		d, err := lib.Get(context.Background(), "SOIC-8")
		if err == nil && len(d.Pads) != 8 {
			err = errors.New(errors.ErrCodeInternal, "pads = %d, want 8", len(d.Pads))
		}
		second <- err
	}()
	close(src.release)
	if err := <-second; err != nil {
		t.Errorf("waiting caller err = %v, want nil", err)
	}
	if n := src.lookups.Load(); n != 1 {
		t.Errorf("source lookups = %d, want 1", n)
	}
}

// ===== helpers =====

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

type countingSource struct {
	Source
	release chan struct{}
	started chan struct{}
	lookups atomic.Int32
}

func (s *countingSource) Lookup(ctx context.Context, name string) (Definition, bool, error) {
	s.lookups.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	<-s.release
	return s.Source.Lookup(ctx, name)
}

type countingHooks struct {
	hits, misses, sets atomic.Int32
}

func (h *countingHooks) OnCacheHit(context.Context, string)      { h.hits.Add(1) }
func (h *countingHooks) OnCacheMiss(context.Context, string)     { h.misses.Add(1) }
func (h *countingHooks) OnCacheSet(context.Context, string, int) { h.sets.Add(1) }
