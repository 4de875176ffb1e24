package netlist

import (
	"math"
	"testing"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
)

func resistor(ref string, x, y float64, rot int) *Component {
	return &Component{
		Ref:       ref,
		Kind:      "resistor",
		Footprint: Footprint{Name: "R_0805", Width: 2, Height: 1.25, Courtyard: 0.25},
		Placement: Placement{X: x, Y: y, Rotation: rot, Placed: true},
		Pins: []Pin{
			{ID: "1", Offset: geom.Pt(-0.95, 0), Role: RolePassive, Side: SideTop},
			{ID: "2", Offset: geom.Pt(0.95, 0), Role: RolePassive, Side: SideTop},
		},
	}
}

func mustNew(t *testing.T, comps []*Component, nets []*Net) *Netlist {
	t.Helper()
	nl, err := New("test", Board{Width: 50, Height: 30}, comps, nets)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return nl
}

func TestNewDuplicateReference(t *testing.T) {
	_, err := New("dup", Board{Width: 10, Height: 10},
		[]*Component{resistor("R1", 1, 1, 0), resistor("R1", 5, 5, 0)}, nil)
	if !errors.Is(err, errors.ErrCodeDuplicateReference) {
		t.Fatalf("New duplicate = %v, want DUPLICATE_REFERENCE", err)
	}
	if got := errors.GetSubject(err); got != "R1" {
		t.Errorf("subject = %q, want R1", got)
	}
}

func TestNewDuplicateNet(t *testing.T) {
	nets := []*Net{
		{Name: "A", Endpoints: []Endpoint{{"R1", "1"}, {"R2", "1"}}},
		{Name: "A", Endpoints: []Endpoint{{"R1", "2"}, {"R2", "2"}}},
	}
	_, err := New("dup", Board{}, []*Component{resistor("R1", 0, 0, 0), resistor("R2", 0, 0, 0)}, nets)
	if !errors.Is(err, errors.ErrCodeDuplicateReference) {
		t.Fatalf("New duplicate net = %v, want DUPLICATE_REFERENCE", err)
	}
}

func TestPinsOfRotation(t *testing.T) {
	tests := []struct {
		rot  int
		want geom.Point
	}{
		{0, geom.Pt(10.95, 5)},
		{90, geom.Pt(10, 5.95)},
		{180, geom.Pt(9.05, 5)},
		{270, geom.Pt(10, 4.05)},
	}
	for _, tt := range tests {
		nl := mustNew(t,
			[]*Component{resistor("R1", 10, 5, tt.rot), resistor("R2", 20, 5, 0)},
			[]*Net{{Name: "N", Endpoints: []Endpoint{{"R1", "2"}, {"R2", "1"}}}})
		pins, err := nl.PinsOf("N")
		if err != nil {
			t.Fatalf("PinsOf: %v", err)
		}
		got := pins[0].Position
		if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
			t.Errorf("rotation %d: pin = %v, want %v", tt.rot, got, tt.want)
		}
	}
}

func TestPinsOfDeclarationOrder(t *testing.T) {
	nl := mustNew(t,
		[]*Component{resistor("R1", 5, 5, 0), resistor("R2", 15, 5, 0), resistor("R3", 25, 5, 0)},
		[]*Net{{Name: "N", Endpoints: []Endpoint{{"R3", "1"}, {"R1", "2"}, {"R2", "1"}}}})
	pins, err := nl.PinsOf("N")
	if err != nil {
		t.Fatalf("PinsOf: %v", err)
	}
	want := []string{"R3.1", "R1.2", "R2.1"}
	for i, p := range pins {
		if got := p.Endpoint().String(); got != want[i] {
			t.Errorf("pin %d = %s, want %s", i, got, want[i])
		}
	}
}

func TestPinsOfUnknownNet(t *testing.T) {
	nl := mustNew(t, nil, nil)
	if _, err := nl.PinsOf("missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("PinsOf(missing) = %v, want NOT_FOUND", err)
	}
}

func TestValidateDanglingReference(t *testing.T) {
	tests := []struct {
		name string
		ep   Endpoint
	}{
		{"unknown component", Endpoint{"U9", "1"}},
		{"unknown pin", Endpoint{"R2", "7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nl := mustNew(t,
				[]*Component{resistor("R1", 5, 5, 0), resistor("R2", 15, 5, 0)},
				[]*Net{{Name: "BAD", Endpoints: []Endpoint{{"R1", "1"}, tt.ep}}})
			_, err := nl.Validate()
			if !errors.Is(err, errors.ErrCodeDanglingReference) {
				t.Fatalf("Validate = %v, want DANGLING_REFERENCE", err)
			}
			if got := errors.GetSubject(err); got != "BAD" {
				t.Errorf("subject = %q, want BAD", got)
			}
		})
	}
}

func TestValidateSingletonNet(t *testing.T) {
	nl := mustNew(t,
		[]*Component{resistor("R1", 5, 5, 0), resistor("R2", 15, 5, 0)},
		[]*Net{
			{Name: "LONELY", Endpoints: []Endpoint{{"R1", "1"}}},
			{Name: "DUPED", Endpoints: []Endpoint{{"R1", "2"}, {"R1", "2"}}},
			{Name: "OK", Endpoints: []Endpoint{{"R1", "2"}, {"R2", "1"}}},
		})
	warnings, err := nl.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %d, want 2", len(warnings))
	}
	for _, w := range warnings {
		if w.Code != errors.ErrCodeSingletonNet {
			t.Errorf("warning code = %s, want SINGLETON_NET", w.Code)
		}
	}
	if len(nl.Nets()) != 1 || nl.Nets()[0].Name != "OK" {
		t.Errorf("nets after validate = %v, want [OK]", nl.Nets())
	}
	if _, ok := nl.Net("LONELY"); ok {
		t.Error("LONELY still indexed after validate")
	}
}

func TestApplyPlacements(t *testing.T) {
	nl := mustNew(t, []*Component{resistor("R1", 5, 5, 0)}, nil)
	if err := nl.ApplyPlacements(map[string]Placement{"R1": {X: 7, Y: 8, Rotation: 95, Placed: true}}); err != nil {
		t.Fatalf("ApplyPlacements: %v", err)
	}
	c, _ := nl.Component("R1")
	if c.Placement.X != 7 || c.Placement.Y != 8 || c.Placement.Rotation != 90 {
		t.Errorf("placement = %+v, want (7,8) rot 90", c.Placement)
	}
	err := nl.ApplyPlacements(map[string]Placement{"Q1": {}})
	if !errors.Is(err, errors.ErrCodeDanglingReference) {
		t.Errorf("ApplyPlacements(unknown) = %v, want DANGLING_REFERENCE", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	nl := mustNew(t,
		[]*Component{resistor("R1", 5, 5, 0), resistor("R2", 15, 5, 0)},
		[]*Net{{Name: "N", Endpoints: []Endpoint{{"R1", "2"}, {"R2", "1"}}}})
	cp := nl.Clone()
	if err := cp.ApplyPlacements(map[string]Placement{"R1": {X: 40, Y: 20}}); err != nil {
		t.Fatal(err)
	}
	cp.Nets()[0].Endpoints[0].Pin = "1"

	orig, _ := nl.Component("R1")
	if orig.Placement.X != 5 {
		t.Errorf("original placement X = %v, want 5", orig.Placement.X)
	}
	if nl.Nets()[0].Endpoints[0].Pin != "2" {
		t.Error("clone shares endpoint storage with original")
	}
}

func TestCourtyard(t *testing.T) {
	c := resistor("R1", 10, 10, 90)
	got := c.Courtyard()
	want := geom.Rect{MinX: 9.125, MinY: 8.75, MaxX: 10.875, MaxY: 11.25}
	if math.Abs(got.MinX-want.MinX) > 1e-9 || math.Abs(got.MaxY-want.MaxY) > 1e-9 {
		t.Errorf("Courtyard() = %+v, want %+v", got, want)
	}
}

func TestInferClass(t *testing.T) {
	tests := map[string]string{
		"GND":    NetGround,
		"AGND":   NetGround,
		"VCC":    NetPower,
		"+3V3":   NetPower,
		"VDD_IO": NetPower,
		"SDA":    NetSignal,
		"LED_A":  NetSignal,
	}
	for name, want := range tests {
		if got := InferClass(name); got != want {
			t.Errorf("InferClass(%q) = %q, want %q", name, got, want)
		}
	}
	n := &Net{Name: "GND", Class: NetSignal}
	if got := n.EffectiveClass(); got != NetSignal {
		t.Errorf("EffectiveClass with explicit class = %q, want signal", got)
	}
}

func TestParseEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("U1.A.1")
	if err != nil {
		t.Fatalf("ParseEndpoint: %v", err)
	}
	if ep.Ref != "U1" || ep.Pin != "A.1" {
		t.Errorf("ParseEndpoint = %+v, want U1 / A.1", ep)
	}
	for _, bad := range []string{"", "U1", ".1", "U1."} {
		if _, err := ParseEndpoint(bad); err == nil {
			t.Errorf("ParseEndpoint(%q) succeeded, want error", bad)
		}
	}
}
