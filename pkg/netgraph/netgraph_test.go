package netgraph

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

func comp(ref string, x float64, fixed bool, pins ...string) *netlist.Component {
	c := &netlist.Component{
		Ref:       ref,
		Value:     "10k",
		Footprint: netlist.Footprint{Width: 2, Height: 1},
		Placement: netlist.Placement{X: x, Y: 5, Placed: true, Fixed: fixed},
	}
	for i, id := range pins {
		c.Pins = append(c.Pins, netlist.Pin{ID: id, Offset: geom.Pt(float64(i), 0)})
	}
	return c
}

func net(name string, eps ...string) *netlist.Net {
	n := &netlist.Net{Name: name}
	for _, s := range eps {
		ep, _ := netlist.ParseEndpoint(s)
		n.Endpoints = append(n.Endpoints, ep)
	}
	return n
}

func bus(t *testing.T) *netlist.Netlist {
	t.Helper()
	nl, err := netlist.New("bus", netlist.Board{Width: 50, Height: 10},
		[]*netlist.Component{
			comp("U1", 5, true, "1", "2"),
			comp("R1", 20, false, "1", "2"),
			comp("R2", 35, false, "1", "2"),
		},
		[]*netlist.Net{
			net("SDA", "U1.1", "R1.1", "R2.1"),
			net("LOOP", "R1.1", "R1.2"),
		})
	if err != nil {
		t.Fatal(err)
	}
	return nl
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(bus(t), Options{})

	for _, want := range []string{
		"graph G {",
		`"U1" [label="U1\n10k", pos="0.500,-0.500!", style="rounded,filled,dashed"`,
		`"R1" [label="R1\n10k", pos="2.000,-0.500!"]`,
		`"R1" -- "U1" [label="SDA"`,
		`"R1" -- "R2" [label="SDA"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT output missing %q\n%s", want, dot)
		}
	}
	if strings.Contains(dot, `"R2" -- "U1"`) {
		t.Error("tree mode drew the long U1-R2 edge")
	}
	if strings.Contains(dot, "LOOP") {
		t.Error("net within one component drew an edge")
	}
}

func TestToDOTComplete(t *testing.T) {
	dot := ToDOT(bus(t), Options{Complete: true})
	if got := strings.Count(dot, `[label="SDA"`); got != 3 {
		t.Errorf("SDA edges = %d, want 3", got)
	}
}

func TestToDOTNetFilter(t *testing.T) {
	dot := ToDOT(bus(t), Options{Nets: []string{"LOOP"}})
	if strings.Contains(dot, "SDA") {
		t.Error("filtered net present")
	}
}

func TestToDOTStatusColors(t *testing.T) {
	tests := []struct {
		status layout.Status
		color  string
	}{
		{layout.StatusRouted, colorRouted},
		{layout.StatusPartial, colorPartial},
		{layout.StatusUnrouted, colorUnrouted},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			l := &layout.Layout{Nets: []layout.RoutedNet{{Name: "SDA", Status: tt.status}}}
			dot := ToDOT(bus(t), Options{Layout: l})
			if !strings.Contains(dot, `color="`+tt.color+`"`) {
				t.Errorf("missing color %s for %s", tt.color, tt.status)
			}
		})
	}
	if dot := ToDOT(bus(t), Options{}); !strings.Contains(dot, colorUnknown) {
		t.Error("nets without layout not drawn in the neutral color")
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(bus(t), Options{}))
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Error("output is not SVG")
	}
}
