package netlist_test

import (
	"fmt"

	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

func ExampleNetlist_PinsOf() {
	pins := []netlist.Pin{
		{ID: "1", Offset: geom.Pt(-1, 0)},
		{ID: "2", Offset: geom.Pt(1, 0)},
	}
	comps := []*netlist.Component{
		{Ref: "R1", Placement: netlist.Placement{X: 10, Y: 10}, Pins: pins},
		{Ref: "R2", Placement: netlist.Placement{X: 20, Y: 10, Rotation: 90}, Pins: pins},
	}
	nets := []*netlist.Net{
		{Name: "SIG", Endpoints: []netlist.Endpoint{{Ref: "R1", Pin: "2"}, {Ref: "R2", Pin: "1"}}},
	}
	nl, _ := netlist.New("demo", netlist.Board{Width: 30, Height: 20}, comps, nets)

	refs, _ := nl.PinsOf("SIG")
	for _, p := range refs {
		fmt.Printf("%s at (%.0f, %.0f)\n", p.Endpoint(), p.Position.X, p.Position.Y)
	}
	// Output:
	// R1.2 at (11, 10)
	// R2.1 at (20, 9)
}

func ExampleNetlist_Validate() {
	pins := []netlist.Pin{{ID: "1"}, {ID: "2"}}
	comps := []*netlist.Component{{Ref: "R1", Pins: pins}, {Ref: "R2", Pins: pins}}
	nets := []*netlist.Net{
		{Name: "NC", Endpoints: []netlist.Endpoint{{Ref: "R1", Pin: "1"}}},
		{Name: "SIG", Endpoints: []netlist.Endpoint{{Ref: "R1", Pin: "2"}, {Ref: "R2", Pin: "1"}}},
	}
	nl, _ := netlist.New("demo", netlist.Board{Width: 10, Height: 10}, comps, nets)

	warnings, err := nl.Validate()
	fmt.Println(err)
	for _, w := range warnings {
		fmt.Println(w.Message)
	}
	fmt.Println(len(nl.Nets()))
	// Output:
	// <nil>
	// net NC has fewer than 2 endpoints and was dropped
	// 1
}
