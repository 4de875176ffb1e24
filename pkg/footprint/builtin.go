package footprint

import (
	"context"
	"fmt"
	"slices"

	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

const (
	smdCourtyard = 0.25
	thtCourtyard = 0.5
	headerPitch  = 2.54
)

// chip describes a two-terminal SMD package by its imperial size code.
type chip struct {
	code          string
	width, height float64
	padX          float64
}

var chips = []chip{
	{"0402", 1.0, 0.5, 0.5},
	{"0603", 1.6, 0.8, 0.8},
	{"0805", 2.0, 1.25, 0.95},
	{"1206", 3.2, 1.6, 1.5},
}

// Builtin returns the source of built-in footprints.
func Builtin() Source { return builtin }

var builtin = newBuiltinSource()

type builtinSource struct {
	defs map[string]Definition
}

func newBuiltinSource() *builtinSource {
	s := &builtinSource{defs: make(map[string]Definition)}
	for _, c := range chips {
		for _, prefix := range []string{"R", "C", "L", "LED"} {
			s.add(twoTerminal(prefix+"_"+c.code, c))
		}
	}
	s.add(Definition{
		Name: "SOT-23", Width: 2.9, Height: 2.4, Courtyard: smdCourtyard,
		Pads: []netlist.Pin{
			smd("1", -0.95, 1.0), smd("2", 0.95, 1.0), smd("3", 0, -1.0),
		},
	})
	s.add(Definition{
		Name: "SOT-223", Width: 6.5, Height: 7.0, Courtyard: smdCourtyard,
		Pads: []netlist.Pin{
			smd("1", -2.3, 3.15), smd("2", 0, 3.15), smd("3", 2.3, 3.15), smd("4", 0, -3.15),
		},
	})
	s.add(Definition{
		Name: "TO-92", Width: 4.8, Height: 3.7, Courtyard: thtCourtyard,
		Pads: []netlist.Pin{
			tht("1", -1.27, 0), tht("2", 0, 0), tht("3", 1.27, 0),
		},
	})
	for _, n := range []int{8, 14, 16} {
		s.add(dual(fmt.Sprintf("SOIC-%d", n), n, 1.27, 5.4, netlist.SideTop))
	}
	for _, n := range []int{8, 14, 16} {
		s.add(dual(fmt.Sprintf("DIP-%d", n), n, headerPitch, 7.62, netlist.SideThrough))
	}
	for n := 1; n <= 10; n++ {
		s.add(header(n))
	}
	return s
}

func (s *builtinSource) add(d Definition) { s.defs[d.Name] = d }

func (s *builtinSource) Name() string { return "builtin" }

func (s *builtinSource) Lookup(_ context.Context, name string) (Definition, bool, error) {
	d, ok := s.defs[name]
	if !ok {
		return Definition{}, false, nil
	}
	d.Pads = slices.Clone(d.Pads)
	return d, true, nil
}

func (s *builtinSource) List(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.defs))
	for n := range s.defs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

func twoTerminal(name string, c chip) Definition {
	return Definition{
		Name: name, Width: c.width, Height: c.height, Courtyard: smdCourtyard,
		Pads: []netlist.Pin{
			{ID: "1", Offset: geom.Pt(-c.padX, 0), Role: netlist.RolePassive, Side: netlist.SideTop},
			{ID: "2", Offset: geom.Pt(c.padX, 0), Role: netlist.RolePassive, Side: netlist.SideTop},
		},
	}
}

// dual builds a two-row package numbered counter-clockwise from the top
// left, with rows span apart and pitch between neighbours.
func dual(name string, n int, pitch, span float64, side netlist.PadSide) Definition {
	k := n / 2
	top := -float64(k-1) * pitch / 2
	pads := make([]netlist.Pin, 0, n)
	for i := 0; i < k; i++ {
		pads = append(pads, pad(fmt.Sprint(i+1), -span/2, top+float64(i)*pitch, side))
	}
	for i := 0; i < k; i++ {
		pads = append(pads, pad(fmt.Sprint(k+i+1), span/2, -top-float64(i)*pitch, side))
	}
	courtyard := smdCourtyard
	if side == netlist.SideThrough {
		courtyard = thtCourtyard
	}
	return Definition{
		Name:      name,
		Width:     span + 1.6,
		Height:    float64(k-1)*pitch + 1.6,
		Courtyard: courtyard,
		Pads:      pads,
	}
}

func header(n int) Definition {
	top := -float64(n-1) * headerPitch / 2
	pads := make([]netlist.Pin, n)
	for i := range pads {
		pads[i] = tht(fmt.Sprint(i+1), 0, top+float64(i)*headerPitch)
	}
	return Definition{
		Name:      fmt.Sprintf("PinHeader_1x%02d_P2.54mm", n),
		Width:     headerPitch,
		Height:    float64(n) * headerPitch,
		Courtyard: thtCourtyard,
		Pads:      pads,
	}
}

func pad(id string, x, y float64, side netlist.PadSide) netlist.Pin {
	return netlist.Pin{ID: id, Offset: geom.Pt(x, y), Role: netlist.RoleSignal, Side: side}
}

func smd(id string, x, y float64) netlist.Pin { return pad(id, x, y, netlist.SideTop) }

func tht(id string, x, y float64) netlist.Pin { return pad(id, x, y, netlist.SideThrough) }
