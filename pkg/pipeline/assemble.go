package pipeline

import (
	"github.com/matzehuels/boardroute/pkg/autoroute"
	"github.com/matzehuels/boardroute/pkg/config"
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/grid"
	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

// assembly carries the run-level inputs of a layout.
type assembly struct {
	runID     string
	warnings  []*errors.Error
	placement []*errors.Error
	snapshot  bool
}

// assemble builds the routed layout of a placed and routed netlist.
func assemble(nl *netlist.Netlist, cfg config.Config, routed autoroute.Result, g *grid.Grid, a assembly) layout.Layout {
	l := layout.Layout{
		RunID:      a.runID,
		Design:     nl.Name,
		Board:      layout.Outline{Width: nl.Board.Width, Height: nl.Board.Height},
		Layers:     layout.LayerNames(cfg.LayerCount),
		TraceWidth: cfg.TraceWidthMM,
		Clearance:  cfg.ClearanceMM,
		Nets:       routed.Nets,
		Stats:      routed.Stats,
	}
	for _, c := range nl.Components() {
		l.Placements = append(l.Placements, layout.Placement{
			Ref:       c.Ref,
			X:         c.Placement.X,
			Y:         c.Placement.Y,
			Rotation:  c.Placement.Rotation,
			Fixed:     c.Placement.Fixed,
			Courtyard: c.Courtyard(),
		})
	}
	for _, w := range a.placement {
		l.Stats.PlacementWarnings = append(l.Stats.PlacementWarnings, w.Message)
	}
	for _, w := range a.warnings {
		l.Warnings = append(l.Warnings, layout.WarningOf(w))
	}
	if a.snapshot {
		s := g.Snapshot()
		l.Grid = &s
	}
	return l
}

// placementsOf returns the placements of a layout keyed by reference.
func placementsOf(l layout.Layout) map[string]netlist.Placement {
	out := make(map[string]netlist.Placement, len(l.Placements))
	for _, p := range l.Placements {
		out[p.Ref] = netlist.Placement{X: p.X, Y: p.Y, Rotation: p.Rotation, Placed: true, Fixed: p.Fixed}
	}
	return out
}

// warningsOf converts stored warnings back into structured errors.
func warningsOf(ws []layout.Warning) []*errors.Error {
	out := make([]*errors.Error, len(ws))
	for i, w := range ws {
		out[i] = errors.New(w.Code, "%s", w.Message).About(w.Subject)
	}
	return out
}
