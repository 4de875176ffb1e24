package autoroute

import (
	"github.com/matzehuels/boardroute/pkg/config"
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/grid"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

// NewGrid builds the routing grid of a placed netlist: board keep-outs
// block every layer and each component's courtyard is owned by that
// component on the layers its pads occupy.
func NewGrid(nl *netlist.Netlist, cfg config.Config) (*grid.Grid, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	g, err := grid.New(grid.Spec{
		Width:       nl.Board.Width,
		Height:      nl.Board.Height,
		Pitch:       cfg.GridPitchMM,
		Layers:      cfg.LayerCount,
		Clearance:   cfg.ClearanceMM,
		TraceWidth:  cfg.TraceWidthMM,
		ViaDiameter: cfg.ViaDiameterMM,
	})
	if err != nil {
		return nil, err
	}
	for _, r := range nl.Board.Keepouts {
		g.MarkObstacle(r, grid.AllLayers)
	}
	for _, pg := range nl.Board.KeepoutPolygons {
		g.MarkPolygon(pg, grid.AllLayers)
	}
	for i, c := range nl.Components() {
		if !c.Placement.Placed {
			return nil, errors.New(errors.ErrCodePlacementFailed, "component %s is not placed", c.Ref).About(c.Ref)
		}
		if !c.Footprint.Resolved() {
			continue
		}
		g.MarkCourtyard(c.Courtyard(), courtyardLayer(c, g.Layers()), i)
	}
	return g, nil
}

// courtyardLayer returns the layer a component body blocks: the pad side
// for pure SMD parts, every layer otherwise.
func courtyardLayer(c *netlist.Component, layers int) int {
	if len(c.Pins) == 0 {
		return grid.AllLayers
	}
	side := c.Pins[0].Side
	for _, p := range c.Pins {
		if p.Side == netlist.SideThrough || p.Side != side {
			return grid.AllLayers
		}
	}
	if side == netlist.SideBottom {
		return layers - 1
	}
	return 0
}
