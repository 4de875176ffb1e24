package autoroute

import (
	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/route"
)

// result assembles routed nets, in declaration order, and statistics.
func (o *Orchestrator) result() Result {
	c := route.Copper{
		TraceWidth:  o.cfg.TraceWidthMM,
		ViaDiameter: o.cfg.ViaDiameterMM,
		ViaDrill:    o.cfg.ViaDrillMM,
	}
	res := Result{
		Nets:     make([]layout.RoutedNet, 0, len(o.nets)),
		Warnings: o.warnings,
		Stats: layout.Stats{
			UnroutedNets:      []string{},
			PlacementWarnings: []string{},
			NetsAttempted:     len(o.nets),
		},
	}
	st := &res.Stats
	for _, ns := range o.nets {
		rn := layout.RoutedNet{
			Name:        ns.net.Name,
			ID:          int(ns.id),
			Status:      ns.status(),
			MatchGroup:  ns.net.MatchGroup,
			Edges:       len(ns.edges),
			RoutedEdges: ns.routedCount(),
			Failures:    ns.fails,
		}
		for _, p := range ns.paths {
			geo := p.Geometry(o.g, c)
			rn.Segments = append(rn.Segments, geo.Segments...)
			rn.Vias = append(rn.Vias, geo.Vias...)
			rn.LengthMM += geo.LengthMM
		}
		res.Nets = append(res.Nets, rn)

		st.TotalEdges += rn.Edges
		st.RoutedEdges += rn.RoutedEdges
		st.TotalTraces += len(rn.Segments)
		st.ViaCount += len(rn.Vias)
		st.TotalLengthMM += rn.LengthMM
		switch rn.Status {
		case layout.StatusRouted:
			st.NetsCompleted++
		case layout.StatusPartial:
			st.PartialNets = append(st.PartialNets, rn.Name)
			st.UnroutedNets = append(st.UnroutedNets, rn.Name)
		default:
			st.UnroutedNets = append(st.UnroutedNets, rn.Name)
		}
	}
	st.CompletionRate = 1
	if st.TotalEdges > 0 {
		st.CompletionRate = float64(st.RoutedEdges) / float64(st.TotalEdges)
	}
	st.LengthMatchedNets = LengthMatched(res.Nets, o.cfg.LengthMatchToleranceMM)
	return res
}

// LengthMatched counts the match groups of two or more nets whose members
// are all fully routed and whose lengths differ by at most tolerance.
func LengthMatched(nets []layout.RoutedNet, tolerance float64) int {
	lengths := make(map[string][]float64)
	broken := make(map[string]bool)
	for _, n := range nets {
		if n.MatchGroup == "" {
			continue
		}
		if n.Status != layout.StatusRouted {
			broken[n.MatchGroup] = true
		}
		lengths[n.MatchGroup] = append(lengths[n.MatchGroup], n.LengthMM)
	}
	var matched int
	for g, ls := range lengths {
		if broken[g] || len(ls) < 2 {
			continue
		}
		if floats.Max(ls)-floats.Min(ls) <= tolerance+1e-9 {
			matched++
		}
	}
	return matched
}
