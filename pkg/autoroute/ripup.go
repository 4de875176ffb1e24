package autoroute

import (
	"context"
	"time"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/route"
)

const (
	// maxVictims bounds how many nets one blocked edge may try to tear up.
	maxVictims = 3
	// ripUpMarginMM widens the search box around a blocked edge.
	ripUpMarginMM = 2.0
)

// ripUp tries to free room for a blocked edge by tearing up one nearby,
// already routed net, routing the edge, and re-routing the torn net. Each
// net is torn up at most once per run. Critical and length-matched nets
// are never torn up. On failure the original cause is returned and the
// grid is as before.
func (o *Orchestrator) ripUp(ctx context.Context, ns *netState, e edge, deadline time.Time, cause error) (route.Path, error) {
	a, b := ns.pins[e.u].ref.Position, ns.pins[e.v].ref.Position
	box := geom.Rect{MinX: min(a.X, b.X), MinY: min(a.Y, b.Y), MaxX: max(a.X, b.X), MaxY: max(a.Y, b.Y)}.Expand(ripUpMarginMM)
	for _, victim := range o.victims(ns, box) {
		o.ripped[victim.id] = true
		before := victim.routedCount()
		saved := victim.save()
		victim.tearUp(o.g)

		p, err := o.routeEdge(ctx, ns, e, deadline)
		if err != nil {
			o.restore(victim, saved)
			if errors.Is(err, errors.ErrCodeCanceled) {
				return route.Path{}, err
			}
			o.hooks.OnRipUp(ctx, victim.net.Name, ns.net.Name, false)
			continue
		}
		if err := o.routeEdges(ctx, victim, false); err != nil {
			victim.tearUp(o.g)
			route.Release(o.g, ns.id, p)
			o.restore(victim, saved)
			return route.Path{}, err
		}
		if victim.routedCount() >= before {
			o.hooks.OnRipUp(ctx, victim.net.Name, ns.net.Name, true)
			o.logger.Debug("rip-up accepted", "torn", victim.net.Name, "for", ns.net.Name)
			return p, nil
		}
		victim.tearUp(o.g)
		route.Release(o.g, ns.id, p)
		o.restore(victim, saved)
		o.hooks.OnRipUp(ctx, victim.net.Name, ns.net.Name, false)
	}
	return route.Path{}, cause
}

// victims lists up to maxVictims routed nets, most recent first, with
// copper inside box.
func (o *Orchestrator) victims(ns *netState, box geom.Rect) []*netState {
	var out []*netState
	for i := len(o.done) - 1; i >= 0 && len(out) < maxVictims; i-- {
		v := o.done[i]
		if v == ns || o.ripped[v.id] || v.prioritized() || len(v.paths) == 0 {
			continue
		}
		if o.crosses(v, box) {
			out = append(out, v)
		}
	}
	return out
}

func (o *Orchestrator) crosses(ns *netState, box geom.Rect) bool {
	for _, p := range ns.paths {
		for _, n := range p.Nodes {
			if box.Contains(o.g.Center(n.Cell())) {
				return true
			}
		}
	}
	return false
}

// saved is a net's routing outcome, kept while it is torn up.
type saved struct {
	groups  *groups
	routed  []bool
	paths   []route.Path
	fails   []string
	lastErr error
}

func (ns *netState) save() saved {
	return saved{groups: ns.groups, routed: ns.routed, paths: ns.paths, fails: ns.fails, lastErr: ns.lastErr}
}

// restore re-commits a torn-up net's previous paths. The cells were the
// net's own before the tear-up and nothing else has claimed them since.
func (o *Orchestrator) restore(ns *netState, s saved) {
	for _, p := range s.paths {
		if err := route.Commit(o.g, ns.id, p); err != nil {
			o.logger.Error("restoring torn-up net", "net", ns.net.Name, "err", err)
		}
	}
	ns.groups, ns.routed, ns.paths, ns.fails, ns.lastErr = s.groups, s.routed, s.paths, s.fails, s.lastErr
}
