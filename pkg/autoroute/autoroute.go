package autoroute

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boardroute/pkg/config"
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/grid"
	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/netlist"
	"github.com/matzehuels/boardroute/pkg/observability"
	"github.com/matzehuels/boardroute/pkg/route"
)

// Options configures an Orchestrator.
type Options struct {
	Logger *log.Logger
	Hooks  observability.RoutingHooks
}

// Result is the outcome of one routing pass.
type Result struct {
	Nets     []layout.RoutedNet
	Stats    layout.Stats
	Warnings []*errors.Error
}

// Orchestrator routes every net of one design on one grid.
type Orchestrator struct {
	nl     *netlist.Netlist
	g      *grid.Grid
	cfg    config.Config
	router *route.Router
	logger *log.Logger
	hooks  observability.RoutingHooks

	nets     []*netState // declaration order
	done     []*netState // routing order
	ripped   map[grid.NetID]bool
	warnings []*errors.Error
}

// New prepares routing of nl on g: nets receive ids in declaration order,
// every pad is claimed for its net, and each net may enter the courtyards
// of the components it connects. g must already carry courtyards and
// keep-outs (see [NewGrid]).
func New(nl *netlist.Netlist, g *grid.Grid, cfg config.Config, opts Options) (*Orchestrator, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Hooks == nil {
		opts.Hooks = observability.Routing()
	}
	o := &Orchestrator{
		nl:     nl,
		g:      g,
		cfg:    cfg,
		router: route.New(g),
		logger: opts.Logger,
		hooks:  opts.Hooks,
		ripped: make(map[grid.NetID]bool),
	}
	for i, n := range nl.Nets() {
		ns, err := o.newNetState(n, i)
		if err != nil {
			return nil, err
		}
		o.nets = append(o.nets, ns)
	}
	return o, nil
}

// Route builds the grid for a placed netlist and routes it.
func Route(ctx context.Context, nl *netlist.Netlist, cfg config.Config, opts Options) (Result, *grid.Grid, error) {
	g, err := NewGrid(nl, cfg)
	if err != nil {
		return Result{}, nil, err
	}
	o, err := New(nl, g, cfg, opts)
	if err != nil {
		return Result{}, nil, err
	}
	res, err := o.Run(ctx)
	return res, g, err
}

// Grid returns the grid being routed.
func (o *Orchestrator) Grid() *grid.Grid { return o.g }

// Run routes all nets in priority order. Per-net failures are recorded in
// the result; the only error is CANCELED, returned with the best-effort
// result so far.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	order := orderNets(o.nets)
	o.logger.Info("routing", "nets", len(order), "layers", o.g.Layers(), "grid", fmt.Sprintf("%dx%d", o.g.Cols(), o.g.Rows()))

	for _, ns := range order {
		if err := ctx.Err(); err != nil {
			return o.result(), errors.Wrap(errors.ErrCodeCanceled, err, "routing canceled before net %s", ns.net.Name)
		}
		if err := o.routeNet(ctx, ns); err != nil {
			return o.result(), err
		}
		o.done = append(o.done, ns)
	}

	res := o.result()
	o.logger.Info("routing complete",
		"completion", fmt.Sprintf("%.0f%%", res.Stats.CompletionRate*100),
		"vias", res.Stats.ViaCount,
		"unrouted", len(res.Stats.UnroutedNets),
		"duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// routeNet routes every tree edge of one net, with rip-up when enabled.
func (o *Orchestrator) routeNet(ctx context.Context, ns *netState) error {
	start := time.Now()
	o.hooks.OnNetStart(ctx, ns.net.Name, len(ns.edges))

	if err := o.routeEdges(ctx, ns, o.cfg.RipUp); err != nil {
		return err
	}

	status := ns.status()
	o.hooks.OnNetComplete(ctx, ns.net.Name, string(status), ns.routedCount(), len(ns.edges), time.Since(start), ns.lastErr)
	if status == layout.StatusRouted {
		o.logger.Debug("net routed", "net", ns.net.Name, "edges", len(ns.edges), "vias", ns.newVias())
	} else {
		o.logger.Warn("net not fully routed", "net", ns.net.Name, "status", status,
			"routed", ns.routedCount(), "edges", len(ns.edges), "err", errors.UserMessage(ns.lastErr))
	}
	return nil
}

// routeEdges (re)routes all edges of ns from its pads. It returns an error
// only on cancellation.
func (o *Orchestrator) routeEdges(ctx context.Context, ns *netState, ripUp bool) error {
	ns.reset()
	var deadline time.Time
	if d := o.cfg.GetNetTimeout(); d > 0 {
		deadline = time.Now().Add(d)
	}
	for ei, e := range ns.edges {
		p, err := o.routeEdge(ctx, ns, e, deadline)
		if err != nil && errors.Is(err, errors.ErrCodeCanceled) {
			return err
		}
		if err != nil && ripUp {
			p, err = o.ripUp(ctx, ns, e, deadline, err)
			if err != nil && errors.Is(err, errors.ErrCodeCanceled) {
				return err
			}
		}
		if err != nil {
			ns.fail(e, err)
			continue
		}
		ns.commit(ei, e, p)
	}
	return nil
}

// routeEdge connects the child pin's copper to the parent pin's copper.
//
// Only BUDGET_EXCEEDED is retried. Each retry doubles the node budget,
// reverses the search direction on odd attempts and biases the search
// toward the next layer in turn. NO_PATH_FOUND means the reachable region
// was exhausted, which no change of costs or budget can fix.
func (o *Orchestrator) routeEdge(ctx context.Context, ns *netState, e edge, deadline time.Time) (route.Path, error) {
	if ns.groups.same(e.u, e.v) {
		return route.Path{}, nil
	}
	src, dst := ns.groups.nodes(e.v), ns.groups.nodes(e.u)
	if len(src) == 0 || len(dst) == 0 {
		blocked := ns.pins[e.v]
		if len(dst) == 0 {
			blocked = ns.pins[e.u]
		}
		return route.Path{}, errors.New(errors.ErrCodeNoPathFound,
			"net %s: pad %s is blocked", ns.net.Name, blocked.ref.Endpoint()).About(ns.net.Name)
	}

	var lastErr error
	budget := o.cfg.NodeBudget
	for attempt := 0; attempt <= o.cfg.GetRetries(); attempt++ {
		opts := route.Options{
			TurnPenalty: o.cfg.GetTurnPenalty(),
			ViaCost:     o.cfg.GetViaCost(),
			NodeBudget:  budget,
			Deadline:    deadline,
		}
		req := route.Request{Net: ns.id, Sources: src, Targets: dst}
		if attempt > 0 {
			o.hooks.OnRetry(ctx, ns.net.Name, attempt, lastErr)
			opts.PreferLayer = (attempt - 1) % o.g.Layers()
			opts.LayerBias = 1
			if attempt%2 == 1 {
				req.Sources, req.Targets = dst, src
			}
		}
		req.Options = opts

		p, err := o.router.Route(ctx, req)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, errors.ErrCodeCanceled) {
			return route.Path{}, err
		}
		lastErr = err
		if !errors.Is(err, errors.ErrCodeBudgetExceeded) {
			break
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
		if budget < math.MaxInt/2 {
			budget *= 2
		}
	}
	return route.Path{}, errors.Wrap(errors.GetCode(lastErr), lastErr,
		"net %s: %s to %s", ns.net.Name, ns.pins[e.v].ref.Endpoint(), ns.pins[e.u].ref.Endpoint()).About(ns.net.Name)
}
