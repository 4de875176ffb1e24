package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/boardroute/pkg/autoroute"
	"github.com/matzehuels/boardroute/pkg/buildinfo"
	"github.com/matzehuels/boardroute/pkg/cache"
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/grid"
	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/netlist"
	"github.com/matzehuels/boardroute/pkg/place"
)

// runNamespace scopes run ids derived from layout cache keys.
var runNamespace = uuid.MustParse("6f1c9a52-3d7e-4b0a-9c25-8e4f7d2b1a63")

// Runner executes pipeline runs against a shared layout cache.
//
// A Runner holds no per-run state; one Runner may serve many goroutines
// with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching and a nil keyer
// uses cache.DefaultKeyer.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute places and routes a copy of nl. The input netlist is never
// modified.
//
// Fatal errors (dangling references, unresolvable footprints, placement
// failure) return a nil result. Cancellation during routing returns the
// partial result together with a CANCELED error.
func (r *Runner) Execute(ctx context.Context, nl *netlist.Netlist, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, stageError("options", err)
	}
	res := &Result{}

	start := time.Now()
	work, warnings, err := r.Prepare(ctx, nl, opts)
	if err != nil {
		return nil, stageError("prepare", err)
	}
	res.Netlist = work
	res.Warnings = warnings
	res.Stats.PrepareTime = time.Since(start)
	if res.DesignHash, err = designHash(work); err != nil {
		return nil, stageError("prepare", err)
	}
	key := r.Keyer.LayoutKey(res.DesignHash, layoutKeyOpts(opts))

	if !opts.Refresh {
		if l, ok := r.cachedLayout(ctx, key); ok && work.ApplyPlacements(placementsOf(l)) == nil {
			res.Layout = l
			res.Warnings = warningsOf(l.Warnings)
			res.CacheInfo.LayoutHit = true
			opts.Logger.Info("layout cache hit", "design", work.Name, "run", l.RunID)
			return res, nil
		}
	}

	start = time.Now()
	pres, err := r.Place(ctx, work, opts)
	res.Placement = pres
	res.Stats.PlaceTime = time.Since(start)
	if err != nil {
		return nil, stageError("place", err)
	}
	res.Warnings = append(res.Warnings, pres.Warnings...)

	start = time.Now()
	routed, g, err := r.Route(ctx, work, opts)
	res.Stats.RouteTime = time.Since(start)
	if g == nil {
		return nil, stageError("route", err)
	}
	res.Warnings = append(res.Warnings, routed.Warnings...)
	res.Layout = assemble(work, *opts.Config, routed, g, assembly{
		runID:     uuid.NewSHA1(runNamespace, []byte(key)).String(),
		warnings:  res.Warnings,
		placement: pres.Warnings,
		snapshot:  opts.Snapshot,
	})
	if err != nil {
		return res, stageError("route", err)
	}

	if data, err := layout.Marshal(res.Layout); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.LayoutTTL); err != nil {
			opts.Logger.Warn("layout cache write failed", "design", work.Name, "err", err)
		}
	}
	return res, nil
}

// Prepare returns a validated copy of nl with footprints resolved, plus
// the validation warnings.
func (r *Runner) Prepare(ctx context.Context, nl *netlist.Netlist, opts Options) (*netlist.Netlist, []*errors.Error, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}
	work := nl.Clone()
	if err := opts.Library.Resolve(ctx, work.Components()); err != nil {
		return nil, nil, err
	}
	warnings, err := work.Validate()
	if err != nil {
		return nil, warnings, err
	}
	for _, w := range warnings {
		opts.Logger.Warn("net dropped", "net", w.Subject, "reason", w.Code)
	}
	opts.Logger.Debug("design prepared",
		"design", work.Name,
		"components", len(work.Components()),
		"nets", len(work.Nets()))
	return work, warnings, nil
}

// Place runs the placement engine on nl in place.
func (r *Runner) Place(ctx context.Context, nl *netlist.Netlist, opts Options) (place.Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return place.Result{}, err
	}
	strategy := opts.Config.PlacementStrategy
	opts.Hooks.OnPlaceStart(ctx, nl.Name, strategy, len(nl.Components()))
	start := time.Now()

	eng, err := place.New(*opts.Config, opts.Logger)
	if err != nil {
		opts.Hooks.OnPlaceComplete(ctx, nl.Name, strategy, time.Since(start), err)
		return place.Result{}, err
	}
	res, err := eng.Place(ctx, nl)
	opts.Hooks.OnPlaceComplete(ctx, nl.Name, res.Strategy, time.Since(start), err)
	return res, err
}

// Route routes a placed netlist. The grid is nil only when the board
// could not be built.
func (r *Runner) Route(ctx context.Context, nl *netlist.Netlist, opts Options) (autoroute.Result, *grid.Grid, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return autoroute.Result{}, nil, err
	}
	opts.Hooks.OnRouteStart(ctx, nl.Name, len(nl.Nets()))
	start := time.Now()

	res, g, err := autoroute.Route(ctx, nl, *opts.Config, autoroute.Options{
		Logger: opts.Logger,
		Hooks:  opts.RoutingHooks,
	})
	opts.Hooks.OnRouteComplete(ctx, nl.Name, res.Stats.CompletionRate, time.Since(start), err)
	if g != nil {
		opts.Logger.Info("routing complete",
			"design", nl.Name,
			"completion", res.Stats.CompletionRate,
			"vias", res.Stats.ViaCount,
			"unrouted", len(res.Stats.UnroutedNets),
			"duration", time.Since(start).Round(time.Millisecond))
	}
	return res, g, err
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func (r *Runner) cachedLayout(ctx context.Context, key string) (layout.Layout, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		if err != nil {
			r.Logger.Debug("layout cache read failed", "err", err)
		}
		return layout.Layout{}, false
	}
	l, err := layout.Unmarshal(data)
	if err != nil {
		return layout.Layout{}, false
	}
	return l, true
}

func designHash(nl *netlist.Netlist) (string, error) {
	data, err := netlist.Marshal(nl, netlist.FormatJSON)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "encode design")
	}
	return cache.Hash(data), nil
}

func layoutKeyOpts(opts Options) cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		ConfigHash: cache.Hash(opts.Config.Canonical()),
		Version:    buildinfo.Version,
	}
}
