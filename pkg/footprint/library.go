package footprint

import (
	"context"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/netlist"
	"github.com/matzehuels/boardroute/pkg/observability"
)

// cacheKeyType labels library events in cache hooks.
const cacheKeyType = "footprint"

// Options configures [NewLibrary].
type Options struct {
	// Sources are searched in order. Nil means the built-in source only.
	Sources []Source
	Logger  *log.Logger
	Hooks   observability.CacheHooks
}

// Library caches definitions loaded from its sources.
type Library struct {
	sources []Source
	logger  *log.Logger
	hooks   observability.CacheHooks

	mu    sync.RWMutex
	defs  map[string]Definition
	group singleflight.Group
}

// NewLibrary returns an empty library over opts.Sources.
func NewLibrary(opts Options) *Library {
	if opts.Sources == nil {
		opts.Sources = []Source{Builtin()}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Hooks == nil {
		opts.Hooks = observability.Cache()
	}
	return &Library{
		sources: opts.Sources,
		logger:  opts.Logger,
		hooks:   opts.Hooks,
		defs:    make(map[string]Definition),
	}
}

// Get returns the named definition, loading it from the sources on first
// use. Concurrent first lookups of one name share a single load, which runs
// detached from any one caller's cancellation; each caller stops waiting
// when its own ctx is done.
func (l *Library) Get(ctx context.Context, name string) (Definition, error) {
	if d, ok := l.cached(name); ok {
		l.hooks.OnCacheHit(ctx, cacheKeyType)
		return d, nil
	}
	l.hooks.OnCacheMiss(ctx, cacheKeyType)
	if err := ctx.Err(); err != nil {
		return Definition{}, errors.Wrap(errors.ErrCodeCanceled, err, "footprint lookup %s", name)
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(name, func() (any, error) {
		if d, ok := l.cached(name); ok {
			return d, nil
		}
		d, err := l.load(loadCtx, name)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.defs[name] = d
		l.mu.Unlock()
		l.hooks.OnCacheSet(loadCtx, cacheKeyType, len(d.Pads))
		return d, nil
	})
	select {
	case <-ctx.Done():
		return Definition{}, errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "footprint lookup %s", name)
	case r := <-ch:
		if r.Err != nil {
			return Definition{}, r.Err
		}
		d := r.Val.(Definition)
		d.Pads = slices.Clone(d.Pads)
		return d, nil
	}
}

func (l *Library) cached(name string) (Definition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.defs[name]
	if ok {
		d.Pads = slices.Clone(d.Pads)
	}
	return d, ok
}

func (l *Library) load(ctx context.Context, name string) (Definition, error) {
	for _, src := range l.sources {
		if err := ctx.Err(); err != nil {
			return Definition{}, errors.Wrap(errors.ErrCodeCanceled, err, "footprint lookup %s", name)
		}
		d, ok, err := src.Lookup(ctx, name)
		if err != nil {
			return Definition{}, err
		}
		if !ok {
			continue
		}
		if err := d.Validate(); err != nil {
			return Definition{}, err
		}
		l.logger.Debug("footprint loaded", "name", name, "source", src.Name(), "pads", len(d.Pads))
		return d, nil
	}
	return Definition{}, errors.New(errors.ErrCodeFootprintNotFound, "unknown footprint %q", name).About(name)
}

// Add registers d ahead of every source.
func (l *Library) Add(d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.defs[d.Name] = d
	l.mu.Unlock()
	return nil
}

// Names lists every footprint the library can resolve, sorted.
func (l *Library) Names(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	names := make([]string, 0, len(l.defs))
	for n := range l.defs {
		names = append(names, n)
	}
	l.mu.RUnlock()
	for _, src := range l.sources {
		more, err := src.List(ctx)
		if err != nil {
			return nil, err
		}
		names = append(names, more...)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Resolve completes every component that names a footprint but lacks
// dimensions. A courtyard given on the component overrides the library's.
// Components without a footprint name are left for validation to report.
func (l *Library) Resolve(ctx context.Context, comps []*netlist.Component) error {
	for _, c := range comps {
		if c.Footprint.Resolved() || c.Footprint.Name == "" {
			continue
		}
		d, err := l.Get(ctx, c.Footprint.Name)
		if err != nil {
			if errors.Is(err, errors.ErrCodeFootprintNotFound) {
				return errors.Wrap(errors.ErrCodeFootprintNotFound, err,
					"component %s: footprint %s", c.Ref, c.Footprint.Name).About(c.Ref)
			}
			return err
		}
		courtyard := c.Footprint.Courtyard
		d.Apply(c)
		if courtyard > 0 {
			c.Footprint.Courtyard = courtyard
		}
	}
	return nil
}
