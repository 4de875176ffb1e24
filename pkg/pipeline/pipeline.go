// Package pipeline runs the full board flow for one design or a batch.
//
// A run has four stages:
//
//  1. Prepare: copy the design, resolve footprint names, validate nets.
//  2. Place: position movable components with the configured strategy.
//  3. Route: build the board grid and route every net.
//  4. Assemble: collect placements, copper and statistics into a
//     [layout.Layout].
//
// The routed layout is cached under a key derived from the prepared
// design, the configuration and the tool version. A cache hit skips
// placement and routing.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, logger)
//	res, err := runner.Execute(ctx, nl, pipeline.Options{})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Layout.Stats.CompletionRate)
//
// Designs of a batch are routed concurrently with [Runner.Batch]; each
// design is still placed and routed on a single goroutine.
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boardroute/pkg/config"
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/footprint"
	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/netlist"
	"github.com/matzehuels/boardroute/pkg/observability"
	"github.com/matzehuels/boardroute/pkg/place"
)

// =============================================================================
// Options
// =============================================================================

// Options configures one pipeline run.
type Options struct {
	// Config is the placement and routing configuration. Nil uses
	// config.Default(). The pointed-to value is copied, never modified.
	Config *config.Config

	// Library resolves footprint names. Nil uses the built-in library.
	Library *footprint.Library

	// Refresh ignores cached layouts but still stores the new one.
	Refresh bool

	// Snapshot includes the final grid occupancy in the layout.
	Snapshot bool

	Logger       *log.Logger
	Hooks        observability.PipelineHooks
	RoutingHooks observability.RoutingHooks

	validated bool
}

// ValidateAndSetDefaults validates the configuration and fills defaults.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	cfg := config.Default()
	if o.Config != nil {
		cfg = *o.Config
	}
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return err
	}
	o.Config = &cfg
	if o.Library == nil {
		o.Library = defaultLibrary
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Hooks == nil {
		o.Hooks = observability.Pipeline()
	}
	if o.RoutingHooks == nil {
		o.RoutingHooks = observability.Routing()
	}
	o.validated = true
	return nil
}

// defaultLibrary is shared by runs that do not bring their own library.
var defaultLibrary = footprint.NewLibrary(footprint.Options{})

// =============================================================================
// Result
// =============================================================================

// Result is the outcome of one run.
type Result struct {
	// Netlist is the placed copy of the input design.
	Netlist *netlist.Netlist

	// DesignHash identifies the prepared design in cache keys.
	DesignHash string

	// Layout is the routed layout.
	Layout layout.Layout

	// Placement describes the placement pass. It is zero on a cache hit.
	Placement place.Result

	// Warnings are the non-fatal problems of every stage, in stage order.
	Warnings []*errors.Error

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats holds stage timings.
type Stats struct {
	PrepareTime time.Duration
	PlaceTime   time.Duration
	RouteTime   time.Duration
}

// Total returns the summed stage time.
func (s Stats) Total() time.Duration { return s.PrepareTime + s.PlaceTime + s.RouteTime }

// CacheInfo records cache use.
type CacheInfo struct {
	LayoutHit bool
}

// stageError prefixes err with the failing stage and keeps its code.
func stageError(stage string, err error) error {
	return fmt.Errorf("%s: %w", stage, err)
}
