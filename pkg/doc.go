// Package pkg provides the core libraries for Boardroute printed circuit
// board placement and routing.
//
// # Overview
//
// Boardroute takes a design (board outline, components with footprints and
// the nets connecting their pins), positions the movable components and
// routes every net on a discretized multi-layer grid. The pkg directory is
// organized into four main areas:
//
//  1. Model - geometry, netlist, configuration and the routed layout
//  2. Engines - board grid, placement, path search and routing orchestration
//  3. Infrastructure - footprint library, layout cache, hooks, errors
//  4. [pipeline] - Orchestration (prepare → place → route → assemble)
//
// # Architecture
//
// The typical data flow through Boardroute:
//
//	Design file (JSON/YAML)
//	         ↓
//	    [netlist] package (components, pins, nets; endpoint validation)
//	         ↓
//	    [footprint] package (resolve footprint names to sizes and pads)
//	         ↓
//	    [place] package (grid, cluster or optimize strategy)
//	         ↓
//	    [grid] package (cells, obstacles, clearance halos)
//	         ↓
//	    [autoroute] package (net ordering, spanning trees, [route] search)
//	         ↓
//	    [layout] package (traces, vias, statistics as JSON)
//
// # Quick Start
//
// Route a design file with the default configuration:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/boardroute/pkg/layout"
//	    "github.com/matzehuels/boardroute/pkg/netlist"
//	    "github.com/matzehuels/boardroute/pkg/pipeline"
//	)
//
//	nl, _ := netlist.ReadFile("board.yaml")
//	runner := pipeline.NewRunner(nil, nil, logger)
//	res, _ := runner.Execute(context.Background(), nl, pipeline.Options{})
//	_ = layout.WriteFile(res.Layout, "board.layout.json")
//
// # Main Packages
//
// ## Model
//
// [geom] - Points, rectangles and polygons in millimetres, 90° rotation and
// point-in-polygon tests.
//
// [netlist] - Components, pins and nets with indexed lookups. [netlist.Netlist.PinsOf]
// returns absolute pin positions; [netlist.Netlist.Validate] rejects dangling
// endpoints and drops single-endpoint nets with a warning.
//
// [config] - The configuration record: clearances, widths, layer count,
// placement strategy and routing quality presets. Loaded from TOML or YAML
// with BOARDROUTE_* environment overrides.
//
// [layout] - The routed layout: placements, per-net segments and vias,
// completion statistics, and a geometric clearance check.
//
// ## Engines
//
// [grid] - The board grid. Each cell on each layer is free, an obstacle or
// owned by one net; clearance halos keep other nets away from copper.
//
// [place] - The placement engine. Strategies:
//
//   - grid: row-major first fit
//   - cluster: connectivity clusters packed as blocks
//   - optimize: seeded simulated annealing over wire length and overlap
//
// [route] - Cost-ordered path search on the grid with diagonal moves, turn
// penalties, vias, node budgets and cancellation.
//
// [autoroute] - Routing orchestration: priority ordering of nets, spanning
// tree decomposition of multi-pin nets, retries, optional rip-up, length
// matching and statistics.
//
// ## Infrastructure
//
// [footprint] - Footprint definitions from the built-in set and directories
// of YAML/JSON files, cached per name with one load per key.
//
// [cache] - Layout cache backends: file (CLI), Redis (shared batch runs),
// memory and null.
//
// [observability] - Hook interfaces for pipeline, routing and cache events.
//
// [errors] - Coded errors (DANGLING_REFERENCE, NO_PATH_FOUND, ...) carrying
// the offending component or net.
//
// [netgraph] - Net connectivity diagrams as Graphviz DOT or SVG.
//
// # Common Workflows
//
// Place without routing:
//
//	cfg := config.Default()
//	cfg.PlacementStrategy = config.StrategyCluster
//	eng, _ := place.New(cfg, logger)
//	res, _ := eng.Place(ctx, nl)
//
// Route an already placed netlist:
//
//	res, g, err := autoroute.Route(ctx, nl, cfg, autoroute.Options{Logger: logger})
//	fmt.Println(res.Stats.CompletionRate, g.Layers())
//
// Route many designs sharing a Redis cache:
//
//	rc, _ := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: "localhost:6379"})
//	runner := pipeline.NewRunner(rc, nil, logger)
//	results, _ := runner.Batch(ctx, jobs, pipeline.BatchOptions{Workers: 8})
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...              # All tests
//	go test ./pkg/autoroute/...    # Specific package
//	go test -run Example ./pkg/... # Examples only
//
// [geom]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/geom
// [netlist]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/netlist
// [netlist.Netlist.PinsOf]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/netlist#Netlist.PinsOf
// [netlist.Netlist.Validate]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/netlist#Netlist.Validate
// [config]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/config
// [layout]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/layout
// [grid]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/grid
// [place]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/place
// [route]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/route
// [autoroute]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/autoroute
// [footprint]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/footprint
// [cache]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/cache
// [observability]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/errors
// [netgraph]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/netgraph
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/boardroute/pkg/pipeline
package pkg
