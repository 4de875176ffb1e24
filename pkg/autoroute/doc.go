// Package autoroute drives routing across all nets of a placed design and
// produces the routed copper plus statistics.
//
// # Net ordering
//
// Nets route one at a time against a shared [grid.Grid]: critical and
// length-matched nets first, then by descending priority, then by ascending
// endpoint count (two-pin nets before multi-pin nets), then by declaration
// order. The order is total, so routing is deterministic.
//
// # Multi-pin nets
//
// A net with more than two pins is decomposed into a minimum spanning tree
// over its pin positions (Manhattan weights, Kruskal). Tree edges route in
// breadth-first order from the first pin; each edge searches from the child
// pin's connected copper to any cell the net already owns in the parent's
// component, so later edges land on earlier traces.
//
// # Failures
//
// An edge that cannot be routed after the configured retries (each retry
// biases the search toward a different layer and swaps the search
// direction) is recorded and routing continues. Nets with some routed edges
// are partial; nets with none are unrouted. Only cancellation aborts a run.
//
// With rip-up enabled, a blocked edge may tear up one recently routed,
// non-critical net near it, route the edge, and re-route the torn net. The
// exchange is kept only if the torn net routes at least as completely as
// before.
package autoroute
