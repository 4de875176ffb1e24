// Package route finds trace paths for one net on a [grid.Grid].
//
// The search is A* over (cell, layer, heading) states with an octile
// heuristic. Orthogonal steps cost one cell pitch and diagonal steps √2, a
// small penalty per 45° of direction change prefers straight runs, and layer
// changes are extra edges at via-eligible cells carrying a via cost. Every
// state the search enters is checked with [grid.Grid.IsTraversable], so a
// found path already respects clearance to every other net.
//
// Searches are bounded by a node budget and an optional deadline; running
// out is reported as BUDGET_EXCEEDED, which callers treat like
// NO_PATH_FOUND. The context is polled periodically so long searches can be
// cancelled.
//
// A [Router] owns reusable search buffers and must not be shared between
// goroutines.
package route
