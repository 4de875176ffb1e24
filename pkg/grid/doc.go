// Package grid discretizes the board into a routing grid per copper layer
// and tracks occupancy and clearance zones.
//
// A [Grid] is the occupancy authority for one design. Each cell on each
// layer is free, an obstacle (component courtyard or keep-out), part of a
// trace, or part of a via. Cells occupied by a net soft-block the
// surrounding ceil(clearance/pitch) rings for every other net, so any path
// the router finds through traversable cells already satisfies clearance.
//
// The grid is not safe for concurrent use; one design is routed by one
// goroutine. Independent designs use independent grids.
package grid
