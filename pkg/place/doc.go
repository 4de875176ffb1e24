// Package place assigns board positions to components before routing.
//
// An [Engine] runs one placement pass over a netlist and moves through the
// states Unplaced, Placing and then Placed or PlacementFailed. The work is
// done by a [Placer]:
//
//   - [Grid] lays components out row-major on a fixed pitch sized to the
//     largest courtyard.
//   - [Cluster] groups components that share signal nets (connected
//     components of the net hypergraph) and places each group as a block,
//     so connected parts end up close together. Components with no signal
//     nets are grouped by reference designator family.
//   - [Anneal] runs a seeded simulated-annealing search minimising
//     half-perimeter wire length plus overlap and keep-out penalties, and
//     falls back to [Grid] with a warning if it never finds an overlap-free
//     arrangement.
//
// Every strategy keeps courtyards inside the board (minus an edge margin
// that shrinks when parts would not otherwise fit) and at least the
// configured clearance apart. Fixed components are never moved; components
// with a suggested position keep it under grid and cluster placement and
// use it as the starting point for annealing.
//
// Failures are fatal for the design: PLACEMENT_FAILED names the offending
// component in [errors.Error.Subject], BOARD_TOO_SMALL means the parts fit
// individually but not together.
package place
