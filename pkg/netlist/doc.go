// Package netlist is the normalized representation of a circuit design:
// components with their footprints and placements, the pins on those
// footprints, and the nets that must electrically connect pins.
//
// A [Netlist] is the source of truth for what must be connected. It is built
// once from a design (see [ReadFile] and [New]), validated with
// [Netlist.Validate], mutated only through [Netlist.ApplyPlacements] by the
// placement engine, and treated as read-only during routing.
//
// # Coordinates
//
// Component placements give the footprint centre in board millimetres and a
// rotation in quarter turns. Pin offsets are relative to the footprint centre
// in the unrotated footprint frame. [Netlist.PinsOf] composes both with the
// standard rotation matrix to produce absolute board coordinates.
//
// # Validation
//
// Nets that reference unknown components or pins are fatal
// (DANGLING_REFERENCE). Nets with fewer than two endpoints are dropped with a
// SINGLETON_NET warning so the rest of the design can still be routed.
package netlist
