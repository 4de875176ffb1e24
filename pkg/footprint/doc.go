// Package footprint resolves footprint names to physical outlines and pad
// positions.
//
// A design may give a component only a footprint name:
//
//	{"ref": "R1", "footprint": {"name": "R_0805"}}
//
// [Library.Resolve] fills in the body size, courtyard and pads from the
// first [Source] that knows the name. The built-in source covers common
// chip passives, SOT/SOIC/DIP packages, TO-92 and 2.54mm pin headers;
// [DirSource] loads project-specific definitions from YAML or JSON files.
//
// A Library is safe for concurrent use and is meant to be shared between
// the designs of a batch. Lookups are read-mostly. The first lookup of a
// name loads it once even when many goroutines ask at the same time.
package footprint
