package grid

import "strings"

// Occupancy characters used in snapshots.
const (
	charFree     = '.'
	charObstacle = '#'
	charTrace    = '+'
	charVia      = 'o'
)

// Snapshot is an immutable copy of the grid occupancy. Each layer is a list
// of rows; each row has one character per cell: '.' free, '#' obstacle,
// '+' trace and 'o' via.
type Snapshot struct {
	Cols      int        `json:"cols"`
	Rows      int        `json:"rows"`
	Layers    int        `json:"layers"`
	Pitch     float64    `json:"pitch"`
	Occupancy [][]string `json:"occupancy"`
}

// Snapshot captures the current occupancy of every layer.
func (g *Grid) Snapshot() Snapshot {
	s := Snapshot{
		Cols:      g.cols,
		Rows:      g.rows,
		Layers:    g.layers,
		Pitch:     g.pitch,
		Occupancy: make([][]string, g.layers),
	}
	var b strings.Builder
	for l := 0; l < g.layers; l++ {
		rows := make([]string, g.rows)
		for y := 0; y < g.rows; y++ {
			b.Reset()
			b.Grow(g.cols)
			for x := 0; x < g.cols; x++ {
				b.WriteByte(stateChar(g.State(Node{x, y, l})))
			}
			rows[y] = b.String()
		}
		s.Occupancy[l] = rows
	}
	return s
}

func stateChar(s State) byte {
	switch s {
	case Obstacle:
		return charObstacle
	case Trace:
		return charTrace
	case Via:
		return charVia
	}
	return charFree
}

// State returns the recorded occupancy of a node.
func (s Snapshot) State(n Node) State {
	if n.Layer < 0 || n.Layer >= len(s.Occupancy) || n.Y < 0 || n.Y >= len(s.Occupancy[n.Layer]) {
		return Free
	}
	row := s.Occupancy[n.Layer][n.Y]
	if n.X < 0 || n.X >= len(row) {
		return Free
	}
	switch row[n.X] {
	case charObstacle:
		return Obstacle
	case charTrace:
		return Trace
	case charVia:
		return Via
	}
	return Free
}

// Count returns the number of nodes in the given state.
func (s Snapshot) Count(state State) int {
	want := stateChar(state)
	var n int
	for _, layer := range s.Occupancy {
		for _, row := range layer {
			n += strings.Count(row, string(want))
		}
	}
	return n
}
