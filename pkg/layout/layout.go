// Package layout defines the Routed Layout: the immutable result of one
// placement and routing pass, handed to external file emitters.
//
// A [Layout] carries the board outline, final component placements, a grid
// occupancy snapshot, every net's trace segments and vias, and the routing
// [Stats]. It is created once per pass and owned by the caller.
package layout

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/grid"
)

// =============================================================================
// Layout
// =============================================================================

// Layout is the serialized routing result.
type Layout struct {
	RunID      string         `json:"run_id,omitempty"`
	Design     string         `json:"design,omitempty"`
	Board      Outline        `json:"board"`
	Layers     []string       `json:"layers"`
	TraceWidth float64        `json:"trace_width_mm"`
	Clearance  float64        `json:"clearance_mm"`
	Placements []Placement    `json:"placements"`
	Nets       []RoutedNet    `json:"nets"`
	Stats      Stats          `json:"stats"`
	Grid       *grid.Snapshot `json:"grid,omitempty"`
	Warnings   []Warning      `json:"warnings,omitempty"`
}

// Warning is a non-fatal problem found while placing or routing.
type Warning struct {
	Code    errors.Code `json:"code"`
	Subject string      `json:"subject,omitempty"`
	Message string      `json:"message"`
}

// WarningOf converts a structured error into a warning record.
func WarningOf(e *errors.Error) Warning {
	return Warning{Code: e.Code, Subject: e.Subject, Message: e.Message}
}

// String returns the warning as "CODE: message".
func (w Warning) String() string { return string(w.Code) + ": " + w.Message }

// Outline is the board edge.
type Outline struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Placement is the final position of one component.
type Placement struct {
	Ref       string    `json:"ref"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Rotation  int       `json:"rotation"`
	Fixed     bool      `json:"fixed,omitempty"`
	Courtyard geom.Rect `json:"courtyard"`
}

// Status is the routing outcome of one net.
type Status string

const (
	StatusRouted   Status = "routed"
	StatusPartial  Status = "partial"
	StatusUnrouted Status = "unrouted"
)

// RoutedNet is the copper of one net.
type RoutedNet struct {
	Name        string    `json:"name"`
	ID          int       `json:"id"`
	Status      Status    `json:"status"`
	MatchGroup  string    `json:"match_group,omitempty"`
	Edges       int       `json:"edges"`
	RoutedEdges int       `json:"routed_edges"`
	LengthMM    float64   `json:"length_mm"`
	Segments    []Segment `json:"segments,omitempty"`
	Vias        []Via     `json:"vias,omitempty"`
	Failures    []string  `json:"failures,omitempty"`
}

// Segment is an ordered polyline on one layer. Points are the corners of
// the path in board millimetres; Cells is the full cell sequence.
type Segment struct {
	Layer    int          `json:"layer"`
	Points   []geom.Point `json:"points"`
	Cells    []grid.Cell  `json:"cells"`
	WidthMM  float64      `json:"width_mm"`
	LengthMM float64      `json:"length_mm"`
}

// Via connects two layers at one cell.
type Via struct {
	Position   geom.Point `json:"position"`
	Cell       grid.Cell  `json:"cell"`
	From       int        `json:"from"`
	To         int        `json:"to"`
	DiameterMM float64    `json:"diameter_mm"`
	DrillMM    float64    `json:"drill_mm"`
}

// Stats is the routing statistics record.
type Stats struct {
	CompletionRate    float64  `json:"completion_rate"`
	TotalTraces       int      `json:"total_traces"`
	ViaCount          int      `json:"via_count"`
	LengthMatchedNets int      `json:"length_matched_nets"`
	UnroutedNets      []string `json:"unrouted_nets"`
	PlacementWarnings []string `json:"placement_warnings"`

	NetsAttempted int      `json:"nets_attempted"`
	NetsCompleted int      `json:"nets_completed"`
	PartialNets   []string `json:"partial_nets,omitempty"`
	TotalLengthMM float64  `json:"total_length_mm"`
	RoutedEdges   int      `json:"routed_edges"`
	TotalEdges    int      `json:"total_edges"`
}

// Net returns the routed net with the given name.
func (l *Layout) Net(name string) (*RoutedNet, bool) {
	for i := range l.Nets {
		if l.Nets[i].Name == name {
			return &l.Nets[i], true
		}
	}
	return nil, false
}

// LayerName returns the conventional copper layer name for index i of n
// layers: F.Cu on top, B.Cu on the bottom and In<i>.Cu between.
func LayerName(i, n int) string {
	switch {
	case i == 0:
		return "F.Cu"
	case i == n-1:
		return "B.Cu"
	}
	return fmt.Sprintf("In%d.Cu", i)
}

// LayerNames returns the names of all n layers.
func LayerNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = LayerName(i, n)
	}
	return names
}

// =============================================================================
// Serialization
// =============================================================================

// Marshal serializes a Layout to pretty-printed JSON bytes.
func Marshal(l Layout) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// Unmarshal deserializes JSON bytes into a Layout.
func Unmarshal(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "unmarshal layout")
	}
	if l.Board.Width <= 0 || l.Board.Height <= 0 {
		return Layout{}, errors.New(errors.ErrCodeInvalidInput, "layout must contain a board outline")
	}
	return l, nil
}

// WriteFile writes a Layout to a JSON file.
func WriteFile(l Layout, path string) error {
	data, err := Marshal(l)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile reads a Layout from a JSON file.
func ReadFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Unmarshal(data)
}
