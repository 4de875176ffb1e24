package grid

import (
	"math"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
)

// MaxCells bounds the total number of cells across all layers.
const MaxCells = 2_000_000

// AllLayers selects every layer in obstacle marking.
const AllLayers = -1

// NetID identifies a net on the grid. Zero means no net.
type NetID int32

// NoNet is the zero NetID.
const NoNet NetID = 0

// Cell is a grid column/row pair.
type Cell struct {
	X, Y int
}

// Node is a cell on a specific layer.
type Node struct {
	X, Y, Layer int
}

// Cell returns the planar cell of the node.
func (n Node) Cell() Cell { return Cell{X: n.X, Y: n.Y} }

// At returns the node for c on layer l.
func (c Cell) At(layer int) Node { return Node{X: c.X, Y: c.Y, Layer: layer} }

// State is the occupancy of one cell on one layer.
type State uint8

const (
	Free State = iota
	Obstacle
	Trace
	Via
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Obstacle:
		return "obstacle"
	case Trace:
		return "trace"
	case Via:
		return "via"
	}
	return "free"
}

// owner values for cells that are not component courtyards.
const (
	ownerNone    int32 = 0
	ownerKeepout int32 = -1
)

type cell struct {
	owner int32 // 0 none, -1 keep-out, k>0 courtyard of component k-1
	net   NetID
	refs  uint16
	vias  uint16
}

type haloEntry struct {
	net NetID
	n   int32
}

type access struct {
	net   NetID
	owner int32
}

// Spec describes the physical parameters of a routing grid.
type Spec struct {
	Width       float64 // board width in mm
	Height      float64 // board height in mm
	Pitch       float64 // cell pitch in mm
	Layers      int     // copper layer count
	Clearance   float64 // min copper gap in mm
	TraceWidth  float64 // trace width in mm
	ViaDiameter float64 // via pad diameter in mm
}

// Grid is the per-layer occupancy map of one board.
type Grid struct {
	cols, rows, layers int
	pitch              float64
	width, height      float64

	cells []cell
	halo  [][]haloEntry
	allow map[access]bool

	clearanceRings int
	viaRings       int
}

// New builds a grid with layers independent occupancy maps, all cells
// initially free except the partial cells whose centre lies outside the
// board, which are marked as keep-out. It fails with INVALID_GEOMETRY when
// the dimensions or pitch are not positive, layers < 1, or the grid would
// exceed MaxCells.
func New(spec Spec) (*Grid, error) {
	if !(spec.Width > 0) || !(spec.Height > 0) || !(spec.Pitch > 0) ||
		math.IsInf(spec.Width, 0) || math.IsInf(spec.Height, 0) {
		return nil, errors.New(errors.ErrCodeInvalidGeometry,
			"board %vx%v mm with pitch %v mm is not a positive grid", spec.Width, spec.Height, spec.Pitch)
	}
	if spec.Layers < 1 {
		return nil, errors.New(errors.ErrCodeInvalidGeometry, "layer count must be at least 1, got %d", spec.Layers)
	}
	if spec.Clearance < 0 || spec.TraceWidth < 0 || spec.ViaDiameter < 0 {
		return nil, errors.New(errors.ErrCodeInvalidGeometry, "clearance and feature sizes must not be negative")
	}
	cols := int(math.Ceil(spec.Width/spec.Pitch - 1e-9))
	rows := int(math.Ceil(spec.Height/spec.Pitch - 1e-9))
	if total := float64(cols) * float64(rows) * float64(spec.Layers); total > MaxCells {
		return nil, errors.New(errors.ErrCodeInvalidGeometry,
			"grid of %dx%dx%d cells exceeds limit of %d; increase the pitch", cols, rows, spec.Layers, MaxCells)
	}

	n := cols * rows * spec.Layers
	g := &Grid{
		cols:           cols,
		rows:           rows,
		layers:         spec.Layers,
		pitch:          spec.Pitch,
		width:          spec.Width,
		height:         spec.Height,
		cells:          make([]cell, n),
		halo:           make([][]haloEntry, n),
		allow:          make(map[access]bool),
		clearanceRings: rings(spec.Clearance, spec.Pitch),
		viaRings:       rings(math.Max(0, spec.ViaDiameter-spec.TraceWidth)/2, spec.Pitch),
	}

	// Partial cells at the right and bottom edge.
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			c := g.Center(Cell{x, y})
			if c.X > spec.Width || c.Y > spec.Height {
				for l := 0; l < g.layers; l++ {
					g.cells[g.index(Node{x, y, l})].owner = ownerKeepout
				}
			}
		}
	}
	return g, nil
}

func rings(dist, pitch float64) int {
	if dist <= 0 {
		return 0
	}
	return int(math.Ceil(dist/pitch - 1e-9))
}

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Layers returns the number of copper layers.
func (g *Grid) Layers() int { return g.layers }

// Pitch returns the cell pitch in mm.
func (g *Grid) Pitch() float64 { return g.pitch }

// ClearanceRings returns the number of rings each occupied cell soft-blocks
// for other nets.
func (g *Grid) ClearanceRings() int { return g.clearanceRings }

// ViaRings returns the extra rings a via occupies beyond a trace cell.
func (g *Grid) ViaRings() int { return g.viaRings }

// Size returns the total number of nodes across all layers.
func (g *Grid) Size() int { return len(g.cells) }

// InBounds reports whether n lies on the grid.
func (g *Grid) InBounds(n Node) bool {
	return n.X >= 0 && n.X < g.cols && n.Y >= 0 && n.Y < g.rows && n.Layer >= 0 && n.Layer < g.layers
}

// Index returns the flat index of an in-bounds node.
func (g *Grid) Index(n Node) int { return g.index(n) }

func (g *Grid) index(n Node) int {
	return (n.Layer*g.rows+n.Y)*g.cols + n.X
}

// NodeAt is the inverse of Index.
func (g *Grid) NodeAt(i int) Node {
	x := i % g.cols
	i /= g.cols
	return Node{X: x, Y: i % g.rows, Layer: i / g.rows}
}

// CellOf snaps a board coordinate to the nearest cell, clamped to the grid.
func (g *Grid) CellOf(p geom.Point) Cell {
	x := clamp(int(math.Floor(p.X/g.pitch)), 0, g.cols-1)
	y := clamp(int(math.Floor(p.Y/g.pitch)), 0, g.rows-1)
	return Cell{x, y}
}

// Center returns the board coordinate of a cell centre.
func (g *Grid) Center(c Cell) geom.Point {
	return geom.Pt((float64(c.X)+0.5)*g.pitch, (float64(c.Y)+0.5)*g.pitch)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// cellRange returns the inclusive cell span covered by a rectangle.
func (g *Grid) cellRange(r geom.Rect) (x0, y0, x1, y1 int, ok bool) {
	x0 = clamp(int(math.Floor(r.MinX/g.pitch)), 0, g.cols-1)
	y0 = clamp(int(math.Floor(r.MinY/g.pitch)), 0, g.rows-1)
	x1 = clamp(int(math.Ceil(r.MaxX/g.pitch))-1, 0, g.cols-1)
	y1 = clamp(int(math.Ceil(r.MaxY/g.pitch))-1, 0, g.rows-1)
	ok = !r.Empty() && r.MaxX > 0 && r.MaxY > 0 &&
		r.MinX < float64(g.cols)*g.pitch && r.MinY < float64(g.rows)*g.pitch
	return
}

func (g *Grid) layerSpan(layer int) (int, int) {
	if layer == AllLayers {
		return 0, g.layers - 1
	}
	return layer, layer
}

// =============================================================================
// Obstacles
// =============================================================================

// MarkObstacle marks every cell overlapping r as a keep-out on one layer or
// on AllLayers. No net can traverse keep-out cells.
func (g *Grid) MarkObstacle(r geom.Rect, layer int) {
	g.markRect(r, layer, ownerKeepout)
}

// MarkCourtyard marks a component courtyard owned by the component with the
// given index. Nets granted access with [Grid.Allow] may route through it.
func (g *Grid) MarkCourtyard(r geom.Rect, layer, component int) {
	g.markRect(r, layer, int32(component)+1)
}

func (g *Grid) markRect(r geom.Rect, layer int, owner int32) {
	x0, y0, x1, y1, ok := g.cellRange(r)
	if !ok {
		return
	}
	l0, l1 := g.layerSpan(layer)
	for l := l0; l <= l1; l++ {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				g.setOwner(Node{x, y, l}, owner)
			}
		}
	}
}

// MarkPolygon marks every cell whose centre lies inside pg as a keep-out.
func (g *Grid) MarkPolygon(pg geom.Polygon, layer int) {
	x0, y0, x1, y1, ok := g.cellRange(pg.Bounds())
	if !ok {
		return
	}
	l0, l1 := g.layerSpan(layer)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if !pg.Contains(g.Center(Cell{x, y})) {
				continue
			}
			for l := l0; l <= l1; l++ {
				g.setOwner(Node{x, y, l}, ownerKeepout)
			}
		}
	}
}

// setOwner never weakens a keep-out into a courtyard.
func (g *Grid) setOwner(n Node, owner int32) {
	c := &g.cells[g.index(n)]
	if c.owner == ownerKeepout {
		return
	}
	c.owner = owner
}

// Allow lets a net traverse the courtyard of a component it connects to.
func (g *Grid) Allow(net NetID, component int) {
	g.allow[access{net, int32(component) + 1}] = true
}

// =============================================================================
// Queries
// =============================================================================

// State returns the occupancy of a node.
func (g *Grid) State(n Node) State {
	c := g.cells[g.index(n)]
	switch {
	case c.vias > 0:
		return Via
	case c.refs > 0:
		return Trace
	case c.owner != ownerNone:
		return Obstacle
	}
	return Free
}

// NetAt returns the net occupying a node, or NoNet.
func (g *Grid) NetAt(n Node) NetID {
	c := g.cells[g.index(n)]
	if c.refs == 0 {
		return NoNet
	}
	return c.net
}

// Blocked reports whether a node is a keep-out no net may enter.
func (g *Grid) Blocked(n Node) bool {
	return g.cells[g.index(n)].owner == ownerKeepout
}

// IsTraversable reports whether net may occupy n: the node is already
// assigned to net, or it is free (or a courtyard net is allowed into) and
// not within clearance of a different net.
func (g *Grid) IsTraversable(n Node, net NetID) bool {
	if !g.InBounds(n) {
		return false
	}
	return g.traversable(g.index(n), net)
}

func (g *Grid) traversable(i int, net NetID) bool {
	c := &g.cells[i]
	if c.refs > 0 {
		return c.net == net
	}
	if c.owner == ownerKeepout {
		return false
	}
	if c.owner != ownerNone && !g.allow[access{net, c.owner}] {
		return false
	}
	for _, h := range g.halo[i] {
		if h.net != net && h.n > 0 {
			return false
		}
	}
	return true
}

// Owned reports whether n is already occupied by net.
func (g *Grid) Owned(n Node, net NetID) bool {
	c := g.cells[g.index(n)]
	return c.refs > 0 && c.net == net
}

// CanPlaceVia reports whether net may drop a via at c spanning layers a..b:
// every spanned layer must be traversable across the via's footprint.
func (g *Grid) CanPlaceVia(c Cell, a, b int, net NetID) bool {
	if a > b {
		a, b = b, a
	}
	r := g.viaRings
	for l := a; l <= b; l++ {
		for y := c.Y - r; y <= c.Y+r; y++ {
			for x := c.X - r; x <= c.X+r; x++ {
				if !g.IsTraversable(Node{x, y, l}, net) {
					return false
				}
			}
		}
	}
	return true
}

// =============================================================================
// Reservation
// =============================================================================

// Reserve commits nodes to net. Every node must be traversable for net;
// otherwise nothing is reserved and NO_PATH_FOUND is returned. Reserving a
// node the net already owns adds a reference, so overlapping paths of one
// net can later be released independently.
func (g *Grid) Reserve(net NetID, nodes []Node) error {
	if net == NoNet {
		return errors.New(errors.ErrCodeInvalidInput, "cannot reserve cells for the empty net")
	}
	for _, n := range nodes {
		if !g.IsTraversable(n, net) {
			return errors.New(errors.ErrCodeNoPathFound,
				"cell (%d,%d) on layer %d is blocked for net %d", n.X, n.Y, n.Layer, net)
		}
	}
	for _, n := range nodes {
		g.acquire(g.index(n), net)
	}
	return nil
}

// Release undoes a matching Reserve. Nodes not held by net are ignored.
func (g *Grid) Release(net NetID, nodes []Node) {
	for _, n := range nodes {
		if g.InBounds(n) {
			g.release(g.index(n), net)
		}
	}
}

// Claim assigns a pad node to net regardless of the clearance zones of
// other nets; pads are fixed by the footprint. It fails when the node is a
// keep-out or already held by a different net.
func (g *Grid) Claim(net NetID, n Node) bool {
	if net == NoNet || !g.InBounds(n) {
		return false
	}
	i := g.index(n)
	c := &g.cells[i]
	if c.owner == ownerKeepout || (c.refs > 0 && c.net != net) {
		return false
	}
	g.acquire(i, net)
	return true
}

// ClaimThrough claims a plated through-hole pad for net on every layer. The
// hole is recorded as a via so layer changes at the pad are free.
func (g *Grid) ClaimThrough(net NetID, c Cell) bool {
	for l := 0; l < g.layers; l++ {
		n := c.At(l)
		if !g.InBounds(n) {
			return false
		}
		cc := g.cells[g.index(n)]
		if cc.owner == ownerKeepout || (cc.refs > 0 && cc.net != net) {
			return false
		}
	}
	for l := 0; l < g.layers; l++ {
		g.acquireVia(g.index(c.At(l)), net)
	}
	return true
}

// HasVia reports whether net already has a via or plated hole at n.
func (g *Grid) HasVia(n Node, net NetID) bool {
	c := g.cells[g.index(n)]
	return c.vias > 0 && c.refs > 0 && c.net == net
}

// ReserveVia commits a via for net at c spanning layers a..b, including the
// trace reservation on every spanned layer.
func (g *Grid) ReserveVia(net NetID, c Cell, a, b int) error {
	if a > b {
		a, b = b, a
	}
	if !g.CanPlaceVia(c, a, b, net) {
		return errors.New(errors.ErrCodeNoPathFound,
			"via at (%d,%d) layers %d-%d is blocked for net %d", c.X, c.Y, a, b, net)
	}
	for l := a; l <= b; l++ {
		g.acquireVia(g.index(c.At(l)), net)
	}
	return nil
}

func (g *Grid) acquireVia(i int, net NetID) {
	g.acquire(i, net)
	c := &g.cells[i]
	c.vias++
	if c.vias == 1 {
		g.addHalo(g.NodeAt(i), net, g.clearanceRings+g.viaRings, 1)
	}
}

// ReleaseVia undoes a matching ReserveVia.
func (g *Grid) ReleaseVia(net NetID, c Cell, a, b int) {
	if a > b {
		a, b = b, a
	}
	for l := a; l <= b; l++ {
		n := c.At(l)
		if !g.InBounds(n) {
			continue
		}
		i := g.index(n)
		cc := &g.cells[i]
		if cc.refs == 0 || cc.net != net || cc.vias == 0 {
			continue
		}
		cc.vias--
		if cc.vias == 0 {
			g.addHalo(n, net, g.clearanceRings+g.viaRings, -1)
		}
		g.release(i, net)
	}
}

func (g *Grid) acquire(i int, net NetID) {
	c := &g.cells[i]
	c.net = net
	c.refs++
	if c.refs == 1 {
		g.addHalo(g.NodeAt(i), net, g.clearanceRings, 1)
	}
}

func (g *Grid) release(i int, net NetID) {
	c := &g.cells[i]
	if c.refs == 0 || c.net != net {
		return
	}
	c.refs--
	if c.refs == 0 {
		c.net = NoNet
		g.addHalo(g.NodeAt(i), net, g.clearanceRings, -1)
	}
}

// addHalo adjusts the clearance count of net in every cell within r rings
// of n on n's layer.
func (g *Grid) addHalo(n Node, net NetID, r int, delta int32) {
	if r == 0 {
		return
	}
	for y := max(0, n.Y-r); y <= min(g.rows-1, n.Y+r); y++ {
		for x := max(0, n.X-r); x <= min(g.cols-1, n.X+r); x++ {
			i := g.index(Node{x, y, n.Layer})
			g.halo[i] = bump(g.halo[i], net, delta)
		}
	}
}

func bump(hs []haloEntry, net NetID, delta int32) []haloEntry {
	for k := range hs {
		if hs[k].net != net {
			continue
		}
		hs[k].n += delta
		if hs[k].n <= 0 {
			hs[k] = hs[len(hs)-1]
			hs = hs[:len(hs)-1]
		}
		return hs
	}
	if delta > 0 {
		hs = append(hs, haloEntry{net: net, n: delta})
	}
	return hs
}
