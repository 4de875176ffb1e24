package autoroute

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/matzehuels/boardroute/pkg/geom"
)

// spanningTree decomposes a net into the pad pairs to route.
func spanningTree(pins []pad) []edge {
	pts := make([]geom.Point, len(pins))
	for i, p := range pins {
		pts[i] = p.ref.Position
	}
	tree := SpanningTree(pts)
	if tree == nil {
		return nil
	}
	out := make([]edge, len(tree))
	for i, e := range tree {
		out[i] = edge{u: e[0], v: e[1]}
	}
	return out
}

// SpanningTree returns the minimum spanning tree over points as
// parent-child index pairs in breadth-first order from point 0. Weights
// are Manhattan distances with a tiny index-based tie-break so
// equal-length candidates resolve the same way on every run.
func SpanningTree(points []geom.Point) [][2]int {
	n := len(points)
	if n < 2 {
		return nil
	}
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := range points {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := points[i].Manhattan(points[j]) + float64(i*n+j)*1e-9
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(j), w))
		}
	}
	mst := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	path.Kruskal(mst, g)

	adj := make([][]int, n)
	edges := mst.Edges()
	for edges.Next() {
		e := edges.Edge()
		a, b := int(e.From().ID()), int(e.To().ID())
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	for i := range adj {
		slices.Sort(adj[i])
	}

	out := make([][2]int, 0, n-1)
	visited := make([]bool, n)
	visited[0] = true
	queue := []int{0}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if visited[v] {
				continue
			}
			visited[v] = true
			out = append(out, [2]int{u, v})
			queue = append(queue, v)
		}
	}
	return out
}
