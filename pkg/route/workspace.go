package route

import (
	"container/heap"
	"math"
)

// workspace holds the search buffers for one grid. Entries are valid only
// when their stamp equals the current generation, so a new search costs
// O(1) instead of clearing every array.
type workspace struct {
	gen    uint32
	dist   []float64
	prev   []int32
	seen   []uint32
	closed []uint32
	target []uint32
	open   queue
	seq    uint64
}

func newWorkspace(nodes int) *workspace {
	n := nodes * headings
	return &workspace{
		dist:   make([]float64, n),
		prev:   make([]int32, n),
		seen:   make([]uint32, n),
		closed: make([]uint32, n),
		target: make([]uint32, nodes),
	}
}

func (w *workspace) reset() {
	w.gen++
	if w.gen == 0 {
		clear(w.seen)
		clear(w.closed)
		clear(w.target)
		w.gen = 1
	}
	w.open = w.open[:0]
	w.seq = 0
}

func state(idx, heading int) int32 { return int32(idx*headings + heading) }

func split(s int32) (idx, heading int) { return int(s) / headings, int(s) % headings }

func (w *workspace) markTarget(idx int) { w.target[idx] = w.gen }

func (w *workspace) isTarget(idx int) bool { return w.target[idx] == w.gen }

func (w *workspace) isClosed(s int32) bool { return w.closed[s] == w.gen }

func (w *workspace) close(s int32) { w.closed[s] = w.gen }

func (w *workspace) known(s int32) float64 {
	if w.seen[s] != w.gen {
		return math.Inf(1)
	}
	return w.dist[s]
}

// push records a tentative distance for s and queues it.
func (w *workspace) push(s, from int32, g, h float64) {
	w.seen[s] = w.gen
	w.dist[s] = g
	w.prev[s] = from
	w.seq++
	heap.Push(&w.open, item{state: s, f: g + h, h: h, seq: w.seq})
}

// relax pushes s when g improves on its known distance.
func (w *workspace) relax(s, from int32, g, h float64) {
	if w.isClosed(s) || g >= w.known(s) {
		return
	}
	w.push(s, from, g, h)
}

type item struct {
	state int32
	f, h  float64
	seq   uint64
}

// queue is a min-heap on f, then h (prefer states nearer the target), then
// insertion order, so equal-cost searches always expand in the same order.
type queue []item

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	if q[i].h != q[j].h {
		return q[i].h < q[j].h
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(item)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
