package place

import (
	"context"
	"io"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

// Cost weights relative to one millimetre of wire.
const (
	overlapWeight = 10.0 // per mm² of courtyard overlap or overhang
	keepOutWeight = 5.0  // per mm short of a keep-out distance

	defaultIterations = 10000
)

// Anneal is seeded simulated-annealing placement. The same seed and input
// always produce the same placement.
type Anneal struct {
	Iterations int
	Seed       uint64
	Logger     *log.Logger
}

// Place implements [Placer].
func (a Anneal) Place(ctx context.Context, p *Problem) error {
	if a.Logger == nil {
		a.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	iters := a.Iterations
	if iters <= 0 {
		iters = defaultIterations
	}
	rng := rand.New(rand.NewPCG(a.Seed, a.Seed^0x5deece66d))
	s := newAnnealer(p)
	s.init(rng)

	cur, overlap := s.cost()
	var best []geom.Point
	var bestRot []int
	bestCost := math.Inf(1)
	save := func() {
		best = append(best[:0], s.pos...)
		bestRot = append(bestRot[:0], s.rot...)
		bestCost = cur
	}
	if overlap == 0 {
		save()
	}

	t0 := 0.1 * (p.Area.Width() + p.Area.Height())
	accepted := 0
	for i := 0; i < iters; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(errors.ErrCodeCanceled, err, "annealing canceled after %d iterations", i)
			}
		}
		frac := float64(i) / float64(iters)
		t := t0 * math.Pow(1e-3, frac)
		undo := s.move(rng, 1-frac)
		next, ov := s.cost()
		if d := next - cur; d <= 0 || rng.Float64() < math.Exp(-d/t) {
			cur, overlap = next, ov
			accepted++
			if overlap == 0 && cur < bestCost {
				save()
			}
		} else {
			undo()
		}
	}
	a.Logger.Debug("annealing finished", "iterations", iters, "accepted", accepted, "cost", bestCost)

	if best == nil {
		a.Logger.Warn("annealing found no overlap-free placement, using grid", "iterations", iters)
		p.warnings = append(p.warnings, errors.New(errors.ErrCodePlacementFailed,
			"optimize placement found no overlap-free arrangement in %d iterations; fell back to grid placement", iters))
		p.fallback = true
		p.reset()
		return Grid{}.Place(ctx, p)
	}
	for _, i := range s.movable {
		c := s.comps[i]
		c.Placement.Rotation = bestRot[i]
		p.put(c, best[i])
	}
	return nil
}

// pinAt is a net endpoint as component index and local pin offset.
type pinAt struct {
	comp   int
	offset geom.Point
}

type keepOutPair struct {
	a, b int
	dist float64
}

// annealer holds the mutable arrangement of one annealing run. Anchored
// components keep their position; only movable indices change.
type annealer struct {
	p        *Problem
	comps    []*netlist.Component
	pos      []geom.Point
	rot      []int
	movable  []int
	isMoving []bool
	nets     [][]pinAt
	rules    []keepOutPair
	xs, ys   []float64
}

func newAnnealer(p *Problem) *annealer {
	nl := p.Netlist
	comps := nl.Components()
	s := &annealer{
		p:        p,
		comps:    comps,
		pos:      make([]geom.Point, len(comps)),
		rot:      make([]int, len(comps)),
		isMoving: make([]bool, len(comps)),
	}
	for i, c := range comps {
		s.pos[i] = c.Placement.Center()
		s.rot[i] = c.Placement.Rotation
	}
	for _, c := range p.Movable {
		i := nl.Index(c.Ref)
		s.movable = append(s.movable, i)
		s.isMoving[i] = true
	}
	for _, n := range nl.Nets() {
		var pins []pinAt
		for _, ep := range n.Endpoints {
			c, ok := nl.Component(ep.Ref)
			if !ok {
				continue
			}
			if pin, ok := c.Pin(ep.Pin); ok {
				pins = append(pins, pinAt{comp: nl.Index(ep.Ref), offset: pin.Offset})
			}
		}
		if len(pins) > 1 {
			s.nets = append(s.nets, pins)
		}
	}
	for i := range comps {
		for j := i + 1; j < len(comps); j++ {
			if !s.isMoving[i] && !s.isMoving[j] {
				continue
			}
			if d := p.Config.KeepOutDistance(comps[i].Class, comps[j].Class); d > 0 {
				s.rules = append(s.rules, keepOutPair{i, j, d})
			}
		}
	}
	return s
}

// init starts suggested components at their suggestion and scatters the
// rest uniformly over the area.
func (s *annealer) init(rng *rand.Rand) {
	for _, i := range s.movable {
		if s.comps[i].Placement.Placed {
			s.pos[i] = s.clamp(i, s.pos[i])
			continue
		}
		r := s.rect(i)
		a := s.p.Area
		x := a.MinX + r.Width()/2 + rng.Float64()*math.Max(0, a.Width()-r.Width())
		y := a.MinY + r.Height()/2 + rng.Float64()*math.Max(0, a.Height()-r.Height())
		s.pos[i] = s.clamp(i, geom.Pt(x, y))
	}
}

func (s *annealer) rect(i int) geom.Rect {
	return s.comps[i].CourtyardAt(s.pos[i], s.rot[i])
}

// clamp keeps component i's courtyard inside the area, on the placement
// grid where possible.
func (s *annealer) clamp(i int, pt geom.Point) geom.Point {
	r := s.comps[i].CourtyardAt(geom.Point{}, s.rot[i])
	a := s.p.Area
	fit := func(v, lo, hi float64) float64 {
		if lo > hi {
			return (lo + hi) / 2
		}
		v = s.p.snap(v)
		if v < lo {
			v = s.p.scanStart(lo)
		}
		if v > hi {
			v = hi
			if s.p.Snap > 0 {
				v = math.Floor(hi/s.p.Snap+eps) * s.p.Snap
			}
		}
		return v
	}
	return geom.Pt(
		fit(pt.X, a.MinX+r.Width()/2, a.MaxX-r.Width()/2),
		fit(pt.Y, a.MinY+r.Height()/2, a.MaxY-r.Height()/2),
	)
}

// move perturbs the arrangement and returns a function undoing it. scale
// in (0, 1] shrinks shift distances as the search cools.
func (s *annealer) move(rng *rand.Rand, scale float64) func() {
	k := s.movable[rng.IntN(len(s.movable))]
	oldPos, oldRot := s.pos[k], s.rot[k]
	r := rng.Float64()
	switch {
	case r < 0.25 && len(s.movable) > 1:
		j := s.movable[rng.IntN(len(s.movable))]
		oldJ := s.pos[j]
		s.pos[k], s.pos[j] = s.clamp(k, oldJ), s.clamp(j, oldPos)
		return func() { s.pos[k], s.pos[j] = oldPos, oldJ }
	case r < 0.35:
		s.rot[k] = (s.rot[k] + 90) % 360
		s.pos[k] = s.clamp(k, s.pos[k])
	default:
		m := math.Max(s.p.step(), scale*(s.p.Area.Width()+s.p.Area.Height())/4)
		d := geom.Pt((rng.Float64()*2-1)*m, (rng.Float64()*2-1)*m)
		s.pos[k] = s.clamp(k, s.pos[k].Add(d))
	}
	return func() { s.pos[k], s.rot[k] = oldPos, oldRot }
}

// cost returns the weighted cost and the raw overlap term, which is zero
// exactly when the arrangement is legal.
func (s *annealer) cost() (total, overlap float64) {
	for _, pins := range s.nets {
		s.xs, s.ys = s.xs[:0], s.ys[:0]
		for _, pa := range pins {
			pt := s.pos[pa.comp].Add(geom.Rotate(pa.offset, s.rot[pa.comp]))
			s.xs, s.ys = append(s.xs, pt.X), append(s.ys, pt.Y)
		}
		total += hpwl(s.xs, s.ys)
	}

	half := s.p.Clearance / 2
	for _, i := range s.movable {
		r := s.rect(i)
		overlap += r.Area() - r.Intersection(s.p.Area).Area()
		for _, k := range s.p.keepouts {
			overlap += r.Intersection(k).Area()
		}
		for j := range s.comps {
			if j == i || (s.isMoving[j] && j < i) {
				continue
			}
			overlap += r.Expand(half).Intersection(s.rect(j).Expand(half)).Area()
		}
	}

	var keepOut float64
	for _, kp := range s.rules {
		if gap := s.rect(kp.a).Gap(s.rect(kp.b)); gap < kp.dist {
			keepOut += kp.dist - gap
		}
	}
	return total + overlapWeight*overlap + keepOutWeight*keepOut, overlap
}
