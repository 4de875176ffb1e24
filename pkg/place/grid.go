package place

import (
	"context"
	"math"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/geom"
)

// Grid places components row-major on a fixed pitch: one slot per
// component, sized to the largest courtyard plus clearance. Slots blocked
// by anchored parts or keep-outs are skipped.
type Grid struct{}

// Place implements [Placer].
func (Grid) Place(ctx context.Context, p *Problem) error {
	var cw, ch float64
	for _, c := range p.Movable {
		r := c.CourtyardAt(geom.Point{}, c.Placement.Rotation)
		cw, ch = math.Max(cw, r.Width()), math.Max(ch, r.Height())
	}
	cw += p.Clearance
	ch += p.Clearance
	if p.Snap > 0 {
		cw = math.Ceil(cw/p.Snap-eps) * p.Snap
		ch = math.Ceil(ch/p.Snap-eps) * p.Snap
	}
	cols := int((p.Area.Width() + p.Clearance + eps) / cw)
	rows := int((p.Area.Height() + p.Clearance + eps) / ch)

	slot := 0
	for _, c := range p.Movable {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrCodeCanceled, err, "grid placement canceled")
		}
		placed := false
		for ; slot < cols*rows && !placed; slot++ {
			col, row := slot%cols, slot/cols
			center := geom.Pt(
				p.snap(p.Area.MinX+float64(col)*cw+(cw-p.Clearance)/2),
				p.snap(p.Area.MinY+float64(row)*ch+(ch-p.Clearance)/2),
			)
			if p.fits(c.CourtyardAt(center, c.Placement.Rotation)) {
				p.put(c, center)
				placed = true
			}
		}
		if !placed {
			return errors.New(errors.ErrCodeBoardTooSmall,
				"board %gx%g has no grid slot left for %s (%d slots of %.2fx%.2f mm)",
				p.Netlist.Board.Width, p.Netlist.Board.Height, c.Ref, cols*rows, cw, ch)
		}
	}
	return nil
}
