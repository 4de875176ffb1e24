package place

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boardroute/pkg/config"
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

// State is the lifecycle of a placement pass.
type State int

const (
	Unplaced State = iota
	Placing
	Placed
	PlacementFailed
)

func (s State) String() string {
	switch s {
	case Unplaced:
		return "unplaced"
	case Placing:
		return "placing"
	case Placed:
		return "placed"
	case PlacementFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Placer positions the movable components of a problem.
type Placer interface {
	Place(ctx context.Context, p *Problem) error
}

// Result describes a finished placement.
type Result struct {
	Strategy     string
	Moved        []string // refs positioned by this pass, declaration order
	WireLengthMM float64  // half-perimeter wire length estimate
	Warnings     []*errors.Error
	Duration     time.Duration
}

// Engine runs one placement pass. It is not reusable.
type Engine struct {
	cfg    config.Config
	logger *log.Logger
	state  State
}

// New creates an engine for cfg. A nil logger discards output.
func New(cfg config.Config, logger *log.Logger) (*Engine, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// State returns the engine state.
func (e *Engine) State() State { return e.state }

// Placer returns the placer for the configured strategy.
func (e *Engine) Placer() Placer {
	switch e.cfg.PlacementStrategy {
	case config.StrategyCluster:
		return Cluster{}
	case config.StrategyOptimize:
		return Anneal{
			Iterations: e.cfg.OptimizeIterations,
			Seed:       e.cfg.Seed,
			Logger:     e.logger,
		}
	}
	return Grid{}
}

// Place positions the components of nl in place. On success every
// component has Placement.Placed set.
func (e *Engine) Place(ctx context.Context, nl *netlist.Netlist) (Result, error) {
	if e.state != Unplaced {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "placement engine already %s", e.state)
	}
	e.state = Placing
	start := time.Now()

	res, err := e.place(ctx, nl)
	if err != nil {
		e.state = PlacementFailed
		e.logger.Warn("placement failed", "design", nl.Name, "err", errors.UserMessage(err))
		return res, err
	}
	e.state = Placed
	res.Duration = time.Since(start)
	e.logger.Info("placement complete",
		"design", nl.Name,
		"strategy", res.Strategy,
		"moved", len(res.Moved),
		"wirelength", fmt.Sprintf("%.1fmm", res.WireLengthMM),
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

func (e *Engine) place(ctx context.Context, nl *netlist.Netlist) (Result, error) {
	res := Result{Strategy: e.cfg.PlacementStrategy}
	p, err := NewProblem(nl, e.cfg)
	if err != nil {
		return res, err
	}
	if len(p.Movable) > 0 {
		if err := e.Placer().Place(ctx, p); err != nil {
			return res, err
		}
	}
	if err := p.verify(); err != nil {
		return res, err
	}
	for _, c := range p.Movable {
		res.Moved = append(res.Moved, c.Ref)
		e.logger.Debug("placed", "ref", c.Ref, "x", c.Placement.X, "y", c.Placement.Y, "rotation", c.Placement.Rotation)
	}
	res.Warnings = append(p.warnings, p.keepOutWarnings()...)
	res.WireLengthMM = WireLength(nl)
	if p.fallback {
		res.Strategy = config.StrategyGrid
	}
	return res, nil
}
