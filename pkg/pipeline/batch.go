package pipeline

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

// Job is one design of a batch.
type Job struct {
	// Name labels the job in results; defaults to the netlist name.
	Name    string
	Netlist *netlist.Netlist
}

// JobResult is the outcome of one job. Exactly one of Result and Err is
// set, except for canceled jobs that may carry a partial Result.
type JobResult struct {
	Name     string
	Result   *Result
	Err      error
	Duration time.Duration
}

// BatchOptions configures [Runner.Batch].
type BatchOptions struct {
	Options

	// Workers bounds concurrent designs. Zero uses GOMAXPROCS.
	Workers int
}

// Batch runs every job and returns results in job order. A failing
// design does not stop the others. The returned error is non-nil only
// when ctx is done before every job finished.
func (r *Runner) Batch(ctx context.Context, jobs []Job, opts BatchOptions) ([]JobResult, error) {
	r.applyLogger(&opts.Options)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, stageError("options", err)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]JobResult, len(jobs))
	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, job := range jobs {
		name := job.Name
		if name == "" && job.Netlist != nil {
			name = job.Netlist.Name
		}
		results[i].Name = name
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = errors.Wrap(errors.ErrCodeCanceled, err, "batch canceled before %s", name)
				return nil
			}
			if job.Netlist == nil {
				results[i].Err = errors.New(errors.ErrCodeInvalidInput, "job %s has no netlist", name)
				return nil
			}
			start := time.Now()
			res, err := r.Execute(ctx, job.Netlist, opts.Options)
			results[i].Result = res
			results[i].Err = err
			results[i].Duration = time.Since(start)
			if err != nil {
				opts.Logger.Warn("design failed", "design", name, "err", errors.UserMessage(err))
			}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return results, errors.Wrap(errors.ErrCodeCanceled, err, "batch canceled")
	}
	return results, nil
}

// Summary counts batch outcomes.
type Summary struct {
	Designs        int
	Failed         int
	FullyRouted    int
	MeanCompletion float64
}

// Summarize reduces batch results.
func Summarize(results []JobResult) Summary {
	s := Summary{Designs: len(results)}
	routed := 0
	for _, jr := range results {
		if jr.Err != nil || jr.Result == nil {
			s.Failed++
			continue
		}
		rate := jr.Result.Layout.Stats.CompletionRate
		s.MeanCompletion += rate
		routed++
		if rate == 1 {
			s.FullyRouted++
		}
	}
	if routed > 0 {
		s.MeanCompletion /= float64(routed)
	}
	return s
}
