package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/observability"
	"github.com/matzehuels/boardroute/pkg/pipeline"
)

// batchCommand creates the batch command: route many designs concurrently.
func (c *CLI) batchCommand() *cobra.Command {
	var (
		df      designFlags
		cf      cacheFlags
		outDir  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "batch <design|dir>...",
		Short: "Route several designs concurrently",
		Long: `Route every given design. Directories are expanded to the .json, .yaml
and .yml files they contain. A failing design does not stop the others.

Layouts are written next to each design, or into --output-dir. Use --redis
to share the layout cache between machines.`,
		Example: `  boardroute batch boards/ --workers 4
  boardroute batch a.yaml b.yaml --output-dir out --redis localhost:6379`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			files, err := expandDesigns(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				printInfo("No designs found")
				return nil
			}

			opts, err := c.pipelineOptions(cmd, &df, cf)
			if err != nil {
				return err
			}
			jobs := make([]pipeline.Job, 0, len(files))
			for _, f := range files {
				nl, err := c.loadDesign(ctx, f)
				if err != nil {
					return err
				}
				jobs = append(jobs, pipeline.Job{Name: f, Netlist: nl})
			}

			runner, err := c.newRunner(ctx, cf)
			if err != nil {
				return err
			}
			defer runner.Close()

			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Routing 0/%d designs...", len(jobs)))
			opts.Hooks = &batchProgress{spinner: spinner, total: len(jobs)}
			spinner.Start()
			results, batchErr := runner.Batch(ctx, jobs, pipeline.BatchOptions{Options: opts, Workers: workers})
			spinner.Stop()

			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}
			for i := range results {
				if results[i].Result == nil {
					continue
				}
				out := batchOutput(results[i].Name, outDir)
				if err := layout.WriteFile(results[i].Result.Layout, out); err != nil {
					results[i].Err = fmt.Errorf("write layout: %w", err)
				}
			}

			fmt.Println(batchTable(results))
			s := pipeline.Summarize(results)
			printKeyValue("Designs", fmt.Sprintf("%d", s.Designs))
			printKeyValue("Fully routed", fmt.Sprintf("%d", s.FullyRouted))
			printKeyValue("Mean routed", formatPercent(s.MeanCompletion))
			if batchErr != nil {
				return batchErr
			}
			if s.Failed > 0 {
				return fmt.Errorf("%d of %d designs failed", s.Failed, s.Designs)
			}
			printSuccess("Batch complete")
			return nil
		},
	}

	df.register(cmd)
	cf.register(cmd)
	cmd.Flags().StringVarP(&outDir, "output-dir", "o", "", "directory for layout files (default: next to each design)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "designs routed at once (default: number of CPUs)")

	return cmd
}

// batchProgress updates the spinner as designs finish routing.
type batchProgress struct {
	observability.NoopPipelineHooks
	spinner *Spinner
	total   int
	done    atomic.Int64
}

func (p *batchProgress) OnRouteComplete(context.Context, string, float64, time.Duration, error) {
	p.spinner.SetMessage("Routing %d/%d designs...", p.done.Add(1), p.total)
}

// expandDesigns resolves arguments to design files, expanding directories
// one level deep. The result is sorted and free of duplicates.
func expandDesigns(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "design %s", arg)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !isDesignFile(e.Name()) {
				continue
			}
			files = append(files, filepath.Join(arg, e.Name()))
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// isDesignFile reports whether name looks like a design input, skipping
// layouts written by earlier runs.
func isDesignFile(name string) bool {
	if strings.HasSuffix(name, ".layout.json") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// batchOutput places a design's layout in outDir, or next to the design.
func batchOutput(design, outDir string) string {
	out := layoutPath(design)
	if outDir == "" {
		return out
	}
	return filepath.Join(outDir, filepath.Base(out))
}

// batchTable renders one row per design.
func batchTable(results []pipeline.JobResult) string {
	rows := make([][]string, 0, len(results))
	for _, jr := range results {
		row := []string{filepath.Base(jr.Name), "failed", "-", "-", jr.Duration.Round(time.Millisecond).String()}
		if jr.Result != nil {
			st := jr.Result.Layout.Stats
			row[1] = "ok"
			if jr.Result.CacheInfo.LayoutHit {
				row[1] = iconCached
			}
			row[2] = formatPercent(st.CompletionRate)
			row[3] = fmt.Sprintf("%d", st.ViaCount)
		}
		if jr.Err != nil {
			row[1] = "failed"
			if code := errors.GetCode(jr.Err); code != "" {
				row[1] = string(code)
			}
		}
		rows = append(rows, row)
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Design", "Status", "Routed", "Vias", "Time").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader.Padding(0, 1)
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col == 1 && row >= 0 && row < len(results) {
				if results[row].Err != nil {
					return base.Foreground(colorRed)
				}
				return base.Foreground(colorGreen)
			}
			return base
		}).
		Render()
}
