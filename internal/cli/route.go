package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/layout"
)

// maxViolations bounds the clearance violations listed by route --check.
const maxViolations = 10

// routeCommand creates the route command: place and route one design.
func (c *CLI) routeCommand() *cobra.Command {
	var (
		df       designFlags
		cf       cacheFlags
		output   string
		snapshot bool
		check    bool
		showNets bool
		browse   bool
	)

	cmd := &cobra.Command{
		Use:   "route <design>",
		Short: "Place and route a design",
		Long: `Place the movable components of a design and route every net.

The design is a JSON or YAML file with the board outline, components and
nets. The routed layout is written as JSON next to the design unless
--output is given. Layouts are cached by design, configuration and
version; --refresh recomputes and --no-cache disables the cache.`,
		Example: `  boardroute route board.yaml
  boardroute route board.yaml -q high --layers 4 -o out/board.layout.json
  boardroute route board.yaml --config boardroute.toml --browse`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := c.pipelineOptions(cmd, &df, cf)
			if err != nil {
				return err
			}
			opts.Snapshot = snapshot

			nl, err := c.loadDesign(ctx, args[0])
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, cf)
			if err != nil {
				return err
			}
			defer runner.Close()

			prog := newProgress(c.Logger)
			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Routing %s...", nl.Name))
			spinner.Start()
			res, runErr := runner.Execute(ctx, nl, opts)
			spinner.Stop()
			if res == nil {
				return runErr
			}

			if output == "" {
				output = layoutPath(args[0])
			}
			if err := layout.WriteFile(res.Layout, output); err != nil {
				return fmt.Errorf("write layout: %w", err)
			}
			prog.done("routed "+nl.Name, "nets", len(res.Layout.Nets), "completion", formatPercent(res.Layout.Stats.CompletionRate))

			if runErr != nil {
				printError("Routing stopped: %s", errors.UserMessage(runErr))
				printFile(output)
				printRouteStats(res.Layout, false)
				return runErr
			}

			printSuccess("Routed %s", nl.Name)
			printFile(output)
			printRouteStats(res.Layout, res.CacheInfo.LayoutHit)
			printWarnings(res.Layout.Warnings)

			if check {
				printViolations(layout.CheckClearance(res.Layout))
			}
			if showNets {
				fmt.Println(netTable(res.Layout.Nets))
			}
			if browse {
				return browseNets(res.Layout)
			}

			printNewline()
			printNextStep("Inspect connectivity", fmt.Sprintf("%s netgraph %s --layout %s", appName, args[0], output))
			return nil
		},
	}

	df.register(cmd)
	cf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "layout output file (default: <design>.layout.json)")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "include the final grid occupancy in the layout")
	cmd.Flags().BoolVar(&check, "check", false, "run a geometric clearance check on the result")
	cmd.Flags().BoolVar(&showNets, "nets", false, "print a per-net table")
	cmd.Flags().BoolVar(&browse, "browse", false, "browse the routed nets interactively")

	return cmd
}

// printViolations reports clearance check results.
func printViolations(vs []layout.Violation) {
	if len(vs) == 0 {
		printSuccess("No clearance violations")
		return
	}
	printWarning("%d clearance violations", len(vs))
	for i, v := range vs {
		if i == maxViolations {
			printDetail("... and %d more", len(vs)-maxViolations)
			break
		}
		printDetail("%s / %s on layer %d at (%.2f, %.2f): gap %.3f mm", v.NetA, v.NetB, v.Layer, v.At.X, v.At.Y, v.GapMM)
	}
}
