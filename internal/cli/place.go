package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/boardroute/pkg/netlist"
	"github.com/matzehuels/boardroute/pkg/pipeline"
)

// placeCommand creates the place command: placement without routing.
func (c *CLI) placeCommand() *cobra.Command {
	var (
		df     designFlags
		output string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "place <design>",
		Short: "Place the components of a design without routing",
		Long: `Place the movable components of a design and write the placed design.

The output keeps the input format and marks every positioned component as
placed, so it can be edited and routed later. Fixed components are never
moved.`,
		Example: `  boardroute place board.yaml --strategy cluster
  boardroute place board.json --strategy optimize --seed 7 -o placed.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := c.pipelineOptions(cmd, &df, cacheFlags{})
			if err != nil {
				return err
			}
			nl, err := c.loadDesign(ctx, args[0])
			if err != nil {
				return err
			}

			runner := pipeline.NewRunner(nil, nil, c.Logger)
			work, warnings, err := runner.Prepare(ctx, nl, opts)
			if err != nil {
				return err
			}
			res, err := runner.Place(ctx, work, opts)
			if err != nil {
				return err
			}

			if output == "" {
				output = placedPath(args[0])
			}
			if err := netlist.WriteFile(work, output); err != nil {
				return fmt.Errorf("write placed design: %w", err)
			}

			printSuccess("Placed %d components with %s strategy", len(res.Moved), res.Strategy)
			printFile(output)
			printDetail("estimated wire length %.1f mm · %s", res.WireLengthMM, res.Duration.Round(time.Millisecond))
			for _, w := range append(warnings, res.Warnings...) {
				printWarning("%s", w.Error())
			}
			if !quiet {
				fmt.Println(placementTable(work))
			}
			return nil
		},
	}

	df.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "placed design output file (default: <design>.placed.<ext>)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "do not print the placement table")

	return cmd
}

// placementTable renders component positions.
func placementTable(nl *netlist.Netlist) string {
	comps := nl.Components()
	rows := make([][]string, 0, len(comps))
	for _, c := range comps {
		state := "placed"
		switch {
		case c.Placement.Fixed:
			state = "fixed"
		case !c.Placement.Placed:
			state = "-"
		}
		rows = append(rows, []string{
			c.Ref,
			c.Footprint.Name,
			strconv.FormatFloat(c.Placement.X, 'f', 2, 64),
			strconv.FormatFloat(c.Placement.Y, 'f', 2, 64),
			strconv.Itoa(c.Placement.Rotation),
			state,
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Ref", "Footprint", "X mm", "Y mm", "Rot", "State").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader.Padding(0, 1)
			}
			if col == 5 && row >= 0 && row < len(comps) && comps[row].Placement.Fixed {
				return StyleDim.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}
