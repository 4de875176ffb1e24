package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/boardroute/pkg/footprint"
)

// footprintsCommand creates the footprints command: list the library.
func (c *CLI) footprintsCommand() *cobra.Command {
	var df designFlags

	cmd := &cobra.Command{
		Use:   "footprints [name...]",
		Short: "List the footprints known to the library",
		Long: `List the built-in footprints and those found in --footprints.
With names, only those footprints are shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lib := c.library(&df)
			names := args
			if len(names) == 0 {
				var err error
				if names, err = lib.Names(ctx); err != nil {
					return err
				}
			}

			defs := make([]footprint.Definition, 0, len(names))
			for _, name := range names {
				d, err := lib.Get(ctx, name)
				if err != nil {
					return err
				}
				defs = append(defs, d)
			}
			fmt.Println(footprintTable(defs))
			printDetail("%d footprints", len(defs))
			return nil
		},
	}

	cmd.Flags().StringVar(&df.footprints, "footprints", "", "directory of footprint definitions (.yaml, .json)")
	return cmd
}

// footprintTable renders footprint sizes and pad counts.
func footprintTable(defs []footprint.Definition) string {
	rows := make([][]string, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, []string{
			d.Name,
			strconv.FormatFloat(d.Width, 'f', 2, 64) + " x " + strconv.FormatFloat(d.Height, 'f', 2, 64),
			strconv.Itoa(len(d.Pads)),
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Footprint", "Size mm", "Pads").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}
