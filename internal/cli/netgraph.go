package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/netgraph"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

// netgraphCommand creates the netgraph command: render net connectivity.
func (c *CLI) netgraphCommand() *cobra.Command {
	var (
		output     string
		layoutFile string
		complete   bool
		nets       []string
	)

	cmd := &cobra.Command{
		Use:   "netgraph <design>",
		Short: "Render the net connectivity of a design as DOT or SVG",
		Long: `Draw one node per component and one edge per connection the router
would attempt: the spanning tree of every net, or all pairs with --complete.

With --layout, components are pinned at their routed positions and edges
are coloured by routing status. The output format follows the extension
of --output (.dot or .svg).`,
		Example: `  boardroute netgraph board.yaml
  boardroute netgraph board.yaml --layout board.layout.json -o nets.svg
  boardroute netgraph board.yaml --net SDA --net SCL -o i2c.dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			nl, err := c.loadDesign(ctx, args[0])
			if err != nil {
				return err
			}

			opts := netgraph.Options{Complete: complete, Nets: nets}
			if layoutFile != "" {
				l, err := layout.ReadFile(layoutFile)
				if err != nil {
					return err
				}
				if err := nl.ApplyPlacements(placementMap(l)); err != nil {
					return err
				}
				opts.Layout = &l
			}

			if output == "" {
				output = trimExt(args[0]) + ".netgraph.svg"
			}
			dot := netgraph.ToDOT(nl, opts)
			data := []byte(dot)
			switch strings.ToLower(filepath.Ext(output)) {
			case ".dot", ".gv":
			case ".svg":
				prog := newProgress(c.Logger)
				if data, err = netgraph.RenderSVG(ctx, dot); err != nil {
					return err
				}
				prog.done("rendered netgraph", "bytes", len(data))
			default:
				return fmt.Errorf("unsupported netgraph format %q (use .dot or .svg)", filepath.Ext(output))
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printSuccess("Rendered %s", nl.Name)
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, .dot or .svg (default: <design>.netgraph.svg)")
	cmd.Flags().StringVarP(&layoutFile, "layout", "l", "", "routed layout for positions and status colours")
	cmd.Flags().BoolVar(&complete, "complete", false, "draw every pin pair instead of the spanning tree")
	cmd.Flags().StringSliceVar(&nets, "net", nil, "only draw the named nets (repeatable)")

	return cmd
}

// placementMap converts layout placements for [netlist.Netlist.ApplyPlacements].
func placementMap(l layout.Layout) map[string]netlist.Placement {
	m := make(map[string]netlist.Placement, len(l.Placements))
	for _, p := range l.Placements {
		m[p.Ref] = netlist.Placement{X: p.X, Y: p.Y, Rotation: p.Rotation, Placed: true, Fixed: p.Fixed}
	}
	return m
}
