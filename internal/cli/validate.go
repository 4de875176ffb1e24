package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/netlist"
	"github.com/matzehuels/boardroute/pkg/pipeline"
)

// validateCommand creates the validate command: a netlist integrity report.
func (c *CLI) validateCommand() *cobra.Command {
	var df designFlags

	cmd := &cobra.Command{
		Use:   "validate <design>",
		Short: "Check a design for netlist errors without routing",
		Long: `Resolve footprints and check every net of a design.

Dangling endpoints and unknown footprints are errors. Nets with fewer than
two distinct endpoints are reported as warnings and skipped by the router.`,
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

			printKeyValue("Design", nl.Name)
			printKeyValue("Board", fmt.Sprintf("%.1f x %.1f mm", nl.Board.Width, nl.Board.Height))
			printKeyValue("Components", fmt.Sprintf("%d", len(nl.Components())))
			printKeyValue("Nets", fmt.Sprintf("%d (%d pins)", len(nl.Nets()), pinCount(nl)))
			printNewline()

			runner := pipeline.NewRunner(nil, nil, c.Logger)
			_, warnings, err := runner.Prepare(ctx, nl, opts)
			for _, w := range warnings {
				printWarning("%s", describe(w))
			}
			if err != nil {
				printError("%s", describe(err))
				return err
			}
			if len(warnings) == 0 {
				printSuccess("Design is valid")
			} else {
				printSuccess("Design is valid with %d warnings", len(warnings))
			}
			return nil
		},
	}

	df.register(cmd)
	return cmd
}

// pinCount sums endpoints across nets.
func pinCount(nl *netlist.Netlist) int {
	n := 0
	for _, net := range nl.Nets() {
		n += len(net.Endpoints)
	}
	return n
}

// describe renders an error with its code and subject.
func describe(err error) string {
	code := errors.GetCode(err)
	if code == "" {
		return err.Error()
	}
	if subject := errors.GetSubject(err); subject != "" {
		return fmt.Sprintf("%s [%s]: %s", code, subject, errors.UserMessage(err))
	}
	return fmt.Sprintf("%s: %s", code, errors.UserMessage(err))
}
