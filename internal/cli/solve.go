package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Rank today's schedules and project the following days",
		Args:  cobra.NoArgs,
		Run:   runSolve,
	}

	RootCmd.AddCommand(cmd)
}

func runSolve(cmd *cobra.Command, args []string) {
	p, closeFn, err := openPlanner(cmd.Context())
	if err != nil {
		exitErr("open planner", err)
	}
	defer closeFn()

	days, err := p.Solve(cmd.Context())
	if err != nil {
		exitErr("solve", err)
	}
	views := p.Present(days)
	if jsonOutput() {
		printJSON(views)
		return
	}
	if pending := p.Status().Pending; len(pending) > 0 {
		cmd.PrintErrf("demand cycle unknown for %v; record it with `workshop hint`\n", pending)
	}
	writeDays(os.Stdout, views)
}
