package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "List the recorded days of the current cycle",
		Args:  cobra.NoArgs,
		Run:   runSummaries,
	}

	RootCmd.AddCommand(cmd)
}

func runSummaries(cmd *cobra.Command, args []string) {
	p, closeFn, err := openPlanner(cmd.Context())
	if err != nil {
		exitErr("open planner", err)
	}
	defer closeFn()

	sums := p.Summaries()
	totals := p.Status().Totals
	if jsonOutput() {
		printJSON(map[string]any{"totals": totals, "summaries": sums})
		return
	}
	writeSummaries(os.Stdout, sums, totals)
}
