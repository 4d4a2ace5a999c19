package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "next-cycle",
		Short: "Close the finished week and start the next one",
		Args:  cobra.NoArgs,
		Run:   runNextCycle,
	}

	RootCmd.AddCommand(cmd)
}

func runNextCycle(cmd *cobra.Command, args []string) {
	p, closeFn, err := openPlanner(cmd.Context())
	if err != nil {
		exitErr("open planner", err)
	}
	defer closeFn()

	if err := p.NextCycle(cmd.Context()); err != nil {
		exitErr("next cycle", err)
	}
	st := p.Status()
	if jsonOutput() {
		printJSON(st)
		return
	}
	fmt.Printf("cycle %d started\n", st.Totals.Cycle)
}
