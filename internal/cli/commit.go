package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "commit <rank|key>",
		Short: "Lock in one of today's suggestions",
		Long:  "Solves the current day again and commits the suggestion with the given rank (1 is best) or combination key.",
		Args:  cobra.ExactArgs(1),
		Run:   runCommit,
	}

	RootCmd.AddCommand(cmd)
}

func runCommit(cmd *cobra.Command, args []string) {
	p, closeFn, err := openPlanner(cmd.Context())
	if err != nil {
		exitErr("open planner", err)
	}
	defer closeFn()

	days, err := p.Solve(cmd.Context())
	if err != nil {
		exitErr("solve", err)
	}
	day := days[0].Day

	key := args[0]
	if rank, err := strconv.Atoi(key); err == nil {
		sc, err := p.Suggestion(day, rank)
		if err != nil {
			exitErr("commit", err)
		}
		key = sc.Key
	}

	sum, err := p.Commit(day, key)
	if err != nil {
		exitErr("commit", err)
	}
	if jsonOutput() {
		printJSON(sum)
		return
	}
	fmt.Printf("day %d committed: %s net, %s so far, groove %d\n", sum.Day, value(sum.Net), value(sum.CumulativeNet), sum.Groove)
}
