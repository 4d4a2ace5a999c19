package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stub <day>",
		Short: "Record a day that was crafted without the planner",
		Args:  cobra.ExactArgs(1),
		Run:   runStub,
	}

	cmd.Flags().IntP("groove", "g", 0, "Groove at the end of the day (required)")
	cmd.Flags().Float64P("value", "v", 0, "Value earned that day (required)")
	cmd.MarkFlagRequired("groove")
	cmd.MarkFlagRequired("value")

	RootCmd.AddCommand(cmd)
}

func runStub(cmd *cobra.Command, args []string) {
	day, err := strconv.Atoi(args[0])
	if err != nil {
		exitErr("stub", fmt.Errorf("day must be a number: %w", err))
	}
	groove, _ := cmd.Flags().GetInt("groove")
	val, _ := cmd.Flags().GetFloat64("value")

	p, closeFn, err := openPlanner(cmd.Context())
	if err != nil {
		exitErr("open planner", err)
	}
	defer closeFn()

	sum, err := p.Stub(day, groove, val)
	if err != nil {
		exitErr("stub", err)
	}
	if jsonOutput() {
		printJSON(sum)
		return
	}
	fmt.Printf("day %d recorded: %s, %s so far, groove %d\n", sum.Day, value(sum.Gross), value(sum.CumulativeGross), sum.Groove)
}
