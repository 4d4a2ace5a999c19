package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session, layout and cycle totals",
		Args:  cobra.NoArgs,
		Run:   runStatus,
	}

	RootCmd.AddCommand(cmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	p, closeFn, err := openPlanner(cmd.Context())
	if err != nil {
		exitErr("open planner", err)
	}
	defer closeFn()

	st := p.Status()
	if jsonOutput() {
		printJSON(st)
		return
	}
	fmt.Printf("session   %s\n", st.Session)
	fmt.Printf("layout    %d workshop(s) x %d slots\n", st.Layout.Workshops, st.Layout.Slots)
	if st.Complete {
		fmt.Printf("cycle     %d complete, run `workshop next-cycle`\n", st.Totals.Cycle)
	} else {
		fmt.Printf("cycle     %d, day %d\n", st.Totals.Cycle, st.Totals.Day)
	}
	fmt.Printf("totals    gross %s, net %s, groove %d\n", value(st.Totals.Gross), value(st.Totals.Net), st.Totals.Groove)
	if len(st.Pending) > 0 {
		fmt.Printf("pending   %s\n", strings.Join(st.Pending, ", "))
	}
}
