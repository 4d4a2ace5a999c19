package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "hint <product>",
		Short: "Record whether a product's demand peak is strong or weak",
		Args:  cobra.ExactArgs(1),
		Run:   runHint,
	}

	cmd.Flags().Bool("strong", false, "The peak is strong")
	cmd.Flags().Bool("weak", false, "The peak is weak")
	cmd.MarkFlagsOneRequired("strong", "weak")
	cmd.MarkFlagsMutuallyExclusive("strong", "weak")

	RootCmd.AddCommand(cmd)
}

func runHint(cmd *cobra.Command, args []string) {
	strong, _ := cmd.Flags().GetBool("strong")

	p, closeFn, err := openPlanner(cmd.Context())
	if err != nil {
		exitErr("open planner", err)
	}
	defer closeFn()

	if err := p.Hint(args[0], strong); err != nil {
		exitErr("hint", err)
	}
	pending := p.Status().Pending
	if jsonOutput() {
		printJSON(map[string]any{"pending_hints": pending})
		return
	}
	fmt.Printf("recorded; %d product(s) still need a hint\n", len(pending))
}
