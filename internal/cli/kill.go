package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lootforge/forge"
)

// KillOptions holds flags for the kill command.
type KillOptions struct {
	*RootOptions
	Account string
	Paid    int64
	Count   int
}

// NewKillCommand creates the kill command.
func NewKillCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KillOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Record kills and roll their loot",
		Long: `Record one or more kills for an account. Each kill pays the configured fee,
rolls a tier and places the new item in the account's inventory.

Example:
  lootsim kill --account alice --paid 10 --count 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKill(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "account making the kill")
	cmd.Flags().Int64Var(&opts.Paid, "paid", 0, "amount paid per kill")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of kills")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runKill(cmd *cobra.Command, opts *KillOptions) error {
	if opts.Count < 1 {
		return WrapExitError(ExitCommandError, "invalid --count", fmt.Errorf("%d < 1", opts.Count))
	}
	s, err := openSession(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	results := make([]*forge.KillResult, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		result, err := s.loot.Kill(s.ctx, s.logger, nil, opts.Account, opts.Paid)
		if err != nil {
			return operationError("kill", err)
		}
		results = append(results, result)
	}

	return newFormatter(cmd, opts.RootOptions).Success(results, func(w io.Writer) {
		for _, r := range results {
			status := "kept"
			if !r.Kept {
				status = "discarded"
			}
			fmt.Fprintf(w, "item %d tier %d (base %d, roll %d", r.Item.ID, r.Item.Tier, r.BaseTier, r.BaseRoll)
			if r.Upgraded {
				fmt.Fprint(w, ", upgraded")
			}
			fmt.Fprintf(w, ") %s", status)
			if r.Evicted != nil {
				fmt.Fprintf(w, ", evicted item %d tier %d", r.Evicted.ID, r.Evicted.Tier)
			}
			fmt.Fprintf(w, ", refund %d\n", r.Refund)
		}
	})
}
