package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// TransferOptions holds flags for the transfer command.
type TransferOptions struct {
	*RootOptions
	From string
	To   string
	Item uint64
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move an item to another account",
		Long: `Move an item to another account. A full destination only takes the item when it
is stronger than the destination's weakest item, which is then destroyed.

Example:
  lootsim transfer --from alice --to bob --item 42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "current holder")
	cmd.Flags().StringVar(&opts.To, "to", "", "destination account")
	cmd.Flags().Uint64Var(&opts.Item, "item", 0, "item id")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func runTransfer(cmd *cobra.Command, opts *TransferOptions) error {
	s, err := openSession(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.loot.TransferItem(s.ctx, s.logger, nil, opts.From, opts.To, opts.Item)
	if err != nil {
		return operationError("transfer", err)
	}

	return newFormatter(cmd, opts.RootOptions).Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "item %d tier %d: %s -> %s", result.Item.ID, result.Item.Tier, result.From, result.To)
		if result.Evicted != nil {
			fmt.Fprintf(w, ", evicted item %d tier %d", result.Evicted.ID, result.Evicted.Tier)
		}
		fmt.Fprintln(w)
	})
}
