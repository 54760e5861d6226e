package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lootforge/forge"
)

// TradeOptions holds flags shared by the trade subcommands.
type TradeOptions struct {
	*RootOptions
	Account string
	ID      uint64
}

// NewTradeCommand creates the trade command and its subcommands.
func NewTradeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Propose, accept, cancel and inspect item swaps",
	}

	cmd.AddCommand(newTradeProposeCommand(rootOpts))
	cmd.AddCommand(newTradeDecisionCommand(rootOpts, "accept", "Accept an offer as its counterparty"))
	cmd.AddCommand(newTradeDecisionCommand(rootOpts, "cancel", "Cancel an offer as its initiator"))
	cmd.AddCommand(newTradeGetCommand(rootOpts))
	cmd.AddCommand(newTradeListCommand(rootOpts))

	return cmd
}

func newTradeProposeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		from, to   string
		give, want uint64
	)

	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Offer one of your items for one of another account's",
		Long: `Offer one of your items for one of another account's.

Example:
  lootsim trade propose --from alice --to bob --give 3 --want 7`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			offer, err := s.trades.ProposeTrade(s.ctx, s.logger, nil, from, to, give, want)
			if err != nil {
				return operationError("propose trade", err)
			}
			return newFormatter(cmd, rootOpts).Success(offer, func(w io.Writer) {
				printOffer(w, offer)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "initiating account")
	cmd.Flags().StringVar(&to, "to", "", "counterparty account")
	cmd.Flags().Uint64Var(&give, "give", 0, "item id offered by the initiator")
	cmd.Flags().Uint64Var(&want, "want", 0, "item id requested from the counterparty")
	for _, name := range []string{"from", "to", "give", "want"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newTradeDecisionCommand(rootOpts *RootOptions, use, short string) *cobra.Command {
	opts := &TradeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer s.Close()

			if use == "cancel" {
				if err := s.trades.CancelTrade(s.ctx, s.logger, nil, opts.Account, opts.ID); err != nil {
					return operationError("cancel trade", err)
				}
				return newFormatter(cmd, opts.RootOptions).Success(map[string]uint64{"cancelled": opts.ID}, func(w io.Writer) {
					fmt.Fprintf(w, "trade %d cancelled\n", opts.ID)
				})
			}

			offer, err := s.trades.AcceptTrade(s.ctx, s.logger, nil, opts.Account, opts.ID)
			if err != nil {
				return operationError("accept trade", err)
			}
			return newFormatter(cmd, opts.RootOptions).Success(offer, func(w io.Writer) {
				printOffer(w, offer)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "calling account")
	cmd.Flags().Uint64Var(&opts.ID, "id", 0, "trade id")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newTradeGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TradeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "get",
		Short:         "Show one offer",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer s.Close()

			offer, err := s.trades.GetTrade(s.ctx, s.logger, nil, opts.ID)
			if err != nil {
				return operationError("get trade", err)
			}
			return newFormatter(cmd, opts.RootOptions).Success(offer, func(w io.Writer) {
				printOffer(w, offer)
			})
		},
	}

	cmd.Flags().Uint64Var(&opts.ID, "id", 0, "trade id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newTradeListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TradeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List the offers an account is party to",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer s.Close()

			offers, err := s.trades.ListTrades(s.ctx, s.logger, nil, opts.Account)
			if err != nil {
				return operationError("list trades", err)
			}
			return newFormatter(cmd, opts.RootOptions).Success(offers, func(w io.Writer) {
				for _, offer := range offers {
					printOffer(w, offer)
				}
			})
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "account to list offers for")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func printOffer(w io.Writer, offer *forge.TradeOffer) {
	state := "open"
	if offer.Executed {
		state = "executed"
	}
	fmt.Fprintf(w, "trade %d [%s]: %s gives item %d, %s gives item %d\n",
		offer.ID, state, offer.Initiator, offer.InitiatorItemID, offer.Counterparty, offer.CounterpartyItemID)
}
