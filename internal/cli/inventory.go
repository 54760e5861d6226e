package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lootforge/forge"
)

// InventoryOptions holds flags for the inventory command.
type InventoryOptions struct {
	*RootOptions
	Account string
}

// InventoryReport is everything the ledger knows about one account.
type InventoryReport struct {
	Account string        `json:"account"`
	Items   []*forge.Item `json:"items"`
	Boost   int64         `json:"boost"`
	Kills   uint64        `json:"kills"`
	Total   uint64        `json:"total_kills"`
}

// NewInventoryCommand creates the inventory command.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InventoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "inventory",
		Short:         "Show an account's items, upgrade boost and kill count",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "account to inspect")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runInventory(cmd *cobra.Command, opts *InventoryOptions) error {
	s, err := openSession(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.loot.ListInventory(s.ctx, s.logger, nil, opts.Account)
	if err != nil {
		return operationError("list inventory", err)
	}
	boost, err := s.loot.GetBoost(s.ctx, s.logger, nil, opts.Account)
	if err != nil {
		return operationError("get boost", err)
	}
	counts, err := s.loot.GetKillCounts(s.ctx, s.logger, nil, opts.Account)
	if err != nil {
		return operationError("get kill counts", err)
	}

	report := &InventoryReport{
		Account: opts.Account,
		Items:   items,
		Boost:   boost,
		Kills:   counts.Account,
		Total:   counts.Total,
	}
	return newFormatter(cmd, opts.RootOptions).Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %d items, boost %d bps, %d of %d kills\n", report.Account, len(report.Items), report.Boost, report.Kills, report.Total)
		for slot, item := range report.Items {
			fmt.Fprintf(w, "  [%2d] item %d tier %d\n", slot, item.ID, item.Tier)
		}
	})
}

// NewAccountsCommand creates the accounts command.
func NewAccountsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "accounts",
		Short:         "List known accounts in the order they joined",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			accounts, err := s.loot.ListAccounts(s.ctx, s.logger, nil)
			if err != nil {
				return operationError("list accounts", err)
			}
			return newFormatter(cmd, rootOpts).Success(accounts, func(w io.Writer) {
				for _, account := range accounts {
					fmt.Fprintln(w, account)
				}
			})
		},
	}
}
