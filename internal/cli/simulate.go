package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"lootforge/forge"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Kills    int
	Accounts int
	Seed     uint64
}

// SimulationReport summarises the outcome of a simulated run.
type SimulationReport struct {
	Kills      int                    `json:"kills"`
	Accounts   int                    `json:"accounts"`
	BaseTiers  [forge.MaxTier + 1]int `json:"base_tiers"`
	FinalTiers [forge.MaxTier + 1]int `json:"final_tiers"`
	Upgrades   int                    `json:"upgrades"`
	Discarded  int                    `json:"discarded"`
	Evicted    int                    `json:"evicted"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run kills against an in-memory ledger and report the tier distribution",
		Long: `Run kills round-robin over a set of accounts against a throwaway in-memory
ledger. Samples are derived from --seed, so runs are reproducible.

Example:
  lootsim simulate --kills 100000 --accounts 10 --seed 7`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Kills, "kills", 10000, "number of kills")
	cmd.Flags().IntVar(&opts.Accounts, "accounts", 1, "number of accounts")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "environment seed")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *SimulateOptions) error {
	if opts.Kills < 1 || opts.Accounts < 1 {
		return WrapExitError(ExitCommandError, "invalid flags", fmt.Errorf("--kills and --accounts must be positive"))
	}
	s, err := newSession(cmd.Context(), opts.RootOptions, forge.NewMemoryStore())
	if err != nil {
		return err
	}
	defer s.Close()

	config := s.loot.GetConfig().(*forge.LootConfig)
	s.loot.SetEnvironmentSource(&forge.SeededEnvironmentSource{
		Seed:         opts.Seed,
		CapacityHint: config.CapacityHint,
		FeeHint:      config.FeeHint,
	})

	report := &SimulationReport{Kills: opts.Kills, Accounts: opts.Accounts}
	for i := 0; i < opts.Kills; i++ {
		account := "account-" + strconv.Itoa(i%opts.Accounts+1)
		result, err := s.loot.Kill(s.ctx, s.logger, nil, account, config.KillFee)
		if err != nil {
			return operationError("kill", err)
		}
		report.BaseTiers[result.BaseTier]++
		report.FinalTiers[result.Item.Tier]++
		if result.Upgraded {
			report.Upgrades++
		}
		if !result.Kept {
			report.Discarded++
		}
		if result.Evicted != nil {
			report.Evicted++
		}
	}

	return newFormatter(cmd, opts.RootOptions).Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "%d kills over %d accounts: %d upgraded, %d discarded, %d evicted\n",
			report.Kills, report.Accounts, report.Upgrades, report.Discarded, report.Evicted)
		fmt.Fprintln(w, "tier  base      final")
		for tier := forge.MinTier; tier <= forge.MaxTier; tier++ {
			fmt.Fprintf(w, "%4d  %-8d  %d\n", tier, report.BaseTiers[tier], report.FinalTiers[tier])
		}
	})
}
