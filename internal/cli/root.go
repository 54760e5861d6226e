package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lootforge/forge"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose      bool
	Format       string // "json" | "text"
	DB           string
	LootConfig   string
	TradesConfig string
	FactLogDir   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the lootsim CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lootsim",
		Short: "lootsim - drive the loot ledger from the command line",
		Long: `Run kills, transfers and trades against a local SQLite loot ledger.

Flags left unset fall back to the LOOTFORGE_* environment variables used by the
server plugin.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return applyEnvDefaults(cmd, opts)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "lootforge.db", "path to the SQLite ledger")
	cmd.PersistentFlags().StringVar(&opts.LootConfig, "loot-config", "", "loot system config file (json or yaml)")
	cmd.PersistentFlags().StringVar(&opts.TradesConfig, "trades-config", "", "trades system config file (json or yaml)")
	cmd.PersistentFlags().StringVar(&opts.FactLogDir, "fact-log-dir", "", "directory for the compressed fact log")

	cmd.AddCommand(NewKillCommand(opts))
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewAccountsCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewTradeCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewFactsCommand(opts))

	return cmd
}

// applyEnvDefaults fills every flag the user did not set from the plugin environment.
func applyEnvDefaults(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := forge.ParsePluginConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("db") && cfg.SQLitePath != "" {
		opts.DB = cfg.SQLitePath
	}
	if !flags.Changed("loot-config") && cfg.LootConfigFile != "" {
		opts.LootConfig = cfg.LootConfigFile
	}
	if !flags.Changed("trades-config") && cfg.TradesConfigFile != "" {
		opts.TradesConfig = cfg.TradesConfigFile
	}
	if !flags.Changed("fact-log-dir") && cfg.FactLogDir != "" {
		opts.FactLogDir = cfg.FactLogDir
	}
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
