package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"lootforge/forge"
)

// NewFactsCommand creates the facts command.
func NewFactsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "facts <file.jsonl.zst>",
		Short: "Print the records of a fact log file",
		Long: `Print the records of a fact log file written by --fact-log-dir or the server
plugin's LOOTFORGE_FACT_LOG_DIR.

Example:
  lootsim facts facts/loot-2026-01-02-15.jsonl.zst`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := forge.ReadFactLog(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read fact log", err)
			}
			return newFormatter(cmd, rootOpts).Success(records, func(w io.Writer) {
				for _, rec := range records {
					fmt.Fprintf(w, "%d %s %s %s\n", rec.Timestamp, rec.Name, rec.UserID, formatMetadata(rec.Metadata))
				}
			})
		},
	}
}

func formatMetadata(metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+metadata[k])
	}
	return strings.Join(parts, " ")
}
