package main

import (
	"encoding/json"
	"fmt"

	"github.com/daviddao/crosslist/internal/display"
	"github.com/daviddao/crosslist/internal/platform"
	"github.com/daviddao/crosslist/internal/types"
	"github.com/spf13/cobra"
)

var (
	historyLimit    int
	historySold     bool
	historyPlatform platformValue
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show scanned sold mail and detected sales",
	Long: `Show the local journal written by 'crosslist cancel mail'.

The journal is an audit trail only. Whether a mail is processed is decided
by its Gmail label, not by this history.`,
	Example: `  crosslist history
  crosslist history --sold -n 50
  crosslist history -p yahoo_auction --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal()
		if err != nil {
			return err
		}

		kind := ""
		if historySold {
			kind = types.KindSold
		}
		entries, err := j.List(kind, historyPlatform.String(), historyLimit)
		if err != nil {
			return fmt.Errorf("list journal: %w", err)
		}

		if jsonOutput {
			if entries == nil {
				entries = []*types.JournalEntry{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No journal entries yet.")
			return nil
		}

		counts, err := j.CountByKind()
		if err != nil {
			return fmt.Errorf("count journal: %w", err)
		}
		display.Header("Crosslist history")
		display.SubHeader(fmt.Sprintf("%d mails scanned, %d sales", counts[types.KindMailScanned], counts[types.KindSold]))
		fmt.Println()
		for _, e := range entries {
			name := e.Platform
			if p, ok := platform.ByCode(e.Platform); ok {
				name = p.Name()
			}
			fmt.Println("  " + display.JournalLine(e, name))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&historySold, "sold", false, "Show sales only")
	historyCmd.Flags().VarP(&historyPlatform, "platform", "p", "Only this platform")

	rootCmd.AddCommand(historyCmd)
}
