package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	scanDays      int
	scanAccountID uint
)

// scanCmd runs a manual inbox scan
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan mailbox accounts for order emails now",
	Long: `Scan every enabled account (or one account with --account) and
merge extracted order events into the ledger.

The --days flag controls the window: -1 scans the whole mailbox, 0
scans incrementally since the last scan, N scans the past N days.`,
	Run: func(cmd *cobra.Command, args []string) {
		if scanService == nil {
			fmt.Fprintln(os.Stderr, "Error: scan service not initialized")
			os.Exit(1)
		}

		if scanAccountID != 0 {
			summary, err := scanService.ScanAccount(scanAccountID, scanDays)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
				os.Exit(1)
			}
			printSummary(summary.Processed, summary.Applied, summary.SkippedSeen,
				summary.SkippedUnclassified, summary.SkippedNoOrder, summary.RejectedConflicts, summary.Errors)
			return
		}

		summary, err := scanService.ScanAllAccounts(scanDays)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
			os.Exit(1)
		}
		printSummary(summary.Processed, summary.Applied, summary.SkippedSeen,
			summary.SkippedUnclassified, summary.SkippedNoOrder, summary.RejectedConflicts, summary.Errors)
	},
}

func printSummary(processed, applied, seen, unclassified, noOrder, conflicts, errs int) {
	fmt.Println("Scan finished.")
	fmt.Printf("  Processed:            %d\n", processed)
	fmt.Printf("  Applied:              %d\n", applied)
	fmt.Printf("  Skipped (seen):       %d\n", seen)
	fmt.Printf("  Skipped (no match):   %d\n", unclassified)
	fmt.Printf("  Skipped (no order#):  %d\n", noOrder)
	fmt.Printf("  Rejected (conflict):  %d\n", conflicts)
	if errs > 0 {
		fmt.Printf("  Errors:               %d\n", errs)
	}
}

func init() {
	scanCmd.Flags().IntVar(&scanDays, "days", 0, "days to scan back (-1 = whole mailbox, 0 = incremental)")
	scanCmd.Flags().UintVar(&scanAccountID, "account", 0, "scan only this account ID")
}
