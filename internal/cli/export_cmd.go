package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/services"
	"github.com/spf13/cobra"
)

var (
	exportAccountID uint
	exportPrefix    string
)

// exportCmd writes the ledger snapshot out as CSV reports
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the order ledger to CSV",
	Long: `Write <prefix>_orders.csv and, when cancellations exist,
<prefix>_cancellations.csv under the configured output directory.
With --account 0 (the default) all accounts are merged, deduplicated
by retailer and order number.`,
	Run: func(cmd *cobra.Command, args []string) {
		if reportService == nil {
			fmt.Fprintln(os.Stderr, "Error: report service not initialized")
			os.Exit(1)
		}

		result, err := reportService.Export(exportAccountID, exportPrefix)
		if err != nil {
			if errors.Is(err, services.ErrNoOrders) {
				fmt.Println("Ledger is empty, nothing to export.")
				return
			}
			fmt.Fprintf(os.Stderr, "Error: export failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Wrote %d orders to %s\n", result.OrderCount, result.OrdersPath)
		if result.CancellationsPath != "" {
			fmt.Printf("Wrote %d cancellations to %s\n", result.CancellationCount, result.CancellationsPath)
		}
	},
}

func init() {
	exportCmd.Flags().UintVar(&exportAccountID, "account", 0, "export only this account ID (0 = all, merged)")
	exportCmd.Flags().StringVar(&exportPrefix, "prefix", "", "file name prefix (default: timestamp)")
}
