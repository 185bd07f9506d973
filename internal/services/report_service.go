package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/ingest"
)

// ErrNoOrders indicates an export was requested with an empty ledger
var ErrNoOrders = errors.New("no orders to export")

var orderFields = []string{"retailer", "order_number", "tracking_numbers", "ship_to", "sent_to", "sent_date", "status"}
var cancelFields = []string{"retailer", "order_number", "sent_to", "sent_date", "reason"}

// ReportService writes ledger snapshots out as CSV files. It only
// formats what the ledger exposes; it never mutates order state.
type ReportService struct {
	pipeline   *ingest.Pipeline
	logService *LogService
	outputDir  string
}

// NewReportService creates a ReportService writing under outputDir
func NewReportService(pipeline *ingest.Pipeline, logService *LogService, outputDir string) *ReportService {
	return &ReportService{
		pipeline:   pipeline,
		logService: logService,
		outputDir:  outputDir,
	}
}

// ExportResult describes an export run
type ExportResult struct {
	OrdersPath        string `json:"orders_path"`
	CancellationsPath string `json:"cancellations_path,omitempty"`
	OrderCount        int    `json:"order_count"`
	CancellationCount int    `json:"cancellation_count"`
}

// Export writes the ledger snapshot for one account (0 = all accounts,
// merged) to <prefix>_orders.csv and, when any cancellations exist,
// <prefix>_cancellations.csv. Hidden orders are excluded.
func (s *ReportService) Export(accountID uint, prefix string) (*ExportResult, error) {
	orders, err := s.pipeline.Snapshot(accountID)
	if err != nil {
		return nil, err
	}

	visible := orders[:0:0]
	for _, o := range orders {
		if !o.Hidden {
			visible = append(visible, o)
		}
	}
	if len(visible) == 0 {
		return nil, ErrNoOrders
	}

	if prefix == "" {
		prefix = time.Now().Format("20060102_150405")
	}
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return nil, err
	}

	result := &ExportResult{
		OrdersPath: filepath.Join(s.outputDir, prefix+"_orders.csv"),
		OrderCount: len(visible),
	}

	if err := writeOrdersCSV(result.OrdersPath, visible); err != nil {
		return nil, err
	}

	var cancelled []models.Order
	for _, o := range visible {
		if o.OrderStatusValue() == models.StatusCancelled {
			cancelled = append(cancelled, o)
		}
	}
	if len(cancelled) > 0 {
		result.CancellationsPath = filepath.Join(s.outputDir, prefix+"_cancellations.csv")
		result.CancellationCount = len(cancelled)
		if err := writeCancellationsCSV(result.CancellationsPath, cancelled); err != nil {
			return nil, err
		}
	}

	s.logService.LogInfo(models.LogModuleReport, "export", "CSV export completed", map[string]interface{}{
		"account_id":    accountID,
		"orders":        result.OrderCount,
		"cancellations": result.CancellationCount,
		"path":          result.OrdersPath,
	})
	return result, nil
}

func writeOrdersCSV(path string, orders []models.Order) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(orderFields); err != nil {
		return err
	}
	for _, o := range orders {
		row := []string{
			o.Retailer,
			o.OrderNumber,
			strings.Join(o.TrackingList(), "; "),
			o.ShipTo,
			o.SentTo,
			formatSentDate(o.LastUpdatedAt),
			o.Status,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeCancellationsCSV(path string, orders []models.Order) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(cancelFields); err != nil {
		return err
	}
	for _, o := range orders {
		row := []string{
			o.Retailer,
			o.OrderNumber,
			o.SentTo,
			formatSentDate(o.LastUpdatedAt),
			o.CancelReason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatSentDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
