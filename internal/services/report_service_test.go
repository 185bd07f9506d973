package services

import (
	"encoding/csv"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/ingest"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/rules"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupReportTest(t *testing.T) (*ReportService, *ingest.Pipeline, string) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "report_test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := gorm.Open(sqlite.Open(tmpFile.Name()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.SeenMessage{}, &models.Log{}); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.Remove(tmpFile.Name())
	})

	registry, err := rules.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry() = %v", err)
	}
	pipeline := ingest.NewPipeline(db, registry)
	outDir := t.TempDir()
	svc := NewReportService(pipeline, NewLogService(db), outDir)
	return svc, pipeline, outDir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestExportWritesOrdersAndCancellations(t *testing.T) {
	svc, pipeline, _ := setupReportTest(t)

	shipped := ingest.RawMessage{
		MessageID: "<s@mail>",
		From:      "orders@target.com",
		Subject:   "Shipped",
		Date:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		TextBody:  "Your order #902002669367042 has shipped! Tracking: 1Z999AA10123456784",
	}
	cancelled := ingest.RawMessage{
		MessageID: "<c@mail>",
		From:      "orders@target.com",
		Subject:   "Order update",
		Date:      time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC),
		TextBody:  "Sorry, we had to cancel your order #111122223333. Payment issue.",
	}
	for _, raw := range []ingest.RawMessage{shipped, cancelled} {
		if _, err := pipeline.Ingest(1, raw); err != nil {
			t.Fatalf("Ingest() = %v", err)
		}
	}

	result, err := svc.Export(1, "testrun")
	if err != nil {
		t.Fatalf("Export() = %v", err)
	}
	if result.OrderCount != 2 {
		t.Errorf("OrderCount = %d, want 2", result.OrderCount)
	}
	if result.CancellationCount != 1 {
		t.Errorf("CancellationCount = %d, want 1", result.CancellationCount)
	}

	rows := readCSV(t, result.OrdersPath)
	if len(rows) != 3 {
		t.Fatalf("orders CSV rows = %d, want header + 2", len(rows))
	}
	if strings.Join(rows[0], ",") != "retailer,order_number,tracking_numbers,ship_to,sent_to,sent_date,status" {
		t.Errorf("orders header = %v", rows[0])
	}

	cancelRows := readCSV(t, result.CancellationsPath)
	if len(cancelRows) != 2 {
		t.Fatalf("cancellations CSV rows = %d, want header + 1", len(cancelRows))
	}
	if cancelRows[1][1] != "111122223333" {
		t.Errorf("cancellation order_number = %q", cancelRows[1][1])
	}
	if cancelRows[1][4] != "Payment issue" {
		t.Errorf("cancellation reason = %q", cancelRows[1][4])
	}
}

func TestExportSkipsHiddenOrders(t *testing.T) {
	svc, pipeline, _ := setupReportTest(t)

	raw := ingest.RawMessage{
		MessageID: "<h@mail>",
		From:      "orders@target.com",
		Subject:   "Shipped",
		Date:      time.Now(),
		TextBody:  "Your order #902002669367042 has shipped!",
	}
	if _, err := pipeline.Ingest(1, raw); err != nil {
		t.Fatalf("Ingest() = %v", err)
	}

	orders, _ := pipeline.Snapshot(1)
	if err := pipeline.Ledger().SetHidden(orders[0].ID, true); err != nil {
		t.Fatalf("SetHidden() = %v", err)
	}

	_, err := svc.Export(1, "hidden")
	if !errors.Is(err, ErrNoOrders) {
		t.Fatalf("Export() = %v, want ErrNoOrders when everything is hidden", err)
	}
}

func TestExportEmptyLedger(t *testing.T) {
	svc, _, _ := setupReportTest(t)
	_, err := svc.Export(0, "empty")
	if !errors.Is(err, ErrNoOrders) {
		t.Fatalf("Export() = %v, want ErrNoOrders", err)
	}
}
