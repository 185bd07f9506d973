package ingest

import (
	"os"
	"testing"
	"time"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/rules"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPipelineTest(t *testing.T) (*Pipeline, *gorm.DB) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "pipeline_test_*.db")
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
	if err := db.AutoMigrate(&models.Order{}, &models.SeenMessage{}); err != nil {
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
	return NewPipeline(db, registry), db
}

func shippedRaw(messageID string, day int) RawMessage {
	return RawMessage{
		MessageID: messageID,
		From:      "orders@target.com",
		To:        "jane@example.com",
		Subject:   "Your order has shipped!",
		Date:      time.Date(2026, 5, day, 10, 0, 0, 0, time.UTC),
		TextBody:  "Your order #902002669367042 has shipped! Tracking: 1Z999AA10123456784",
	}
}

func TestIngestAppliesOrderEvent(t *testing.T) {
	p, _ := setupPipelineTest(t)

	res, err := p.Ingest(1, shippedRaw("<m1@mail>", 1))
	if err != nil {
		t.Fatalf("Ingest() = %v", err)
	}
	if res.Kind != ResultApplied {
		t.Fatalf("Kind = %v, want applied", res.Kind)
	}
	if res.Event == nil || res.Event.OrderNumber != "902002669367042" {
		t.Errorf("Event = %+v", res.Event)
	}

	orders, err := p.Snapshot(1)
	if err != nil {
		t.Fatalf("Snapshot() = %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Snapshot() rows = %d, want 1", len(orders))
	}
	if orders[0].Status != string(models.StatusShipped) {
		t.Errorf("Status = %q, want SHIPPED", orders[0].Status)
	}
}

func TestIngestDedupIdempotence(t *testing.T) {
	p, _ := setupPipelineTest(t)

	raw := shippedRaw("<dup@mail>", 1)
	if _, err := p.Ingest(1, raw); err != nil {
		t.Fatalf("first Ingest() = %v", err)
	}
	before, _ := p.Snapshot(1)

	res, err := p.Ingest(1, raw)
	if err != nil {
		t.Fatalf("second Ingest() = %v", err)
	}
	if res.Kind != ResultSkippedAlreadySeen {
		t.Fatalf("second Kind = %v, want skipped_already_seen", res.Kind)
	}

	after, _ := p.Snapshot(1)
	if len(after) != len(before) {
		t.Errorf("ledger rows changed on duplicate: %d -> %d", len(before), len(after))
	}
	if after[0].LastUpdatedAt != before[0].LastUpdatedAt {
		t.Errorf("ledger entry mutated on duplicate ingest")
	}
}

func TestIngestUnclassifiedStillMarkedSeen(t *testing.T) {
	p, _ := setupPipelineTest(t)

	raw := RawMessage{
		MessageID: "<spam@mail>",
		From:      "newsletter@random-store.example",
		Subject:   "Big sale this weekend",
		Date:      time.Now(),
		TextBody:  "Everything must go!",
	}

	res, err := p.Ingest(1, raw)
	if err != nil {
		t.Fatalf("Ingest() = %v", err)
	}
	if res.Kind != ResultSkippedUnclassified {
		t.Fatalf("Kind = %v, want skipped_unclassified", res.Kind)
	}

	orders, _ := p.Snapshot(1)
	if len(orders) != 0 {
		t.Errorf("ledger rows = %d, want 0", len(orders))
	}

	seen, err := p.Seen().HasSeen(1, "<spam@mail>")
	if err != nil {
		t.Fatalf("HasSeen() = %v", err)
	}
	if !seen {
		t.Error("unclassified message not recorded as seen")
	}
}

func TestIngestNoOrderNumberStillMarkedSeen(t *testing.T) {
	p, _ := setupPipelineTest(t)

	raw := RawMessage{
		MessageID: "<vague@mail>",
		From:      "orders@target.com",
		Subject:   "About your recent purchase",
		Date:      time.Now(),
		TextBody:  "Thanks for shopping with us.",
	}

	res, err := p.Ingest(1, raw)
	if err != nil {
		t.Fatalf("Ingest() = %v", err)
	}
	if res.Kind != ResultSkippedNoOrderNumber {
		t.Fatalf("Kind = %v, want skipped_no_order_number", res.Kind)
	}

	seen, _ := p.Seen().HasSeen(1, "<vague@mail>")
	if !seen {
		t.Error("message without order number not recorded as seen")
	}
}

func TestIngestDeliveredAfterShipped(t *testing.T) {
	p, _ := setupPipelineTest(t)

	if _, err := p.Ingest(1, shippedRaw("<m1@mail>", 1)); err != nil {
		t.Fatalf("Ingest(shipped) = %v", err)
	}

	delivered := RawMessage{
		MessageID: "<m2@mail>",
		From:      "orders@target.com",
		Subject:   "Your order was delivered",
		Date:      time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC),
		TextBody:  "Good news! Order #902002669367042 was delivered today.",
	}
	res, err := p.Ingest(1, delivered)
	if err != nil {
		t.Fatalf("Ingest(delivered) = %v", err)
	}
	if res.Kind != ResultApplied {
		t.Fatalf("Kind = %v, want applied", res.Kind)
	}

	orders, _ := p.Snapshot(1)
	if len(orders) != 1 {
		t.Fatalf("Snapshot() rows = %d, want 1", len(orders))
	}
	if orders[0].Status != string(models.StatusDelivered) {
		t.Errorf("Status = %q, want DELIVERED", orders[0].Status)
	}
	// The delivered email carried no tracking number; the shipped
	// email's UPS number must still be there.
	if list := orders[0].TrackingList(); len(list) != 1 || list[0] != "1Z999AA10123456784" {
		t.Errorf("TrackingList() = %v", list)
	}
}

func TestIngestCancelAfterDeliverConflict(t *testing.T) {
	p, _ := setupPipelineTest(t)

	delivered := RawMessage{
		MessageID: "<d@mail>",
		From:      "orders@target.com",
		Subject:   "Delivered",
		Date:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		TextBody:  "Order #902002669367042 was delivered today.",
	}
	if _, err := p.Ingest(1, delivered); err != nil {
		t.Fatalf("Ingest(delivered) = %v", err)
	}

	cancel := RawMessage{
		MessageID: "<c@mail>",
		From:      "orders@target.com",
		Subject:   "Order update",
		Date:      time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC),
		TextBody:  "Sorry, we had to cancel your order #902002669367042.",
	}
	res, err := p.Ingest(1, cancel)
	if err != nil {
		t.Fatalf("Ingest(cancel) = %v", err)
	}
	if res.Kind != ResultRejectedConflict {
		t.Fatalf("Kind = %v, want rejected_conflict", res.Kind)
	}
	if res.Reason == "" {
		t.Error("conflict result carries no reason")
	}

	orders, _ := p.Snapshot(1)
	if orders[0].Status != string(models.StatusDelivered) {
		t.Errorf("Status = %q, want DELIVERED unchanged", orders[0].Status)
	}

	// The rejected message is still seen and will not be retried.
	seen, _ := p.Seen().HasSeen(1, "<c@mail>")
	if !seen {
		t.Error("rejected message not recorded as seen")
	}
}

func TestIngestAccountsAreIndependent(t *testing.T) {
	p, _ := setupPipelineTest(t)

	// The identical forwarded email lands in two accounts; each seen-set
	// records it once, and the merged snapshot dedups by order key.
	raw := shippedRaw("<fwd@mail>", 1)
	for _, account := range []uint{1, 2} {
		res, err := p.Ingest(account, raw)
		if err != nil {
			t.Fatalf("Ingest(account %d) = %v", account, err)
		}
		if res.Kind != ResultApplied {
			t.Fatalf("account %d Kind = %v, want applied", account, res.Kind)
		}
	}

	perAccount, _ := p.Snapshot(1)
	if len(perAccount) != 1 {
		t.Errorf("account 1 rows = %d, want 1", len(perAccount))
	}

	merged, err := p.Snapshot(0)
	if err != nil {
		t.Fatalf("Snapshot(0) = %v", err)
	}
	if len(merged) != 1 {
		t.Errorf("merged rows = %d, want 1 (dedup by retailer+order)", len(merged))
	}
}

func TestScanSummaryRecord(t *testing.T) {
	var s ScanSummary
	for _, kind := range []ResultKind{
		ResultApplied, ResultApplied,
		ResultSkippedAlreadySeen,
		ResultSkippedUnclassified,
		ResultSkippedNoOrderNumber,
		ResultRejectedConflict,
	} {
		s.Record(IngestResult{Kind: kind})
	}

	if s.Processed != 6 {
		t.Errorf("Processed = %d, want 6", s.Processed)
	}
	if s.Applied != 2 || s.SkippedSeen != 1 || s.SkippedUnclassified != 1 ||
		s.SkippedNoOrder != 1 || s.RejectedConflicts != 1 {
		t.Errorf("summary counters wrong: %+v", s)
	}
}
