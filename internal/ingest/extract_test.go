package ingest

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/rules"
)

func targetTestRule(t *testing.T) *rules.RetailerRule {
	t.Helper()
	reg, err := rules.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry() = %v", err)
	}
	rule, ok := reg.Get("target")
	if !ok {
		t.Fatal("target rule missing")
	}
	return rule
}

func TestExtractShippedOrder(t *testing.T) {
	rule := targetTestRule(t)
	when := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	msg := NormalizedMessage{
		MessageID:  "<ship-1@mail>",
		Sender:     "orders@target.com",
		Recipient:  "jane@example.com",
		Subject:    "Your order has shipped!",
		ReceivedAt: when,
		BodyText:   "Your order #902002669367042 has shipped! Tracking: 1Z999AA10123456784",
	}

	ev := Extract(msg, rule)

	if ev.Retailer != "target" {
		t.Errorf("Retailer = %q, want target", ev.Retailer)
	}
	if ev.OrderNumber != "902002669367042" {
		t.Errorf("OrderNumber = %q, want 902002669367042", ev.OrderNumber)
	}
	if ev.Status != models.StatusShipped {
		t.Errorf("Status = %v, want SHIPPED", ev.Status)
	}
	if len(ev.TrackingNumbers) != 1 || ev.TrackingNumbers[0] != "1Z999AA10123456784" {
		t.Errorf("TrackingNumbers = %v, want [1Z999AA10123456784]", ev.TrackingNumbers)
	}
	if ev.SentTo != "jane@example.com" {
		t.Errorf("SentTo = %q", ev.SentTo)
	}
	if !ev.SentAt.Equal(when) {
		t.Errorf("SentAt = %v, want %v", ev.SentAt, when)
	}
}

func TestExtractStatusPriority(t *testing.T) {
	rule := targetTestRule(t)
	tests := []struct {
		name string
		body string
		want models.OrderStatus
	}{
		{
			name: "delivered beats shipped",
			body: "Order #123456789: your package has shipped and was delivered today.",
			want: models.StatusDelivered,
		},
		{
			name: "cancellation beats delivered",
			body: "Order #123456789 was delivered... just kidding, sorry, we had to cancel your order.",
			want: models.StatusCancelled,
		},
		{
			name: "shipped alone",
			body: "Order #123456789 has shipped.",
			want: models.StatusShipped,
		},
		{
			name: "no status keywords defaults to ordered",
			body: "Order #123456789 details enclosed.",
			want: models.StatusOrdered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Extract(NormalizedMessage{BodyText: tt.body}, rule)
			if ev.Status != tt.want {
				t.Errorf("Status = %v, want %v", ev.Status, tt.want)
			}
		})
	}
}

func TestExtractOrderNumberFromSubject(t *testing.T) {
	rule := targetTestRule(t)
	ev := Extract(NormalizedMessage{
		Subject:  "Update on order #902002669367042",
		BodyText: "We have news about your recent purchase.",
	}, rule)
	if ev.OrderNumber != "902002669367042" {
		t.Errorf("OrderNumber = %q, want 902002669367042", ev.OrderNumber)
	}
}

func TestExtractNoOrderNumber(t *testing.T) {
	rule := targetTestRule(t)
	ev := Extract(NormalizedMessage{BodyText: "Thanks for shopping with us."}, rule)
	if ev.OrderNumber != "" {
		t.Errorf("OrderNumber = %q, want empty", ev.OrderNumber)
	}
}

func TestExtractTrackingDedupAndOrderNumberExcluded(t *testing.T) {
	rule := targetTestRule(t)
	// The broad carrier patterns would match the 15-digit order number
	// too; it must not be reported as a tracking number. Repeats of the
	// same tracking number collapse.
	body := "Order #902002669367042 has shipped. Tracking: 1Z999AA10123456784. " +
		"Again: 1Z999AA10123456784 and also 9400100000000000000021."
	ev := Extract(NormalizedMessage{BodyText: body}, rule)

	want := map[string]bool{
		"1Z999AA10123456784":     true,
		"9400100000000000000021": true,
	}
	if len(ev.TrackingNumbers) != len(want) {
		t.Fatalf("TrackingNumbers = %v, want %d distinct", ev.TrackingNumbers, len(want))
	}
	for _, n := range ev.TrackingNumbers {
		if !want[n] {
			t.Errorf("unexpected tracking number %q", n)
		}
	}
}

func TestExtractCancellationSkipsTracking(t *testing.T) {
	rule := targetTestRule(t)
	body := "Sorry, we had to cancel your order #902002669367042. " +
		"Reference: 1Z999AA10123456784."
	ev := Extract(NormalizedMessage{BodyText: body}, rule)

	if ev.Status != models.StatusCancelled {
		t.Fatalf("Status = %v, want CANCELLED", ev.Status)
	}
	if len(ev.TrackingNumbers) != 0 {
		t.Errorf("TrackingNumbers = %v, want none for a cancellation", ev.TrackingNumbers)
	}
}

func TestExtractCancelReason(t *testing.T) {
	rule := targetTestRule(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "specific keyword mapping",
			body: "Sorry, we had to cancel your order #123456789. Purchase limit exceeded on this item.",
			want: "Purchase limit exceeded",
		},
		{
			name: "generic reason capture",
			body: "Sorry, we had to cancel your order #123456789. Reason: carrier lost the package",
			want: "carrier lost the package",
		},
		{
			name: "no reason found",
			body: "Sorry, we had to cancel your order #123456789.",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Extract(NormalizedMessage{BodyText: tt.body}, rule)
			if ev.Status != models.StatusCancelled {
				t.Fatalf("Status = %v, want CANCELLED", ev.Status)
			}
			if ev.CancelReason != tt.want {
				t.Errorf("CancelReason = %q, want %q", ev.CancelReason, tt.want)
			}
		})
	}
}

func TestExtractCancelReasonTruncatesOnRuneBoundary(t *testing.T) {
	rule := targetTestRule(t)
	// Byte 200 of the captured reason falls inside the two-byte "é",
	// so the cut must back up to the previous rune boundary.
	body := "Sorry, we had to cancel your order. Reason: " +
		strings.Repeat("x", 199) + "é and more"

	ev := Extract(NormalizedMessage{BodyText: body}, rule)

	if !utf8.ValidString(ev.CancelReason) {
		t.Fatalf("CancelReason is not valid UTF-8: %q", ev.CancelReason)
	}
	if len(ev.CancelReason) > 200 {
		t.Errorf("len(CancelReason) = %d, want <= 200", len(ev.CancelReason))
	}
	if want := strings.Repeat("x", 199); ev.CancelReason != want {
		t.Errorf("CancelReason = %q, want %d x's", ev.CancelReason, len(want))
	}
}

func TestExtractShipToAddress(t *testing.T) {
	rule := targetTestRule(t)
	body := "Your order #902002669367042 has shipped.\nDelivers to: 123 Main St, Springfield, 62704"
	ev := Extract(NormalizedMessage{BodyText: body}, rule)

	if ev.ShipTo != "123 Main St, Springfield, 62704" {
		t.Errorf("ShipTo = %q", ev.ShipTo)
	}
}
