package ingest

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeHTMLStripping(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "tags stripped and whitespace collapsed",
			html: "<html><body><p>Your   order has <b>shipped</b>!</p></body></html>",
			want: "Your order has shipped!",
		},
		{
			name: "script and style dropped",
			html: "<html><head><style>p{color:red}</style></head><body><script>alert(1)</script><p>Order #123</p></body></html>",
			want: "Order #123",
		},
		{
			name: "entities decoded",
			html: "<p>Tom &amp; Jerry&#39;s order</p>",
			want: "Tom & Jerry's order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Normalize(RawMessage{HTMLBody: tt.html})
			if msg.BodyText != tt.want {
				t.Errorf("BodyText = %q, want %q", msg.BodyText, tt.want)
			}
		})
	}
}

func TestNormalizePreservesAddressLines(t *testing.T) {
	// Block element boundaries must separate address lines so a
	// multi-line address pattern can still match contiguous text.
	html := `<div>Delivers to:</div><div>123 Main St</div><div>Springfield, 62704</div>`
	msg := Normalize(RawMessage{HTMLBody: html})

	want := "Delivers to:\n123 Main St\nSpringfield, 62704"
	if msg.BodyText != want {
		t.Errorf("BodyText = %q, want %q", msg.BodyText, want)
	}
}

func TestNormalizeFallsBackToTextBody(t *testing.T) {
	msg := Normalize(RawMessage{
		TextBody: "plain  text   body\r\n\r\nsecond line",
	})
	want := "plain text body\nsecond line"
	if msg.BodyText != want {
		t.Errorf("BodyText = %q, want %q", msg.BodyText, want)
	}
}

func TestNormalizeUnparseableBodyYieldsEmptyText(t *testing.T) {
	msg := Normalize(RawMessage{})
	if msg.BodyText != "" {
		t.Errorf("BodyText = %q, want empty", msg.BodyText)
	}
}

func TestNormalizeMetadataPassThrough(t *testing.T) {
	when := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	raw := RawMessage{
		MessageID: "<abc@mail.example>",
		From:      "  orders@target.com  ",
		To:        "jane@example.com",
		Subject:   " Your order shipped ",
		Date:      when,
		TextBody:  "body",
	}
	msg := Normalize(raw)

	if msg.MessageID != raw.MessageID {
		t.Errorf("MessageID = %q, want %q", msg.MessageID, raw.MessageID)
	}
	if msg.Sender != "orders@target.com" {
		t.Errorf("Sender = %q", msg.Sender)
	}
	if msg.Subject != "Your order shipped" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !msg.ReceivedAt.Equal(when) {
		t.Errorf("ReceivedAt = %v, want %v", msg.ReceivedAt, when)
	}
}

func TestNormalizeMalformedHTMLDoesNotPanic(t *testing.T) {
	// The tokenizer handles broken markup; worst case the regex
	// fallback strips what looks like tags.
	msg := Normalize(RawMessage{HTMLBody: "<div><p>unclosed <b>order #555"})
	if !strings.Contains(msg.BodyText, "order #555") {
		t.Errorf("BodyText = %q, want it to contain the order text", msg.BodyText)
	}
}
