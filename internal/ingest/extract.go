package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/ledger"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/rules"
)

// statusPriority is the fixed evaluation order for status keywords. If
// a message carries both shipped and delivered language, delivered
// wins; cancellation language beats everything.
var statusPriority = []models.OrderStatus{
	models.StatusCancelled,
	models.StatusDelivered,
	models.StatusShipped,
	models.StatusOrdered,
}

// Extract applies a retailer's pattern groups to a normalized message
// and produces the candidate order event. Pure function: no I/O, no
// side effects. An empty OrderNumber in the result means extraction
// failed to key the event.
func Extract(msg NormalizedMessage, rule *rules.RetailerRule) ledger.OrderEvent {
	ev := ledger.OrderEvent{
		Retailer: rule.Name,
		SentTo:   msg.Recipient,
		SentAt:   msg.ReceivedAt,
	}

	ev.OrderNumber = extractOrderNumber(msg, rule)
	ev.Status = resolveStatus(msg, rule)

	// Cancellation emails repeat the order number in tracking-shaped
	// contexts, so tracking extraction is skipped for them entirely.
	if ev.Status != models.StatusCancelled {
		ev.TrackingNumbers = extractTracking(msg.BodyText, rule, ev.OrderNumber)
	}

	for _, p := range rule.AddressPatterns {
		if m := p.FindStringSubmatch(msg.BodyText); len(m) > 1 {
			ev.ShipTo = strings.TrimSpace(m[1])
			break
		}
	}

	if ev.Status == models.StatusCancelled {
		ev.CancelReason = extractCancelReason(msg.BodyText, rule)
	}

	return ev
}

// extractOrderNumber tries the rule's patterns in declared order, body
// first then subject, and returns the first non-empty capture.
func extractOrderNumber(msg NormalizedMessage, rule *rules.RetailerRule) string {
	for _, p := range rule.OrderNumberPatterns {
		if m := p.FindStringSubmatch(msg.BodyText); len(m) > 1 && m[1] != "" {
			return m[1]
		}
		if m := p.FindStringSubmatch(msg.Subject); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

// resolveStatus evaluates the status indicators in fixed priority
// order. A message that passed retailer identification but matches no
// keyword defaults to ORDERED: an order confirmation need not say
// "ordered" anywhere.
func resolveStatus(msg NormalizedMessage, rule *rules.RetailerRule) models.OrderStatus {
	haystack := strings.ToLower(msg.Subject + "\n" + msg.BodyText)
	for _, status := range statusPriority {
		for _, keyword := range rule.StatusIndicators[status] {
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				return status
			}
		}
	}
	return models.StatusOrdered
}

// extractTracking collects every distinct match of every tracking
// pattern. The order number itself often satisfies the broad numeric
// carrier patterns and is excluded.
func extractTracking(body string, rule *rules.RetailerRule, orderNumber string) []string {
	seen := make(map[string]bool)
	var numbers []string
	for _, p := range rule.TrackingPatterns {
		for _, m := range p.FindAllStringSubmatch(body, -1) {
			candidate := m[0]
			if len(m) > 1 && m[1] != "" {
				candidate = m[1]
			}
			if candidate == "" || candidate == orderNumber || seen[candidate] {
				continue
			}
			seen[candidate] = true
			numbers = append(numbers, candidate)
		}
	}
	return numbers
}

// extractCancelReason resolves a cancellation reason: retailer-specific
// keyword mappings first, then the generic capture patterns. The
// ledger substitutes the "Reason not specified" marker for an empty
// result.
func extractCancelReason(body string, rule *rules.RetailerRule) string {
	lower := strings.ToLower(body)
	for _, cr := range rule.CancelReasons {
		if strings.Contains(lower, strings.ToLower(cr.Keyword)) {
			return cr.Reason
		}
	}
	for _, p := range rule.CancelReasonPatterns {
		if m := p.FindStringSubmatch(body); len(m) > 1 {
			reason := strings.TrimSpace(m[1])
			if reason == "" {
				continue
			}
			if len(reason) > 200 {
				cut := 200
				for cut > 0 && !utf8.RuneStart(reason[cut]) {
					cut--
				}
				reason = reason[:cut]
			}
			return reason
		}
	}
	return ""
}
