package ingest

import (
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/rules"
)

// Classify maps a normalized message to at most one retailer rule.
// Rules are tested in registration order and the first match wins, so
// the result is deterministic for a given registry. A nil return means
// the message is from no registered retailer and is excluded from
// further processing.
func Classify(msg NormalizedMessage, registry *rules.Registry) *rules.RetailerRule {
	for _, rule := range registry.Rules() {
		if rule.Matches(msg.Sender, msg.Subject) {
			return rule
		}
	}
	return nil
}
