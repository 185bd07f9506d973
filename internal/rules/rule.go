// Package rules holds the per-retailer identification signals and
// field-extraction pattern sets. Rules are declarative data: adding a
// retailer means registering a new RetailerRule, never touching the
// extraction logic.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
)

var (
	// ErrInvalidRule indicates a rule failed load-time validation
	ErrInvalidRule = errors.New("invalid retailer rule")
	// ErrDuplicateRetailer indicates a rule name is already registered
	ErrDuplicateRetailer = errors.New("retailer already registered")
)

// CancelReason maps a body keyword to a normalized cancellation reason.
type CancelReason struct {
	Keyword string
	Reason  string
}

// RetailerRule describes how to recognize one retailer's emails and how
// to pull order facts out of them. Immutable after registration.
type RetailerRule struct {
	// Name identifies the retailer; lowercase by convention.
	Name string

	// IdentitySignals are substrings matched case-insensitively against
	// sender and subject. Any hit classifies the message.
	IdentitySignals []string

	// OrderNumberPatterns are tried in order; the first non-empty
	// capture wins. Each pattern must have exactly one capture group.
	OrderNumberPatterns []*regexp.Regexp

	// TrackingPatterns are all applied; every distinct match is
	// collected.
	TrackingPatterns []*regexp.Regexp

	// StatusIndicators maps a lifecycle status to the lowercase
	// keywords that signal it. Evaluation priority is fixed:
	// CANCELLED > DELIVERED > SHIPPED > ORDERED.
	StatusIndicators map[models.OrderStatus][]string

	// AddressPatterns extract the shipping address; first match wins.
	AddressPatterns []*regexp.Regexp

	// CancelReasons are retailer-specific keyword -> reason mappings,
	// checked before the generic CancelReasonPatterns.
	CancelReasons []CancelReason

	// CancelReasonPatterns capture a free-form reason when no specific
	// keyword matched.
	CancelReasonPatterns []*regexp.Regexp
}

// Validate checks the rule is complete enough to be usable. Malformed
// rules fail fast at registration, not mid-scan.
func (r *RetailerRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty retailer name", ErrInvalidRule)
	}
	if len(r.IdentitySignals) == 0 {
		return fmt.Errorf("%w: retailer %q has no identity signals", ErrInvalidRule, r.Name)
	}
	for _, sig := range r.IdentitySignals {
		if strings.TrimSpace(sig) == "" {
			return fmt.Errorf("%w: retailer %q has a blank identity signal", ErrInvalidRule, r.Name)
		}
	}
	if len(r.OrderNumberPatterns) == 0 {
		return fmt.Errorf("%w: retailer %q has no order number patterns", ErrInvalidRule, r.Name)
	}
	for _, p := range r.OrderNumberPatterns {
		if p == nil || p.NumSubexp() < 1 {
			return fmt.Errorf("%w: retailer %q order number pattern needs a capture group", ErrInvalidRule, r.Name)
		}
	}
	for status := range r.StatusIndicators {
		if !status.IsValid() || status == models.StatusUnknown {
			return fmt.Errorf("%w: retailer %q maps keywords to status %q", ErrInvalidRule, r.Name, status)
		}
	}
	return nil
}

// Matches reports whether the sender or subject carries any of the
// rule's identity signals. Case-insensitive substring match.
func (r *RetailerRule) Matches(sender, subject string) bool {
	sender = strings.ToLower(sender)
	subject = strings.ToLower(subject)
	for _, sig := range r.IdentitySignals {
		sig = strings.ToLower(sig)
		if strings.Contains(sender, sig) || strings.Contains(subject, sig) {
			return true
		}
	}
	return false
}
