// Package ledger maintains the persistent per-order aggregate state.
// Every order email that survives classification and extraction is
// merged into exactly one Order row under the status-transition rules
// implemented here.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrTerminalConflict indicates an event tried to move an order
	// between terminal states (e.g. a cancellation arriving after
	// delivery). The event is discarded, the ledger stays unchanged.
	ErrTerminalConflict = errors.New("conflicting terminal status transition")
	// ErrMissingOrderNumber indicates an event without an order number
	// reached the ledger; such events cannot key an entry.
	ErrMissingOrderNumber = errors.New("event has no order number")
)

// OrderEvent is the extraction output for a single email: one candidate
// update against the ledger. Ephemeral; only the merged Order persists.
type OrderEvent struct {
	Retailer        string
	OrderNumber     string
	Status          models.OrderStatus
	TrackingNumbers []string
	ShipTo          string
	SentTo          string
	SentAt          time.Time
	CancelReason    string
}

// TransitionKind describes what a merged event did to its ledger entry
type TransitionKind string

const (
	// TransitionCreated means the event created a new ledger entry
	TransitionCreated TransitionKind = "created"
	// TransitionAdvanced means the status moved forward
	TransitionAdvanced TransitionKind = "advanced"
	// TransitionCancelled means the order entered CANCELLED
	TransitionCancelled TransitionKind = "cancelled"
	// TransitionAugmented means the status held but tracking numbers,
	// address or timestamps were merged
	TransitionAugmented TransitionKind = "augmented"
)

// Ledger owns all reads and writes of Order rows
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a Ledger backed by the given database
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Get fetches the ledger entry for one order key, or nil if absent.
func (l *Ledger) Get(accountID uint, retailer, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := l.db.Where("account_id = ? AND retailer = ? AND order_number = ?",
		accountID, retailer, orderNumber).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// Apply merges one event into the ledger under the transition rules:
//
//   - no entry yet: create it with the event's fields
//   - entry terminal (DELIVERED or CANCELLED): union tracking numbers
//     only; a conflicting terminal event is rejected with
//     ErrTerminalConflict
//   - entry non-terminal: strictly forward rank progress (or CANCELLED)
//     updates the status; equal or backward rank still unions tracking
//     numbers and fills the address
//
// Callers must serialize Apply calls for the same (account, retailer,
// orderNumber) key; two concurrent merges against one key would race on
// the read-modify-write.
func (l *Ledger) Apply(accountID uint, ev OrderEvent) (*models.Order, TransitionKind, error) {
	if ev.OrderNumber == "" {
		return nil, "", ErrMissingOrderNumber
	}

	existing, err := l.Get(accountID, ev.Retailer, ev.OrderNumber)
	if err != nil {
		return nil, "", err
	}

	if existing == nil {
		order := &models.Order{
			AccountID:     accountID,
			Retailer:      ev.Retailer,
			OrderNumber:   ev.OrderNumber,
			Status:        string(statusOrDefault(ev.Status)),
			ShipTo:        ev.ShipTo,
			SentTo:        ev.SentTo,
			FirstSeenAt:   ev.SentAt,
			LastUpdatedAt: ev.SentAt,
		}
		order.SetTrackingList(ev.TrackingNumbers)
		if ev.Status == models.StatusCancelled {
			order.CancelReason = cancelReasonOrDefault(ev.CancelReason)
		}
		if err := l.db.Create(order).Error; err != nil {
			return nil, "", err
		}
		if ev.Status == models.StatusCancelled {
			return order, TransitionCancelled, nil
		}
		return order, TransitionCreated, nil
	}

	current := existing.OrderStatusValue()
	incoming := statusOrDefault(ev.Status)

	if current.Terminal() {
		if incoming.Terminal() && incoming != current {
			// Cancel-after-deliver (or the reverse) is stale or
			// erroneous data; surface it, do not apply it.
			return existing, "", fmt.Errorf("%w: %s after %s for order %s",
				ErrTerminalConflict, incoming, current, ev.OrderNumber)
		}
		existing.UnionTracking(ev.TrackingNumbers)
		touchLastUpdated(existing, ev.SentAt)
		if err := l.db.Save(existing).Error; err != nil {
			return nil, "", err
		}
		return existing, TransitionAugmented, nil
	}

	kind := TransitionAugmented
	if incoming == models.StatusCancelled {
		existing.Status = string(models.StatusCancelled)
		existing.CancelReason = cancelReasonOrDefault(ev.CancelReason)
		kind = TransitionCancelled
	} else if incoming.Rank() > current.Rank() {
		existing.Status = string(incoming)
		kind = TransitionAdvanced
	}

	existing.UnionTracking(ev.TrackingNumbers)
	if ev.ShipTo != "" {
		existing.ShipTo = ev.ShipTo
	}
	if existing.SentTo == "" && ev.SentTo != "" {
		existing.SentTo = ev.SentTo
	}
	touchLastUpdated(existing, ev.SentAt)

	if err := l.db.Save(existing).Error; err != nil {
		return nil, "", err
	}
	return existing, kind, nil
}

// SetHidden flips the user-controlled hidden flag. Ingestion never
// touches it.
func (l *Ledger) SetHidden(orderID uint, hidden bool) error {
	result := l.db.Model(&models.Order{}).Where("id = ?", orderID).Update("hidden", hidden)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Snapshot returns the ledger entries for one account (or all accounts
// when accountID is 0), ordered by first observation.
func (l *Ledger) Snapshot(accountID uint) ([]models.Order, error) {
	var orders []models.Order
	q := l.db.Order("first_seen_at asc, id asc")
	if accountID != 0 {
		q = q.Where("account_id = ?", accountID)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// SnapshotMerged returns one entry per (retailer, order_number) across
// all accounts. Two accounts that both received mail about the same
// order collapse into a single row: the highest-rank status wins,
// terminal states stick, tracking numbers union.
func (l *Ledger) SnapshotMerged() ([]models.Order, error) {
	orders, err := l.Snapshot(0)
	if err != nil {
		return nil, err
	}

	type key struct{ retailer, number string }
	index := make(map[key]*models.Order)
	var merged []*models.Order

	for i := range orders {
		o := orders[i]
		k := key{o.Retailer, o.OrderNumber}
		kept, exists := index[k]
		if !exists {
			copied := o
			index[k] = &copied
			merged = append(merged, &copied)
			continue
		}
		kept.UnionTracking(o.TrackingList())
		if preferStatus(o.OrderStatusValue(), kept.OrderStatusValue()) {
			kept.Status = o.Status
			if o.CancelReason != "" {
				kept.CancelReason = o.CancelReason
			}
		}
		if kept.ShipTo == "" {
			kept.ShipTo = o.ShipTo
		}
		if o.FirstSeenAt.Before(kept.FirstSeenAt) {
			kept.FirstSeenAt = o.FirstSeenAt
		}
		if o.LastUpdatedAt.After(kept.LastUpdatedAt) {
			kept.LastUpdatedAt = o.LastUpdatedAt
		}
	}

	result := make([]models.Order, 0, len(merged))
	for _, o := range merged {
		result = append(result, *o)
	}
	return result, nil
}

// preferStatus reports whether candidate should replace current when
// merging duplicate entries from different accounts.
func preferStatus(candidate, current models.OrderStatus) bool {
	if current.Terminal() {
		return false
	}
	if candidate == models.StatusCancelled {
		return true
	}
	return candidate.Rank() > current.Rank()
}

func statusOrDefault(s models.OrderStatus) models.OrderStatus {
	if !s.IsValid() || s == models.StatusUnknown {
		return models.StatusOrdered
	}
	return s
}

func cancelReasonOrDefault(reason string) string {
	if reason == "" {
		return "Reason not specified"
	}
	return reason
}

// touchLastUpdated moves LastUpdatedAt forward only; events can arrive
// out of chronological order.
func touchLastUpdated(order *models.Order, sentAt time.Time) {
	if sentAt.After(order.LastUpdatedAt) {
		order.LastUpdatedAt = sentAt
	}
}
