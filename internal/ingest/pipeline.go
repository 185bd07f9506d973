package ingest

import (
	"errors"
	"sync"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/ledger"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/rules"
	"gorm.io/gorm"
)

// Pipeline runs the per-message ingestion flow:
// normalize -> classify -> seen check -> extract -> ledger merge.
// Each message's effect is atomic and independent; a scan aborted
// between messages leaves consistent state.
type Pipeline struct {
	registry *rules.Registry
	ledger   *ledger.Ledger
	seen     *ledger.SeenStore

	// accountLocks serializes merges per account. Two events for the
	// same order key applied concurrently would race on the ledger's
	// read-modify-write; a per-account critical section is the
	// coarsest lock that still lets accounts proceed in parallel.
	accountLocks sync.Map
}

// NewPipeline creates a Pipeline over the given database and rule
// registry
func NewPipeline(db *gorm.DB, registry *rules.Registry) *Pipeline {
	return &Pipeline{
		registry: registry,
		ledger:   ledger.NewLedger(db),
		seen:     ledger.NewSeenStore(db),
	}
}

// Ledger exposes the pipeline's ledger for reporting collaborators
func (p *Pipeline) Ledger() *ledger.Ledger {
	return p.ledger
}

// Seen exposes the pipeline's seen-set store
func (p *Pipeline) Seen() *ledger.SeenStore {
	return p.seen
}

// Ingest processes one raw message for one account. The message is
// marked seen whatever the outcome, so unextractable messages are not
// retried every scan. Only storage failures return a non-nil error.
func (p *Pipeline) Ingest(accountID uint, raw RawMessage) (IngestResult, error) {
	mu := p.lockFor(accountID)
	mu.Lock()
	defer mu.Unlock()

	msg := Normalize(raw)

	// Seen check runs first so a repeated message is always reported
	// as already seen, whatever it would otherwise classify as.
	seen, err := p.seen.HasSeen(accountID, msg.MessageID)
	if err != nil {
		return IngestResult{}, err
	}
	if seen {
		return IngestResult{Kind: ResultSkippedAlreadySeen}, nil
	}

	rule := Classify(msg, p.registry)
	if rule == nil {
		if err := p.seen.MarkSeen(accountID, msg.MessageID); err != nil {
			return IngestResult{Kind: ResultSkippedUnclassified}, err
		}
		return IngestResult{Kind: ResultSkippedUnclassified}, nil
	}

	ev := Extract(msg, rule)
	if ev.OrderNumber == "" {
		if err := p.seen.MarkSeen(accountID, msg.MessageID); err != nil {
			return IngestResult{Kind: ResultSkippedNoOrderNumber}, err
		}
		return IngestResult{Kind: ResultSkippedNoOrderNumber, Event: &ev}, nil
	}

	_, kind, err := p.ledger.Apply(accountID, ev)
	if err != nil {
		if errors.Is(err, ledger.ErrTerminalConflict) {
			if markErr := p.seen.MarkSeen(accountID, msg.MessageID); markErr != nil {
				return IngestResult{Kind: ResultRejectedConflict}, markErr
			}
			return IngestResult{
				Kind:   ResultRejectedConflict,
				Event:  &ev,
				Reason: err.Error(),
			}, nil
		}
		return IngestResult{}, err
	}

	if err := p.seen.MarkSeen(accountID, msg.MessageID); err != nil {
		return IngestResult{Kind: ResultApplied, Event: &ev, Transition: kind}, err
	}

	return IngestResult{Kind: ResultApplied, Event: &ev, Transition: kind}, nil
}

// Snapshot returns the typed ledger state for reporting. accountID 0
// merges all accounts, deduplicated by (retailer, order number).
func (p *Pipeline) Snapshot(accountID uint) ([]models.Order, error) {
	if accountID == 0 {
		return p.ledger.SnapshotMerged()
	}
	return p.ledger.Snapshot(accountID)
}

func (p *Pipeline) lockFor(accountID uint) *sync.Mutex {
	actual, _ := p.accountLocks.LoadOrStore(accountID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
