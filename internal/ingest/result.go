package ingest

import (
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/ledger"
)

// ResultKind classifies what ingesting one message did
type ResultKind string

const (
	// ResultApplied means the event was merged into the ledger
	ResultApplied ResultKind = "applied"
	// ResultSkippedAlreadySeen means the message id was in the seen-set
	ResultSkippedAlreadySeen ResultKind = "skipped_already_seen"
	// ResultSkippedUnclassified means no retailer rule matched
	ResultSkippedUnclassified ResultKind = "skipped_unclassified"
	// ResultSkippedNoOrderNumber means extraction found no order number
	ResultSkippedNoOrderNumber ResultKind = "skipped_no_order_number"
	// ResultRejectedConflict means a conflicting terminal transition
	// was discarded
	ResultRejectedConflict ResultKind = "rejected_conflict"
)

// IngestResult reports the outcome of ingesting one raw message
type IngestResult struct {
	Kind       ResultKind
	Event      *ledger.OrderEvent
	Transition ledger.TransitionKind
	Reason     string
}

// ScanSummary counts per-message outcomes over one scan. Every skip
// and reject is countable; none of them halts the batch.
type ScanSummary struct {
	Processed           int `json:"processed"`
	Applied             int `json:"applied"`
	SkippedSeen         int `json:"skipped_seen"`
	SkippedUnclassified int `json:"skipped_unclassified"`
	SkippedNoOrder      int `json:"skipped_no_order"`
	RejectedConflicts   int `json:"rejected_conflicts"`
	Errors              int `json:"errors"`
}

// Record tallies one result into the summary
func (s *ScanSummary) Record(res IngestResult) {
	s.Processed++
	switch res.Kind {
	case ResultApplied:
		s.Applied++
	case ResultSkippedAlreadySeen:
		s.SkippedSeen++
	case ResultSkippedUnclassified:
		s.SkippedUnclassified++
	case ResultSkippedNoOrderNumber:
		s.SkippedNoOrder++
	case ResultRejectedConflict:
		s.RejectedConflicts++
	}
}
