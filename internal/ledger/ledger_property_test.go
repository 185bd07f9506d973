package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
)

// For any sequence of events against one order key, applied in
// increasing sent-at order, the resulting status must never move
// backward, terminal states must stick, and the tracking number set
// must equal the union of every applied event's numbers.

func statusGen() gopter.Gen {
	return gen.OneConstOf(
		models.StatusOrdered,
		models.StatusShipped,
		models.StatusDelivered,
		models.StatusCancelled,
	)
}

func TestProperty_StatusMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("status_never_moves_backward", prop.ForAll(
		func(statuses []models.OrderStatus) bool {
			if len(statuses) == 0 {
				return true
			}
			l := NewLedger(setupLedgerTestDB(t))

			base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
			prevRank := -1
			terminal := false
			var terminalStatus models.OrderStatus
			for i, st := range statuses {
				ev := OrderEvent{
					Retailer:    "target",
					OrderNumber: "555000111",
					Status:      st,
					SentAt:      base.Add(time.Duration(i) * time.Hour),
				}
				order, _, err := l.Apply(7, ev)
				if err != nil {
					// The only permitted failure is a rejected
					// terminal conflict, which leaves state alone.
					if !errors.Is(err, ErrTerminalConflict) {
						return false
					}
					continue
				}

				current := order.OrderStatusValue()
				if terminal && current != terminalStatus {
					return false
				}
				if current.Terminal() {
					terminal = true
					terminalStatus = current
				}
				if current != models.StatusCancelled {
					if current.Rank() < prevRank {
						return false
					}
					prevRank = current.Rank()
				}
			}

			// Replaying any further event must not change a terminal
			// status.
			if terminal {
				final, err := l.Get(7, "target", "555000111")
				if err != nil || final == nil {
					return false
				}
				before := final.Status
				_, _, err = l.Apply(7, OrderEvent{
					Retailer:    "target",
					OrderNumber: "555000111",
					Status:      models.StatusShipped,
					SentAt:      base.Add(time.Duration(len(statuses)) * time.Hour),
				})
				if err != nil {
					return false
				}
				after, _ := l.Get(7, "target", "555000111")
				return after.Status == before
			}
			return true
		},
		gen.SliceOf(statusGen()),
	))

	properties.TestingRun(t)
}

func TestProperty_TrackingUnion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	// Small pool of tracking numbers so runs overlap and exercise the
	// dedup path.
	trackingGen := gen.SliceOf(gen.IntRange(0, 5).Map(func(n int) string {
		return fmt.Sprintf("1Z999AA1012345678%d", n)
	}))

	properties.Property("tracking_set_equals_union_of_applied_events", prop.ForAll(
		func(batches [][]string) bool {
			l := NewLedger(setupLedgerTestDB(t))

			base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
			expected := make(map[string]bool)
			applied := false
			for i, numbers := range batches {
				ev := OrderEvent{
					Retailer:        "target",
					OrderNumber:     "555000222",
					Status:          models.StatusShipped,
					TrackingNumbers: numbers,
					SentAt:          base.Add(time.Duration(i) * time.Hour),
				}
				if _, _, err := l.Apply(7, ev); err != nil {
					return false
				}
				applied = true
				for _, n := range numbers {
					expected[n] = true
				}
			}
			if !applied {
				return true
			}

			order, err := l.Get(7, "target", "555000222")
			if err != nil || order == nil {
				return false
			}
			got := order.TrackingList()
			if len(got) != len(expected) {
				return false
			}
			for _, n := range got {
				if !expected[n] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(trackingGen),
	))

	properties.TestingRun(t)
}
