package models

import (
	"time"
)

// SeenMessage records a message identifier already ingested for an
// account. Append-only; entries are never removed so a rescans of the
// same window never reprocesses a message. Per-account so multi-account
// runs cannot cross-contaminate dedup state.
type SeenMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"uniqueIndex:idx_seen_account_message;not null" json:"account_id"`
	MessageID string    `gorm:"uniqueIndex:idx_seen_account_message;size:255;not null" json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}
