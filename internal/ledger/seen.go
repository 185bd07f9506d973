package ledger

import (
	"errors"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeenStore is the per-account record of already-processed message
// identifiers. It only prevents reprocessing; it stores no derived
// values, so pattern changes never retroactively fix seen messages
// unless entries are cleared explicitly.
type SeenStore struct {
	db *gorm.DB
}

// NewSeenStore creates a SeenStore backed by the given database
func NewSeenStore(db *gorm.DB) *SeenStore {
	return &SeenStore{db: db}
}

// HasSeen reports whether the message was already ingested for the account
func (s *SeenStore) HasSeen(accountID uint, messageID string) (bool, error) {
	var seen models.SeenMessage
	err := s.db.Where("account_id = ? AND message_id = ?", accountID, messageID).
		First(&seen).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkSeen records the message identifier for the account. Idempotent:
// marking an already-seen message is a no-op.
func (s *SeenStore) MarkSeen(accountID uint, messageID string) error {
	entry := models.SeenMessage{
		AccountID: accountID,
		MessageID: messageID,
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
}

// Count returns the number of seen messages for an account
func (s *SeenStore) Count(accountID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.SeenMessage{}).
		Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}

// Clear wipes the seen-set for an account so the next scan reprocesses
// everything in the window, e.g. after extraction patterns change.
func (s *SeenStore) Clear(accountID uint) error {
	return s.db.Where("account_id = ?", accountID).
		Delete(&models.SeenMessage{}).Error
}
