package services

import (
	"testing"
	"time"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
)

func TestScanServiceSearchSince(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	lastScan := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name        string
		defaultDays int
		account     models.EmailAccount
		days        int
		wantSince   time.Time
		wantOK      bool
	}{
		{
			name:        "explicit days beat everything else",
			defaultDays: 7,
			account:     models.EmailAccount{ScanDays: 30, LastScanAt: lastScan},
			days:        3,
			wantSince:   day(2026, 3, 12),
			wantOK:      true,
		},
		{
			name:        "account window applies when days is zero",
			defaultDays: 7,
			account:     models.EmailAccount{ScanDays: 30},
			days:        0,
			wantSince:   day(2026, 2, 13),
			wantOK:      true,
		},
		{
			name:        "incremental scan overlaps the last scan by one day",
			defaultDays: 7,
			account:     models.EmailAccount{LastScanAt: lastScan},
			days:        0,
			wantSince:   day(2026, 3, 9),
			wantOK:      true,
		},
		{
			name:        "never-scanned account falls back to the default window",
			defaultDays: 7,
			account:     models.EmailAccount{},
			days:        0,
			wantSince:   day(2026, 3, 8),
			wantOK:      true,
		},
		{
			name:        "never-scanned account without a default searches everything",
			defaultDays: 0,
			account:     models.EmailAccount{},
			days:        0,
			wantOK:      false,
		},
		{
			name:        "negative days force a full-mailbox search",
			defaultDays: 7,
			account:     models.EmailAccount{ScanDays: 30, LastScanAt: lastScan},
			days:        -1,
			wantOK:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &ScanService{defaultDays: tt.defaultDays}
			since, ok := s.searchSince(&tt.account, tt.days, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !since.Equal(tt.wantSince) {
				t.Errorf("since = %v, want %v", since, tt.wantSince)
			}
		})
	}
}
