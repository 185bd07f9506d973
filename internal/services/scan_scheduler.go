package services

import (
	"log"
	"sync"
	"time"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"gorm.io/gorm"
)

// ScanScheduler runs periodic inbox scans for every enabled account
type ScanScheduler struct {
	db           *gorm.DB
	scanService  *ScanService
	logService   *LogService
	interval     time.Duration
	stopChan     chan struct{}
	running      bool
	mu           sync.Mutex
	scanning     sync.Mutex // prevents scan cycles from overlapping
	accountLocks sync.Map   // per-account lock so manual and scheduled scans never race
}

// NewScanScheduler creates a new scan scheduler
func NewScanScheduler(db *gorm.DB, scanService *ScanService, logService *LogService, interval time.Duration) *ScanScheduler {
	return &ScanScheduler{
		db:          db,
		scanService: scanService,
		logService:  logService,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the periodic scan process
func (s *ScanScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[ScanScheduler] Starting with interval: %v", s.interval)

	go func() {
		// Wait a moment after startup so the server is fully up before
		// the first scan hits the IMAP providers.
		select {
		case <-time.After(10 * time.Second):
			log.Println("[ScanScheduler] Running first scan...")
			s.scanAllAccounts()
		case <-s.stopChan:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				log.Println("[ScanScheduler] Running scheduled scan...")
				s.scanAllAccounts()
			case <-s.stopChan:
				log.Println("[ScanScheduler] Stopping")
				return
			}
		}
	}()
}

// Stop stops the periodic scan process
func (s *ScanScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false
}

// IsAccountScanning reports whether an account scan is in progress
func (s *ScanScheduler) IsAccountScanning(accountID uint) bool {
	_, loaded := s.accountLocks.Load(accountID)
	return loaded
}

// TryLockAccount attempts to lock an account for a manual scan so it
// cannot collide with a scheduled one
func (s *ScanScheduler) TryLockAccount(accountID uint) bool {
	_, loaded := s.accountLocks.LoadOrStore(accountID, true)
	return !loaded
}

// UnlockAccount releases the account lock
func (s *ScanScheduler) UnlockAccount(accountID uint) {
	s.accountLocks.Delete(accountID)
}

// scanAllAccounts scans all enabled accounts concurrently
func (s *ScanScheduler) scanAllAccounts() {
	// If the previous cycle is still running, skip this one.
	if !s.scanning.TryLock() {
		log.Println("[ScanScheduler] Previous scan still running, skipping this cycle")
		return
	}
	defer s.scanning.Unlock()

	var accounts []models.EmailAccount
	if err := s.db.Where("enabled = ?", true).Find(&accounts).Error; err != nil {
		log.Printf("[ScanScheduler] Failed to get accounts: %v", err)
		return
	}

	if len(accounts) == 0 {
		log.Println("[ScanScheduler] No enabled accounts found")
		return
	}

	log.Printf("[ScanScheduler] Scanning %d accounts", len(accounts))

	var wg sync.WaitGroup
	for _, account := range accounts {
		if !s.TryLockAccount(account.ID) {
			log.Printf("[ScanScheduler] Account %d (%s) is already scanning, skipping", account.ID, account.Email)
			continue
		}

		wg.Add(1)
		go func(acc models.EmailAccount) {
			defer wg.Done()
			defer s.UnlockAccount(acc.ID)

			s.scanOneAccount(acc)
		}(account)
	}
	wg.Wait()

	log.Println("[ScanScheduler] Scan cycle completed")
}

// scanOneAccount scans a single account with retries
func (s *ScanScheduler) scanOneAccount(account models.EmailAccount) {
	const maxRetries = 2
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2s then 4s.
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("[ScanScheduler] Account %d retry %d/%d after %v", account.ID, attempt, maxRetries, backoff)

			select {
			case <-time.After(backoff):
			case <-s.stopChan:
				return
			}
		}

		summary, err := s.scanService.ScanAccount(account.ID, 0)
		if err == nil {
			if attempt > 0 {
				log.Printf("[ScanScheduler] Account %d (%s) scanned after %d retries: %d applied", account.ID, account.Email, attempt, summary.Applied)
			} else if summary.Applied > 0 {
				log.Printf("[ScanScheduler] Account %d (%s) applied %d order updates", account.ID, account.Email, summary.Applied)
			}
			return
		}

		lastErr = err
		log.Printf("[ScanScheduler] Account %d (%s) scan attempt %d failed: %v", account.ID, account.Email, attempt+1, err)
	}

	log.Printf("[ScanScheduler] Account %d (%s) scan failed after %d attempts: %v", account.ID, account.Email, maxRetries+1, lastErr)
	s.logService.LogWarn(models.LogModuleScan, "auto_scan", "Scheduled scan failed", map[string]interface{}{
		"account_id": account.ID,
		"error":      lastErr.Error(),
		"retries":    maxRetries,
	})
}
