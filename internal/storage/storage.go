// Package storage lays out the on-disk data directory and archives raw
// emails per account so extractions can be re-checked against the
// original message.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrFileNotFound indicates the requested file was not found
	ErrFileNotFound = errors.New("file not found")
	// ErrFileWriteFailed indicates a file write operation failed
	ErrFileWriteFailed = errors.New("failed to write file")
)

// Manager resolves and creates per-account directories under the data dir
type Manager struct {
	baseDir string
}

// NewManager creates a storage Manager rooted at baseDir
func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// AccountDir returns the directory for one account's files
func (m *Manager) AccountDir(accountID uint) string {
	return filepath.Join(m.baseDir, "accounts", fmt.Sprintf("%d", accountID))
}

// RawEmailsDir returns the raw email archive directory for an account
func (m *Manager) RawEmailsDir(accountID uint) string {
	return filepath.Join(m.AccountDir(accountID), "raw")
}

// SaveRawEmail archives one raw message for an account. Returns the
// path written.
func (m *Manager) SaveRawEmail(accountID uint, messageID string, content []byte) (string, error) {
	dir := m.RawEmailsDir(accountID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}
	path := filepath.Join(dir, sanitizeFilename(messageID)+".eml")
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}
	return path, nil
}

// GetRawEmail retrieves an archived raw message
func (m *Manager) GetRawEmail(accountID uint, messageID string) ([]byte, error) {
	path := filepath.Join(m.RawEmailsDir(accountID), sanitizeFilename(messageID)+".eml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return data, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeFilename makes a message id safe to use as a file name
func sanitizeFilename(name string) string {
	name = strings.Trim(name, "<>")
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	if name == "" {
		name = "message"
	}
	return name
}
