package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"time"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrAccountNotFound indicates the account was not found
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountAlreadyExists indicates an account with the same email exists
	ErrAccountAlreadyExists = errors.New("account already exists")
	// ErrInvalidAccountData indicates required account fields are missing
	ErrInvalidAccountData = errors.New("invalid account data")
	// ErrEncryptionFailed indicates credential encryption failed
	ErrEncryptionFailed = errors.New("credential encryption failed")
	// ErrDecryptionFailed indicates credential decryption failed
	ErrDecryptionFailed = errors.New("credential decryption failed")
)

// AccountService manages mailbox accounts and their encrypted credentials
type AccountService struct {
	db            *gorm.DB
	encryptionKey []byte
	logService    *LogService
}

// NewAccountService creates a new AccountService. The encryption key
// must be 16, 24 or 32 bytes (config derives a 32-byte key).
func NewAccountService(db *gorm.DB, encryptionKey []byte, logService *LogService) *AccountService {
	return &AccountService{
		db:            db,
		encryptionKey: encryptionKey,
		logService:    logService,
	}
}

// encryptSecret encrypts a credential with AES-GCM
func (s *AccountService) encryptSecret(secret string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrEncryptionFailed
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrEncryptionFailed
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptionFailed
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptSecret decrypts an AES-GCM encrypted credential
func (s *AccountService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrDecryptionFailed
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// CreateAccountInput represents the input for creating a mailbox account
type CreateAccountInput struct {
	Email       string
	DisplayName string
	IMAPHost    string
	IMAPPort    int
	Username    string
	Password    string
	UseSSL      bool
	ScanDays    int
}

// CreateAccount registers a new mailbox to scan
func (s *AccountService) CreateAccount(input CreateAccountInput) (*models.EmailAccount, error) {
	if input.Email == "" || input.IMAPHost == "" || input.Username == "" || input.Password == "" {
		return nil, ErrInvalidAccountData
	}
	if input.IMAPPort <= 0 {
		input.IMAPPort = 993
	}

	var existing models.EmailAccount
	if err := s.db.Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrAccountAlreadyExists
	}

	encrypted, err := s.encryptSecret(input.Password)
	if err != nil {
		return nil, err
	}

	account := &models.EmailAccount{
		Email:             input.Email,
		DisplayName:       input.DisplayName,
		IMAPHost:          input.IMAPHost,
		IMAPPort:          input.IMAPPort,
		Username:          input.Username,
		PasswordEncrypted: encrypted,
		UseSSL:            input.UseSSL,
		ScanDays:          input.ScanDays,
		AuthType:          string(models.AuthTypePassword),
		Enabled:           true,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, err
	}

	s.logService.LogInfo(models.LogModuleAccount, "create", "Account created", map[string]interface{}{
		"account_id": account.ID,
		"email":      account.Email,
	})
	return account, nil
}

// GetAccountByID retrieves a mailbox account by ID
func (s *AccountService) GetAccountByID(id uint) (*models.EmailAccount, error) {
	var account models.EmailAccount
	if err := s.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListAccounts retrieves every configured mailbox account
func (s *AccountService) ListAccounts() ([]models.EmailAccount, error) {
	var accounts []models.EmailAccount
	if err := s.db.Order("id asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListEnabledAccounts retrieves the accounts that should be scanned
func (s *AccountService) ListEnabledAccounts() ([]models.EmailAccount, error) {
	var accounts []models.EmailAccount
	if err := s.db.Where("enabled = ?", true).Order("id asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// UpdateAccountInput represents the input for updating an account
type UpdateAccountInput struct {
	DisplayName string
	IMAPHost    string
	IMAPPort    int
	Username    string
	Password    string // only updated when non-empty
	UseSSL      *bool
	ScanDays    *int
}

// UpdateAccount updates a mailbox account
func (s *AccountService) UpdateAccount(id uint, input UpdateAccountInput) (*models.EmailAccount, error) {
	account, err := s.GetAccountByID(id)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != "" {
		account.DisplayName = input.DisplayName
	}
	if input.IMAPHost != "" {
		account.IMAPHost = input.IMAPHost
	}
	if input.IMAPPort > 0 {
		account.IMAPPort = input.IMAPPort
	}
	if input.Username != "" {
		account.Username = input.Username
	}
	if input.UseSSL != nil {
		account.UseSSL = *input.UseSSL
	}
	if input.ScanDays != nil {
		account.ScanDays = *input.ScanDays
	}
	if input.Password != "" {
		encrypted, err := s.encryptSecret(input.Password)
		if err != nil {
			return nil, err
		}
		account.PasswordEncrypted = encrypted
		account.AuthType = string(models.AuthTypePassword)
	}

	if err := s.db.Save(account).Error; err != nil {
		return nil, err
	}

	s.logService.LogInfo(models.LogModuleAccount, "update", "Account updated", map[string]interface{}{
		"account_id": account.ID,
		"email":      account.Email,
	})
	return account, nil
}

// DeleteAccount removes a mailbox account
func (s *AccountService) DeleteAccount(id uint) error {
	account, err := s.GetAccountByID(id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(account).Error; err != nil {
		return err
	}
	s.logService.LogInfo(models.LogModuleAccount, "delete", "Account deleted", map[string]interface{}{
		"account_id": id,
		"email":      account.Email,
	})
	return nil
}

// SetEnabled toggles whether an account participates in scans
func (s *AccountService) SetEnabled(id uint, enabled bool) error {
	result := s.db.Model(&models.EmailAccount{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// GetDecryptedPassword returns the account's IMAP password
func (s *AccountService) GetDecryptedPassword(account *models.EmailAccount) (string, error) {
	return s.decryptSecret(account.PasswordEncrypted)
}

// SetOAuthTokens stores encrypted OAuth tokens and switches the account
// to XOAUTH2 authentication
func (s *AccountService) SetOAuthTokens(account *models.EmailAccount, provider, accessToken, refreshToken string, expiry time.Time) error {
	encAccess, err := s.encryptSecret(accessToken)
	if err != nil {
		return err
	}
	encRefresh, err := s.encryptSecret(refreshToken)
	if err != nil {
		return err
	}
	account.AuthType = string(models.AuthTypeOAuth2)
	account.OAuthProvider = provider
	account.OAuthAccessToken = encAccess
	account.OAuthRefreshToken = encRefresh
	account.OAuthTokenExpiry = expiry
	return s.db.Save(account).Error
}

// GetDecryptedOAuthTokens returns the account's access and refresh tokens
func (s *AccountService) GetDecryptedOAuthTokens(account *models.EmailAccount) (accessToken, refreshToken string, err error) {
	accessToken, err = s.decryptSecret(account.OAuthAccessToken)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.decryptSecret(account.OAuthRefreshToken)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// UpdateLastScan records when an account was last scanned
func (s *AccountService) UpdateLastScan(id uint, at time.Time) error {
	return s.db.Model(&models.EmailAccount{}).Where("id = ?", id).Update("last_scan_at", at).Error
}
