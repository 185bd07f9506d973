package models

import (
	"time"
)

// AuthType represents the IMAP authentication method for an account
type AuthType string

const (
	AuthTypePassword AuthType = "password"
	AuthTypeOAuth2   AuthType = "oauth2"
)

// EmailAccount represents a mailbox that order-notification emails are
// scanned from
type EmailAccount struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Email             string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	DisplayName       string    `gorm:"size:100" json:"display_name"`
	IMAPHost          string    `gorm:"size:255;not null" json:"imap_host"`
	IMAPPort          int       `gorm:"not null" json:"imap_port"`
	Username          string    `gorm:"size:255;not null" json:"username"`
	PasswordEncrypted string    `gorm:"size:500" json:"-"`
	UseSSL            bool      `gorm:"default:true" json:"use_ssl"`
	Enabled           bool      `gorm:"default:true" json:"enabled"`
	ScanDays          int       `gorm:"default:0" json:"scan_days"` // Days to scan back: -1=all, 0=incremental, >0=specific days
	LastScanAt        time.Time `json:"last_scan_at"`

	// OAuth2 (XOAUTH2) authentication
	AuthType          string    `gorm:"column:auth_type;size:20;default:'password'" json:"auth_type"`
	OAuthProvider     string    `gorm:"column:oauth_provider;size:50" json:"oauth_provider,omitempty"`
	OAuthAccessToken  string    `gorm:"column:oauth_access_token;size:2000" json:"-"`
	OAuthRefreshToken string    `gorm:"column:oauth_refresh_token;size:2000" json:"-"`
	OAuthTokenExpiry  time.Time `gorm:"column:oauth_token_expiry" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Orders []Order `gorm:"foreignKey:AccountID" json:"orders,omitempty"`
}
