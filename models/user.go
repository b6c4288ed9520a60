package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is created at first login. Balances are written only by the ledger; the
// wallet_balance/total_earnings columns mirror the cash bucket for older clients.
type User struct {
	ID         string  `gorm:"primaryKey;type:uuid" json:"id"`
	GoogleID   string  `gorm:"uniqueIndex;not null" json:"google_id"`
	Email      string  `gorm:"not null" json:"email"`
	Name       string  `json:"name"`
	ProfilePic string  `gorm:"type:text" json:"profile_pic,omitempty"`
	DeviceID   *string `gorm:"index" json:"device_id,omitempty"`

	WalletBalance    decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"wallet_balance"`
	TotalEarnings    decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"total_earnings"`
	ReferralEarnings decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"referral_earnings"`

	ReferralCode *string `gorm:"uniqueIndex;size:16" json:"referral_code,omitempty"`
	ReferredBy   *string `gorm:"type:uuid;index" json:"referred_by,omitempty"` // referrer's user id

	LastCheckinOn *string `gorm:"size:10" json:"last_checkin_on,omitempty"` // YYYY-MM-DD, UTC

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// UserSpins tracks spin-wheel allowance.
type UserSpins struct {
	UserID           string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	AvailableSpins   int       `gorm:"not null;default:0" json:"available_spins"`
	TotalSpinsEarned int       `gorm:"not null;default:0" json:"total_spins_earned"`
	TotalSpinsUsed   int       `gorm:"not null;default:0" json:"total_spins_used"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// DeviceFingerprint is the last-seen network signature of a user's device, kept for fraud review.
type DeviceFingerprint struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_device_user" json:"user_id"`
	DeviceID     string    `gorm:"size:255;not null;uniqueIndex:idx_device_user" json:"device_id"`
	IPAddress    string    `gorm:"size:64" json:"ip_address"`
	UserAgent    string    `gorm:"type:text" json:"user_agent"`
	IsSuspicious bool      `gorm:"not null;default:false" json:"is_suspicious"`
	Notes        string    `gorm:"type:text" json:"notes,omitempty"`
	LastSeen     time.Time `gorm:"not null" json:"last_seen"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
