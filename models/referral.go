package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
)

// Referral tracks who referred whom and the one-time commission paid on the
// referred user's first qualifying earning.
type Referral struct {
	ID               string          `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID       string          `gorm:"type:uuid;not null;uniqueIndex:idx_referral_pair" json:"referrer_id"`
	ReferredUserID   string          `gorm:"type:uuid;not null;uniqueIndex:idx_referral_pair;uniqueIndex:idx_referral_referred" json:"referred_user_id"`
	ReferralCodeUsed string          `gorm:"size:16;not null" json:"referral_code_used"`
	Status           ReferralStatus  `gorm:"size:16;not null;default:'pending';index" json:"status"`
	CommissionEarned decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"commission_earned"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`

	Timestamps
}
