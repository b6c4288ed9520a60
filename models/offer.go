package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer is a catalog entry from the offer network. TrackingURL is a template with
// {clickid}, {user_id}, {offer_id} and {offer_slug} macros.
type Offer struct {
	ID           string          `gorm:"primaryKey;type:uuid" json:"id"`
	Name         string          `gorm:"not null" json:"offer_name"`
	NetworkID    string          `gorm:"index" json:"offer_id,omitempty"` // id on the offer network
	Heading      string          `json:"heading"`
	Description  string          `gorm:"type:text" json:"description"`
	ImageURL     string          `gorm:"type:text" json:"image_url"`
	TrackingURL  string          `gorm:"type:text" json:"offer_url"`
	Amount       decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"amount"`
	CurrencyType string          `gorm:"size:16;not null;default:'cash'" json:"currency_type"`
	EventName    string          `json:"event_name"`
	Status       string          `gorm:"size:32;not null;default:'Active'" json:"status"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ScratchedOffer marks an offer as already revealed to a user on the scratch card.
type ScratchedOffer struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_scratch_user_offer" json:"user_id"`
	OfferID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_scratch_user_offer" json:"offer_id"`
	ScratchedAt time.Time `gorm:"autoCreateTime" json:"scratched_at"`
}
