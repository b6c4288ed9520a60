package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClickStatus string

const (
	ClickStatusClicked   ClickStatus = "clicked"
	ClickStatusCompleted ClickStatus = "completed"
)

// OfferClick is one outbound attribution. ClickID is the token handed to the offer network.
type OfferClick struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ClickID     string      `gorm:"size:64;not null;uniqueIndex" json:"click_id"`
	UserID      string      `gorm:"type:uuid;not null;index" json:"user_id"`
	OfferID     string      `gorm:"type:uuid;not null;index" json:"offer_id"`
	DeviceID    string      `gorm:"size:255" json:"device_id,omitempty"`
	IPAddress   string      `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent   string      `gorm:"type:text" json:"user_agent,omitempty"`
	Status      ClickStatus `gorm:"size:16;not null;default:'clicked';index" json:"status"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

type EventStatus string

const (
	EventStatusApproved EventStatus = "approved"
	EventStatusPending  EventStatus = "pending"
)

// OfferEvent is a processed postback. At most one row per (click_id, event_name).
type OfferEvent struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ClickID      string          `gorm:"size:64;not null;uniqueIndex:idx_event_click_name" json:"click_id"`
	EventName    string          `gorm:"size:128;not null;uniqueIndex:idx_event_click_name" json:"event_name"`
	OfferID      string          `gorm:"type:uuid;not null;index" json:"offer_id"`
	UserID       string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Payout       decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"payout"`
	CurrencyType string          `gorm:"size:16;not null" json:"currency_type"`
	Status       EventStatus     `gorm:"size:16;not null" json:"status"`
	PostbackData string          `gorm:"type:text" json:"postback_data"`
	IPAddress    string          `gorm:"size:64" json:"ip_address,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// PostbackLog is the raw audit trail of every inbound postback call, valid or not.
type PostbackLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ClickID      string    `gorm:"size:255;index" json:"click_id"`
	OfferID      string    `gorm:"size:255;index" json:"offer_id"`
	RawData      string    `gorm:"type:text" json:"raw_data"`
	IPAddress    string    `gorm:"size:64" json:"ip_address"`
	Status       string    `gorm:"size:32;not null;index" json:"status"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
