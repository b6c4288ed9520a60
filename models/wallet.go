package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyCoins Currency = "coins"
	CurrencyGems  Currency = "gems"
	CurrencyCash  Currency = "cash"
)

// Currencies is the fixed set of balance buckets, in lock order.
var Currencies = []Currency{CurrencyCash, CurrencyCoins, CurrencyGems}

func (c Currency) Valid() bool {
	switch c {
	case CurrencyCoins, CurrencyGems, CurrencyCash:
		return true
	}
	return false
}

type TransactionKind string

const (
	KindOfferReward        TransactionKind = "offer_reward"
	KindReferralCommission TransactionKind = "referral_commission"
	KindSpin               TransactionKind = "spin"
	KindCheckin            TransactionKind = "checkin"
	KindWithdrawalDebit    TransactionKind = "withdrawal_debit"
	KindWithdrawalRefund   TransactionKind = "withdrawal_refund"
	KindAdminAdjustment    TransactionKind = "admin_adjustment"
)

// Earning reports whether credits of this kind count toward lifetime earnings.
func (k TransactionKind) Earning() bool {
	switch k {
	case KindOfferReward, KindReferralCommission, KindSpin, KindCheckin:
		return true
	}
	return false
}

// EarningKinds lists the kinds for which Earning is true.
var EarningKinds = []TransactionKind{KindOfferReward, KindReferralCommission, KindSpin, KindCheckin}

// WalletTransaction is an append-only ledger entry. Amount is signed: credits positive.
type WalletTransaction struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        string          `gorm:"type:uuid;not null;index:idx_wtx_user_currency" json:"user_id"`
	CurrencyType  Currency        `gorm:"size:16;not null;index:idx_wtx_user_currency" json:"currency_type"`
	Kind          TransactionKind `gorm:"column:transaction_type;size:32;not null;index" json:"transaction_type"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"balance_after"`
	OfferID       *string         `gorm:"type:uuid;index" json:"offer_id,omitempty"`
	EventID       *uint           `gorm:"index" json:"event_id,omitempty"`
	ReferralID    *string         `gorm:"type:uuid;index" json:"referral_id,omitempty"`
	WithdrawalID  *string         `gorm:"type:uuid;index" json:"withdrawal_id,omitempty"`
	Description   string          `gorm:"size:255" json:"description"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// WalletBalance is the cached per-currency projection of wallet_transactions.
type WalletBalance struct {
	UserID       string          `gorm:"primaryKey;type:uuid" json:"user_id"`
	CurrencyType Currency        `gorm:"primaryKey;size:16" json:"currency_type"`
	Balance      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"balance"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID      string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string           `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount  decimal.Decimal  `gorm:"type:numeric(18,2);not null" json:"amount"`
	Method  string           `gorm:"size:50;not null" json:"method"`
	Details string           `gorm:"type:text" json:"details"`
	Status  WithdrawalStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`

	Timestamps
}

// AppSetting is an admin-editable economy knob (commission percent, rewards, limits).
type AppSetting struct {
	Key         string    `gorm:"primaryKey;column:setting_key;size:100" json:"setting_key"`
	Value       string    `gorm:"column:setting_value;type:text;not null" json:"setting_value"`
	Description string    `gorm:"size:255" json:"description"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
