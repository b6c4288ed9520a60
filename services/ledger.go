package services

import (
	"context"
	"strings"
	"time"

	"rewards-ledger/models"
	"rewards-ledger/monitoring"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService is the only writer of wallet_balances and wallet_transactions.
type LedgerService struct {
	DB  *gorm.DB
	Log logrus.FieldLogger
}

func NewLedgerService(db *gorm.DB, log logrus.FieldLogger) *LedgerService {
	return &LedgerService{DB: db, Log: log}
}

// Entry describes one balance movement. Amount is always positive; direction comes from Credit vs Debit.
type Entry struct {
	UserID       string
	Currency     models.Currency
	Amount       decimal.Decimal
	Kind         models.TransactionKind
	Description  string
	OfferID      *string
	EventID      *uint
	ReferralID   *string
	WithdrawalID *string
}

type Movement struct {
	TransactionID uint            `json:"transaction_id"`
	Currency      models.Currency `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

func (s *LedgerService) Credit(ctx context.Context, e Entry) (*Movement, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	var m *Movement
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		m, err = s.CreditTx(tx, e)
		return err
	})
	return m, err
}

func (s *LedgerService) Debit(ctx context.Context, e Entry) (*Movement, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	var m *Movement
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		m, err = s.DebitTx(tx, e)
		return err
	})
	return m, err
}

// CreditTx applies a credit inside the caller's transaction.
func (s *LedgerService) CreditTx(tx *gorm.DB, e Entry) (*Movement, error) {
	return s.apply(tx, e, false)
}

// DebitTx applies a debit inside the caller's transaction. The balance must cover the amount.
func (s *LedgerService) DebitTx(tx *gorm.DB, e Entry) (*Movement, error) {
	return s.apply(tx, e, true)
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.UserID) == "" || !e.Currency.Valid() || e.Kind == "" {
		return ErrInvalidInput
	}
	if !e.Amount.Round(2).IsPositive() {
		return ErrInvalidAmount
	}
	return checkIDs(e.UserID)
}

func (s *LedgerService) apply(tx *gorm.DB, e Entry, debit bool) (*Movement, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	amount := e.Amount.Round(2)
	if err := lockUser(tx, e.UserID); err != nil {
		return nil, err
	}

	bal, err := lockBalance(tx, e.UserID, e.Currency)
	if err != nil {
		return nil, err
	}

	signed := amount
	if debit {
		if bal.Balance.LessThan(amount) {
			return nil, ErrInsufficientBalance
		}
		signed = amount.Neg()
	}
	before := bal.Balance
	after := before.Add(signed)

	if err := tx.Model(&models.WalletBalance{}).
		Where("user_id = ? AND currency_type = ?", e.UserID, e.Currency).
		Updates(map[string]any{"balance": after, "updated_at": time.Now().UTC()}).Error; err != nil {
		return nil, err
	}

	txn := models.WalletTransaction{
		UserID:        e.UserID,
		CurrencyType:  e.Currency,
		Kind:          e.Kind,
		Amount:        signed,
		BalanceBefore: before,
		BalanceAfter:  after,
		OfferID:       e.OfferID,
		EventID:       e.EventID,
		ReferralID:    e.ReferralID,
		WithdrawalID:  e.WithdrawalID,
		Description:   e.Description,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, err
	}

	if e.Currency == models.CurrencyCash {
		updates := map[string]any{
			"wallet_balance": gorm.Expr("wallet_balance + ?", signed),
		}
		if !debit && e.Kind.Earning() {
			updates["total_earnings"] = gorm.Expr("total_earnings + ?", signed)
		}
		if !debit && e.Kind == models.KindReferralCommission {
			updates["referral_earnings"] = gorm.Expr("referral_earnings + ?", signed)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", e.UserID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	monitoring.LedgerEntriesTotal.WithLabelValues(string(e.Kind), string(e.Currency)).Inc()
	s.Log.WithFields(logrus.Fields{
		"user_id":        e.UserID,
		"currency":       e.Currency,
		"kind":           e.Kind,
		"amount":         signed.String(),
		"balance_before": before.String(),
		"balance_after":  after.String(),
	}).Info("Ledger entry written")

	return &Movement{
		TransactionID: txn.ID,
		Currency:      e.Currency,
		Amount:        signed,
		BalanceBefore: before,
		BalanceAfter:  after,
	}, nil
}

// lockUser takes the users row lock. Every path that writes a user's balances locks users first,
// then wallet_balances in currency order.
func lockUser(tx *gorm.DB, userID string) error {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Take(&user, "id = ?", userID).Error
	return notFound(err)
}

// lockBalance makes sure the (user, currency) row exists and takes a row lock on it.
func lockBalance(tx *gorm.DB, userID string, currency models.Currency) (models.WalletBalance, error) {
	seed := models.WalletBalance{UserID: userID, CurrencyType: currency, Balance: decimal.Zero}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return models.WalletBalance{}, err
	}

	var bal models.WalletBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND currency_type = ?", userID, currency).
		Take(&bal).Error
	return bal, err
}

type TransactionView struct {
	models.WalletTransaction
	OfferName *string `json:"offer_name,omitempty"`
}

// Transactions returns the newest entries first.
func (s *LedgerService) Transactions(ctx context.Context, userID string, limit int) ([]TransactionView, error) {
	if err := checkIDs(userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []TransactionView
	err := s.DB.WithContext(ctx).
		Table("wallet_transactions AS wt").
		Select("wt.*, o.name AS offer_name").
		Joins("LEFT JOIN offers o ON o.id = wt.offer_id").
		Where("wt.user_id = ?", userID).
		Order("wt.created_at DESC, wt.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
