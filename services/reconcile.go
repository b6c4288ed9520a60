package services

import (
	"context"
	"time"

	"rewards-ledger/models"
	"rewards-ledger/monitoring"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Balances struct {
	Coins decimal.Decimal `json:"coins"`
	Gems  decimal.Decimal `json:"gems"`
	Cash  decimal.Decimal `json:"cash"`
}

func (b *Balances) set(c models.Currency, v decimal.Decimal) {
	switch c {
	case models.CurrencyCoins:
		b.Coins = v
	case models.CurrencyGems:
		b.Gems = v
	case models.CurrencyCash:
		b.Cash = v
	}
}

// Reconcile rebuilds the user's cached balances from wallet_transactions and returns them.
// It takes the same row locks as Credit/Debit: the user row, then balances in currency order.
func (s *LedgerService) Reconcile(ctx context.Context, userID string) (Balances, error) {
	if err := checkIDs(userID); err != nil {
		return Balances{}, err
	}
	var out Balances
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}

		cached := make(map[models.Currency]decimal.Decimal, len(models.Currencies))
		for _, c := range models.Currencies {
			bal, err := lockBalance(tx, userID, c)
			if err != nil {
				return err
			}
			cached[c] = bal.Balance
		}

		type sumRow struct {
			CurrencyType models.Currency
			Total        decimal.Decimal
		}
		var sums []sumRow
		if err := tx.Model(&models.WalletTransaction{}).
			Select("currency_type, COALESCE(SUM(amount), 0) AS total").
			Where("user_id = ?", userID).
			Group("currency_type").
			Scan(&sums).Error; err != nil {
			return err
		}
		truth := make(map[models.Currency]decimal.Decimal, len(sums))
		for _, r := range sums {
			truth[r.CurrencyType] = r.Total.Round(2)
		}

		for _, c := range models.Currencies {
			want := truth[c]
			if !cached[c].Equal(want) {
				s.Log.WithFields(logrus.Fields{
					"user_id":  userID,
					"currency": c,
					"cached":   cached[c].String(),
					"ledger":   want.String(),
				}).Warn("Wallet balance drift repaired")
				monitoring.ReconcileDriftTotal.WithLabelValues(string(c)).Inc()

				if err := tx.Model(&models.WalletBalance{}).
					Where("user_id = ? AND currency_type = ?", userID, c).
					Updates(map[string]any{"balance": want, "updated_at": time.Now().UTC()}).Error; err != nil {
					return err
				}
			}
			out.set(c, want)
		}

		var earnings decimal.Decimal
		if err := tx.Model(&models.WalletTransaction{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("user_id = ? AND currency_type = ? AND amount > 0 AND transaction_type IN ?",
				userID, models.CurrencyCash, models.EarningKinds).
			Scan(&earnings).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"wallet_balance": out.Cash,
			"total_earnings": earnings.Round(2),
		}).Error
	})
	return out, err
}

// GetBalance always reconciles first, so the result matches the transaction log.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (Balances, error) {
	return s.Reconcile(ctx, userID)
}
