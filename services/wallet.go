package services

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"rewards-ledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const leaderboardSize = 10

// WalletService holds the user-facing wallet actions. All balance changes go through Ledger.
type WalletService struct {
	DB       *gorm.DB
	Log      logrus.FieldLogger
	Ledger   *LedgerService
	Settings *SettingsService
}

func NewWalletService(db *gorm.DB, log logrus.FieldLogger, ledger *LedgerService, settings *SettingsService) *WalletService {
	return &WalletService{DB: db, Log: log, Ledger: ledger, Settings: settings}
}

type WalletInfo struct {
	Balances         Balances        `json:"balances"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	ReferralEarnings decimal.Decimal `json:"referral_earnings"`
	AvailableSpins   int             `json:"available_spins"`
	LastCheckinOn    *string         `json:"last_checkin_on,omitempty"`
}

// Info reconciles and returns the user's wallet summary.
func (s *WalletService) Info(ctx context.Context, userID string) (*WalletInfo, error) {
	balances, err := s.Ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.DB.WithContext(ctx).Take(&user, "id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	var spins models.UserSpins
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&spins).Error; err != nil {
		return nil, err
	}
	return &WalletInfo{
		Balances:         balances,
		TotalEarnings:    user.TotalEarnings,
		ReferralEarnings: user.ReferralEarnings,
		AvailableSpins:   spins.AvailableSpins,
		LastCheckinOn:    user.LastCheckinOn,
	}, nil
}

type WithdrawalInput struct {
	UserID  string
	Amount  decimal.Decimal
	Method  string
	Details string
}

// RequestWithdrawal debits cash and files a pending withdrawal in one transaction.
func (s *WalletService) RequestWithdrawal(ctx context.Context, in WithdrawalInput) (*models.Withdrawal, *Movement, error) {
	if strings.TrimSpace(in.Method) == "" {
		return nil, nil, ErrInvalidInput
	}
	if err := checkIDs(in.UserID); err != nil {
		return nil, nil, err
	}
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}

	var (
		w        models.Withdrawal
		movement *Movement
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings, err := s.Settings.Snapshot(tx)
		if err != nil {
			return err
		}
		if amount.LessThan(settings.MinWithdrawal()) {
			return ErrInvalidAmount
		}

		w = models.Withdrawal{
			ID:      uuid.NewString(),
			UserID:  in.UserID,
			Amount:  amount,
			Method:  strings.TrimSpace(in.Method),
			Details: in.Details,
			Status:  models.WithdrawalPending,
		}
		if err := tx.Create(&w).Error; err != nil {
			return err
		}

		movement, err = s.Ledger.DebitTx(tx, Entry{
			UserID:       in.UserID,
			Currency:     models.CurrencyCash,
			Amount:       amount,
			Kind:         models.KindWithdrawalDebit,
			Description:  "Withdrawal request via " + w.Method,
			WithdrawalID: &w.ID,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &w, movement, nil
}

// ResolveWithdrawal moves a pending withdrawal to approved or rejected. Rejection refunds the amount.
func (s *WalletService) ResolveWithdrawal(ctx context.Context, id string, status models.WithdrawalStatus) (*models.Withdrawal, error) {
	if status != models.WithdrawalApproved && status != models.WithdrawalRejected {
		return nil, ErrInvalidInput
	}
	if err := checkIDs(id); err != nil {
		return nil, err
	}

	var w models.Withdrawal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&w, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		res := tx.Model(&models.Withdrawal{}).
			Where("id = ? AND status = ?", id, models.WithdrawalPending).
			Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		w.Status = status

		if status == models.WithdrawalRejected {
			_, err := s.Ledger.CreditTx(tx, Entry{
				UserID:       w.UserID,
				Currency:     models.CurrencyCash,
				Amount:       w.Amount,
				Kind:         models.KindWithdrawalRefund,
				Description:  "Withdrawal rejected",
				WithdrawalID: &w.ID,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *WalletService) ListWithdrawals(ctx context.Context, status string, limit int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	var rows []models.Withdrawal
	err := db.Find(&rows).Error
	return rows, err
}

// DailyCheckin credits the configured reward at most once per UTC calendar day.
func (s *WalletService) DailyCheckin(ctx context.Context, userID string, now time.Time) (*Movement, error) {
	if err := checkIDs(userID); err != nil {
		return nil, err
	}
	today := now.UTC().Format(time.DateOnly)

	var movement *Movement
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND (last_checkin_on IS NULL OR last_checkin_on <> ?)", userID, today).
			Update("last_checkin_on", today)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrAlreadyCheckedIn
		}

		settings, err := s.Settings.Snapshot(tx)
		if err != nil {
			return err
		}
		reward := settings.CheckinReward()
		if !reward.IsPositive() {
			return nil
		}
		movement, err = s.Ledger.CreditTx(tx, Entry{
			UserID:      userID,
			Currency:    settings.CheckinCurrency(),
			Amount:      reward,
			Kind:        models.KindCheckin,
			Description: "Daily check-in " + today,
		})
		return err
	})
	return movement, err
}

// GrantSpins adds n spins to the user's allowance.
func (s *WalletService) GrantSpins(tx *gorm.DB, userID string, n int) error {
	if n <= 0 {
		return nil
	}
	row := models.UserSpins{UserID: userID, AvailableSpins: n, TotalSpinsEarned: n}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"available_spins":    gorm.Expr("user_spins.available_spins + ?", n),
			"total_spins_earned": gorm.Expr("user_spins.total_spins_earned + ?", n),
		}),
	}).Create(&row).Error
}

type SpinResult struct {
	Reward         decimal.Decimal `json:"reward"`
	Currency       models.Currency `json:"currency"`
	RemainingSpins int             `json:"remaining_spins"`
	Movement       *Movement       `json:"movement"`
}

// Spin consumes one spin and credits a prize drawn from the configured wheel.
func (s *WalletService) Spin(ctx context.Context, userID string) (*SpinResult, error) {
	if err := checkIDs(userID); err != nil {
		return nil, err
	}
	var out SpinResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}
		res := tx.Model(&models.UserSpins{}).
			Where("user_id = ? AND available_spins > 0", userID).
			Updates(map[string]any{
				"available_spins":  gorm.Expr("available_spins - 1"),
				"total_spins_used": gorm.Expr("total_spins_used + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoSpins
		}

		settings, err := s.Settings.Snapshot(tx)
		if err != nil {
			return err
		}
		prizes := settings.SpinRewards()
		out.Reward = prizes[rand.IntN(len(prizes))]
		out.Currency = settings.SpinCurrency()

		out.Movement, err = s.Ledger.CreditTx(tx, Entry{
			UserID:      userID,
			Currency:    out.Currency,
			Amount:      out.Reward,
			Kind:        models.KindSpin,
			Description: "Spin wheel reward",
		})
		if err != nil {
			return err
		}

		var spins models.UserSpins
		if err := tx.Take(&spins, "user_id = ?", userID).Error; err != nil {
			return err
		}
		out.RemainingSpins = spins.AvailableSpins
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminAdjust applies a signed correction: positive credits, negative debits.
func (s *WalletService) AdminAdjust(ctx context.Context, userID string, currency models.Currency, amount decimal.Decimal, note string) (*Movement, error) {
	amount = amount.Round(2)
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	if note == "" {
		note = "Admin adjustment"
	}
	e := Entry{
		UserID:      userID,
		Currency:    currency,
		Amount:      amount.Abs(),
		Kind:        models.KindAdminAdjustment,
		Description: note,
	}
	if amount.IsNegative() {
		return s.Ledger.Debit(ctx, e)
	}
	return s.Ledger.Credit(ctx, e)
}

type LeaderboardEntry struct {
	Rank          int             `json:"rank"`
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	ProfilePic    string          `json:"profile_pic,omitempty"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

func (s *WalletService) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).
		Select("id", "name", "profile_pic", "total_earnings").
		Order("total_earnings DESC, created_at ASC").
		Limit(leaderboardSize).
		Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		out[i] = LeaderboardEntry{
			Rank:          i + 1,
			UserID:        u.ID,
			Name:          u.Name,
			ProfilePic:    u.ProfilePic,
			TotalEarnings: u.TotalEarnings,
		}
	}
	return out, nil
}
