package services

import (
	"context"
	"testing"
	"time"

	"rewards-ledger/logging"
	"rewards-ledger/models"
	"rewards-ledger/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *engine) wallet() *WalletService {
	return NewWalletService(e.db, logging.Discard(), e.ledger, e.settings)
}

func TestWithdrawalLifecycle(t *testing.T) {
	e := newEngine(t)
	wallet := e.wallet()
	ctx := context.Background()
	user := testutil.SeedUser(t, e.db, "Nia", "")

	_, err := e.ledger.Credit(ctx, Entry{UserID: user.ID, Currency: models.CurrencyCash, Amount: dec("250"), Kind: models.KindOfferReward})
	require.NoError(t, err)

	_, _, err = wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: user.ID, Amount: dec("99.99"), Method: "paypal"})
	assert.ErrorIs(t, err, ErrInvalidAmount, "below minimum")

	_, _, err = wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: user.ID, Amount: dec("300"), Method: "paypal"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, count(t, e.db, &models.Withdrawal{}, ""), "failed debit leaves no withdrawal row")

	_, _, err = wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: user.ID, Amount: dec("150")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	w, m, err := wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: user.ID, Amount: dec("150"), Method: "upi", Details: "nia@bank"})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, w.Status)
	assertDecimal(t, "100", m.BalanceAfter)

	w, err = wallet.ResolveWithdrawal(ctx, w.ID, models.WithdrawalRejected)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, w.Status)
	assertDecimal(t, "250", cachedBalance(t, e.db, user.ID, models.CurrencyCash))
	assert.EqualValues(t, 1, count(t, e.db, &models.WalletTransaction{}, "transaction_type = ?", models.KindWithdrawalRefund))

	_, err = wallet.ResolveWithdrawal(ctx, w.ID, models.WithdrawalApproved)
	assert.ErrorIs(t, err, ErrConflict, "already resolved")

	_, err = wallet.ResolveWithdrawal(ctx, "missing", models.WithdrawalApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = wallet.ResolveWithdrawal(ctx, w.ID, models.WithdrawalPending)
	assert.ErrorIs(t, err, ErrInvalidInput)

	rows, err := wallet.ListWithdrawals(ctx, string(models.WithdrawalRejected), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDailyCheckinOncePerDay(t *testing.T) {
	e := newEngine(t)
	wallet := e.wallet()
	ctx := context.Background()
	user := testutil.SeedUser(t, e.db, "Oli", "")
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	m, err := wallet.DailyCheckin(ctx, user.ID, day)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.CurrencyCoins, m.Currency)
	assertDecimal(t, "10", m.Amount)

	_, err = wallet.DailyCheckin(ctx, user.ID, day.Add(14*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	_, err = wallet.DailyCheckin(ctx, user.ID, day.Add(24*time.Hour))
	require.NoError(t, err)

	_, err = wallet.DailyCheckin(ctx, "missing", day)
	assert.ErrorIs(t, err, ErrNotFound)

	assertDecimal(t, "20", cachedBalance(t, e.db, user.ID, models.CurrencyCoins))
	assert.EqualValues(t, 2, count(t, e.db, &models.WalletTransaction{}, "transaction_type = ?", models.KindCheckin))
}

func TestSpin(t *testing.T) {
	e := newEngine(t)
	wallet := e.wallet()
	ctx := context.Background()
	user := testutil.SeedUser(t, e.db, "Pat", "")

	_, err := wallet.Spin(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNoSpins)

	_, err = e.settings.Upsert(ctx, SettingSpinRewardValues, "7")
	require.NoError(t, err)
	_, err = e.settings.Upsert(ctx, SettingSpinRewardCurrency, "gems")
	require.NoError(t, err)
	require.NoError(t, wallet.GrantSpins(e.db, user.ID, 2))

	res, err := wallet.Spin(ctx, user.ID)
	require.NoError(t, err)
	assertDecimal(t, "7", res.Reward)
	assert.Equal(t, models.CurrencyGems, res.Currency)
	assert.Equal(t, 1, res.RemainingSpins)

	_, err = wallet.Spin(ctx, user.ID)
	require.NoError(t, err)
	_, err = wallet.Spin(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNoSpins)

	var spins models.UserSpins
	require.NoError(t, e.db.Take(&spins, "user_id = ?", user.ID).Error)
	assert.Equal(t, 0, spins.AvailableSpins)
	assert.Equal(t, 2, spins.TotalSpinsEarned)
	assert.Equal(t, 2, spins.TotalSpinsUsed)
	assertDecimal(t, "14", cachedBalance(t, e.db, user.ID, models.CurrencyGems))
}

func TestAdminAdjust(t *testing.T) {
	e := newEngine(t)
	wallet := e.wallet()
	ctx := context.Background()
	user := testutil.SeedUser(t, e.db, "Rae", "")

	_, err := wallet.AdminAdjust(ctx, user.ID, models.CurrencyCash, dec("0"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	m, err := wallet.AdminAdjust(ctx, user.ID, models.CurrencyCash, dec("30"), "")
	require.NoError(t, err)
	assertDecimal(t, "30", m.BalanceAfter)

	m, err = wallet.AdminAdjust(ctx, user.ID, models.CurrencyCash, dec("-12.5"), "chargeback")
	require.NoError(t, err)
	assertDecimal(t, "-12.5", m.Amount)
	assertDecimal(t, "17.5", m.BalanceAfter)

	_, err = wallet.AdminAdjust(ctx, user.ID, models.CurrencyCash, dec("-100"), "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	var txn models.WalletTransaction
	require.NoError(t, e.db.Order("id DESC").Take(&txn, "user_id = ?", user.ID).Error)
	assert.Equal(t, "chargeback", txn.Description)
}

func TestWalletInfoAndLeaderboard(t *testing.T) {
	e := newEngine(t)
	wallet := e.wallet()
	ctx := context.Background()
	low := testutil.SeedUser(t, e.db, "Low", "")
	high := testutil.SeedUser(t, e.db, "High", "")

	_, err := e.ledger.Credit(ctx, Entry{UserID: low.ID, Currency: models.CurrencyCash, Amount: dec("5"), Kind: models.KindOfferReward})
	require.NoError(t, err)
	_, err = e.ledger.Credit(ctx, Entry{UserID: high.ID, Currency: models.CurrencyCash, Amount: dec("50"), Kind: models.KindOfferReward})
	require.NoError(t, err)
	require.NoError(t, wallet.GrantSpins(e.db, high.ID, 3))

	info, err := wallet.Info(ctx, high.ID)
	require.NoError(t, err)
	assertDecimal(t, "50", info.Balances.Cash)
	assertDecimal(t, "50", info.TotalEarnings)
	assert.Equal(t, 3, info.AvailableSpins)

	board, err := wallet.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, high.ID, board[0].UserID)
	assert.Equal(t, low.ID, board[1].UserID)

	_, err = wallet.Info(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingsValidationAndFallback(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.settings.Upsert(ctx, SettingMinWithdrawal, "-1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.settings.Upsert(ctx, SettingSpinRewardCurrency, "diamonds")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.settings.Upsert(ctx, SettingSpinRewardValues, "0, -2, x")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.settings.Upsert(ctx, SettingNewUserSpinBonus, "two")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.settings.Upsert(ctx, SettingMinWithdrawal, "25")
	require.NoError(t, err)
	_, err = e.settings.Upsert(ctx, "banner_text", "Welcome")
	require.NoError(t, err)

	// a row edited outside the API falls back to the default
	require.NoError(t, e.db.Model(&models.AppSetting{}).
		Where("setting_key = ?", SettingReferralCommissionPercent).
		Update("setting_value", "lots").Error)

	snap, err := e.settings.Snapshot(e.db)
	require.NoError(t, err)
	assertDecimal(t, "25", snap.MinWithdrawal())
	assertDecimal(t, "10", snap.CommissionPercent())
	assert.Equal(t, 2, snap.NewUserSpinBonus())
	assert.Len(t, snap.SpinRewards(), 7)

	// seeding again keeps edited values
	require.NoError(t, e.settings.Seed(ctx))
	rows, err := e.settings.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, len(DefaultSettings)+1)
	snap, err = e.settings.Snapshot(e.db)
	require.NoError(t, err)
	assertDecimal(t, "25", snap.MinWithdrawal())
}
