package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rewards-ledger/models"
	"rewards-ledger/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralCodePrefix(t *testing.T) {
	assert.Equal(t, "ANNA", ReferralCodePrefix("Anna Smith"))
	assert.Equal(t, "JOXX", ReferralCodePrefix("Jo"))
	assert.Equal(t, "XXXX", ReferralCodePrefix(""))
	assert.Equal(t, "ZOEL", ReferralCodePrefix("Zoë L."))
	assert.Equal(t, "BEIJ", ReferralCodePrefix("北京"))

	code, err := NewReferralCode("Anna")
	require.NoError(t, err)
	assert.Regexp(t, `^ANNA[0-9A-F]{4}$`, code)
}

func TestCommissionRounding(t *testing.T) {
	assertDecimal(t, "10", Commission(dec("100"), dec("10")))
	assertDecimal(t, "0.13", Commission(dec("1.25"), dec("10")))
	assertDecimal(t, "1.23", Commission(dec("12.345"), dec("10")))
	assertDecimal(t, "0", Commission(dec("0.04"), dec("10")))
}

func TestRegisterReferralNoOps(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	referrer := testutil.SeedUser(t, e.db, "Ada", "ADAX0001")
	testutil.SeedUser(t, e.db, "Ben", "BENX0002")
	newcomer := testutil.SeedUser(t, e.db, "Cid", "")

	ok, err := e.referrals.RegisterReferral(ctx, "NOPE9999", newcomer.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.referrals.RegisterReferral(ctx, "ADAX0001", referrer.ID)
	require.NoError(t, err)
	assert.False(t, ok, "self-referral")

	ok, err = e.referrals.RegisterReferral(ctx, "adax0001", newcomer.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.referrals.RegisterReferral(ctx, "BENX0002", newcomer.ID)
	require.NoError(t, err)
	assert.False(t, ok, "already referred")

	assert.EqualValues(t, 1, count(t, e.db, &models.Referral{}, ""))
	var u models.User
	require.NoError(t, e.db.Take(&u, "id = ?", newcomer.ID).Error)
	require.NotNil(t, u.ReferredBy)
	assert.Equal(t, referrer.ID, *u.ReferredBy)
}

func TestOnQualifyingEarningWithoutReferral(t *testing.T) {
	e := newEngine(t)
	user := testutil.SeedUser(t, e.db, "Dee", "")
	require.NoError(t, e.referrals.OnQualifyingEarning(context.Background(), user.ID, dec("50")))
	assert.Zero(t, count(t, e.db, &models.WalletTransaction{}, ""))
}

func TestCommissionPaidAtMostOnceUnderConcurrency(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	referrer := testutil.SeedUser(t, e.db, "Eli", "ELIX0003")
	newcomer := testutil.SeedUser(t, e.db, "Fay", "")
	ok, err := e.referrals.RegisterReferral(ctx, "ELIX0003", newcomer.ID)
	require.NoError(t, err)
	require.True(t, ok)

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.referrals.OnQualifyingEarning(ctx, newcomer.ID, dec("80"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, ErrConflict), "unexpected error: %v", err)
		}
	}
	assert.EqualValues(t, 1, count(t, e.db, &models.WalletTransaction{}, "transaction_type = ?", models.KindReferralCommission))
	assertDecimal(t, "8", cachedBalance(t, e.db, referrer.ID, models.CurrencyCash))
	assert.EqualValues(t, 1, count(t, e.db, &models.Referral{}, "status = ?", models.ReferralCompleted))
}

func TestCommissionUsesCurrentSetting(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	referrer := testutil.SeedUser(t, e.db, "Gil", "GILX0004")
	newcomer := testutil.SeedUser(t, e.db, "Hal", "")
	_, err := e.referrals.RegisterReferral(ctx, "GILX0004", newcomer.ID)
	require.NoError(t, err)

	_, err = e.settings.Upsert(ctx, SettingReferralCommissionPercent, "25")
	require.NoError(t, err)

	require.NoError(t, e.referrals.OnQualifyingEarning(ctx, newcomer.ID, dec("40")))
	assertDecimal(t, "10", cachedBalance(t, e.db, referrer.ID, models.CurrencyCash))
}

func TestZeroCommissionCompletesReferral(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	referrer := testutil.SeedUser(t, e.db, "Ike", "IKEX0005")
	newcomer := testutil.SeedUser(t, e.db, "Jo", "")
	_, err := e.referrals.RegisterReferral(ctx, "IKEX0005", newcomer.ID)
	require.NoError(t, err)
	_, err = e.settings.Upsert(ctx, SettingReferralCommissionPercent, "0")
	require.NoError(t, err)

	require.NoError(t, e.referrals.OnQualifyingEarning(ctx, newcomer.ID, dec("40")))
	assert.EqualValues(t, 1, count(t, e.db, &models.Referral{}, "status = ?", models.ReferralCompleted))
	assert.Zero(t, count(t, e.db, &models.WalletTransaction{}, "user_id = ?", referrer.ID))
}

func TestReferralStats(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	referrer := testutil.SeedUser(t, e.db, "Kai", "KAIX0006")
	a := testutil.SeedUser(t, e.db, "Lea", "")
	b := testutil.SeedUser(t, e.db, "Max", "")
	_, err := e.referrals.RegisterReferral(ctx, "KAIX0006", a.ID)
	require.NoError(t, err)
	_, err = e.referrals.RegisterReferral(ctx, "KAIX0006", b.ID)
	require.NoError(t, err)
	require.NoError(t, e.referrals.OnQualifyingEarning(ctx, a.ID, dec("30")))

	stats, err := e.referrals.Stats(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, "KAIX0006", stats.ReferralCode)
	assert.EqualValues(t, 2, stats.TotalReferrals)
	assert.EqualValues(t, 1, stats.CompletedReferrals)
	assertDecimal(t, "3", stats.TotalCommission)
	assert.Len(t, stats.Referrals, 2)
}
