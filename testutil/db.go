// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"testing"
	"time"

	"rewards-ledger/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database on a single connection, so
// transactions run one at a time. Row locks are no-ops there; unique indexes still apply.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// SeedUser inserts a user with an optional referral code.
func SeedUser(t *testing.T, db *gorm.DB, name string, referralCode string) *models.User {
	t.Helper()
	id := uuid.NewString()
	u := &models.User{
		ID:       id,
		GoogleID: "g-" + id,
		Email:    id + "@example.com",
		Name:     name,
	}
	if referralCode != "" {
		u.ReferralCode = &referralCode
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedOffer inserts an active offer paying amount in currency.
func SeedOffer(t *testing.T, db *gorm.DB, name, amount, currency string) *models.Offer {
	t.Helper()
	o := &models.Offer{
		ID:           uuid.NewString(),
		Name:         name,
		TrackingURL:  "https://track.example.com/c?aff_sub={clickid}&uid={user_id}&o={offer_id}&s={offer_slug}",
		Amount:       decimal.RequireFromString(amount),
		CurrencyType: currency,
		EventName:    "install",
		Status:       "Active",
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

// SeedClick inserts a click in status clicked.
func SeedClick(t *testing.T, db *gorm.DB, userID, offerID, token string) *models.OfferClick {
	t.Helper()
	c := &models.OfferClick{
		ClickID: token,
		UserID:  userID,
		OfferID: offerID,
		Status:  models.ClickStatusClicked,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
