package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"
	"unicode"

	"rewards-ledger/models"
	"rewards-ledger/monitoring"

	"github.com/google/uuid"
	"github.com/gosimple/unidecode"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	referralPrefixLen    = 4
	referralCodeAttempts = 5
)

type ReferralService struct {
	DB       *gorm.DB
	Log      logrus.FieldLogger
	Ledger   *LedgerService
	Settings *SettingsService
}

func NewReferralService(db *gorm.DB, log logrus.FieldLogger, ledger *LedgerService, settings *SettingsService) *ReferralService {
	return &ReferralService{DB: db, Log: log, Ledger: ledger, Settings: settings}
}

// ReferralCodePrefix takes the first four ASCII letters or digits of the transliterated name, padded with X.
func ReferralCodePrefix(name string) string {
	var b strings.Builder
	for _, r := range unidecode.Unidecode(name) {
		if b.Len() == referralPrefixLen {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	for b.Len() < referralPrefixLen {
		b.WriteByte('X')
	}
	return b.String()
}

// NewReferralCode returns e.g. "ANNA3F9C".
func NewReferralCode(name string) (string, error) {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return ReferralCodePrefix(name) + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// AssignCode gives the user a unique referral code, retrying on collision.
func (s *ReferralService) AssignCode(tx *gorm.DB, userID, name string) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := NewReferralCode(name)
		if err != nil {
			return "", err
		}
		var taken int64
		if err := tx.Model(&models.User{}).Where("referral_code = ?", code).Count(&taken).Error; err != nil {
			return "", err
		}
		if taken > 0 {
			continue
		}
		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Model(&models.User{}).Where("id = ?", userID).Update("referral_code", code).Error
		})
		if isDuplicateKey(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}
	return "", ErrConflict
}

// RegisterReferral links referredUserID to the owner of code. An unknown code, a self-referral or an
// existing referral is a no-op and reports false.
func (s *ReferralService) RegisterReferral(ctx context.Context, code, referredUserID string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || strings.TrimSpace(referredUserID) == "" {
		return false, nil
	}

	created := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referrer models.User
		if err := tx.Select("id").Take(&referrer, "referral_code = ?", code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if referrer.ID == referredUserID {
			return nil
		}

		var existing int64
		if err := tx.Model(&models.Referral{}).Where("referred_user_id = ?", referredUserID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		ref := models.Referral{
			ID:               uuid.NewString(),
			ReferrerID:       referrer.ID,
			ReferredUserID:   referredUserID,
			ReferralCodeUsed: code,
			Status:           models.ReferralPending,
			CommissionEarned: decimal.Zero,
		}
		if err := tx.Create(&ref).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", referredUserID).Update("referred_by", referrer.ID).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	return created, err
}

// Commission is earned * percent / 100, rounded half-up to cents.
func Commission(earned, percent decimal.Decimal) decimal.Decimal {
	return earned.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

// OnQualifyingEarning pays the referrer of referredUserID once, on the first qualifying earning.
// Returns nil when there is no pending referral and ErrConflict when another call already completed it.
func (s *ReferralService) OnQualifyingEarning(ctx context.Context, referredUserID string, earned decimal.Decimal) error {
	var ref models.Referral
	err := s.DB.WithContext(ctx).
		Where("referred_user_id = ? AND status = ?", referredUserID, models.ReferralPending).
		Take(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var commission decimal.Decimal
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings, err := s.Settings.Snapshot(tx)
		if err != nil {
			return err
		}
		commission = Commission(earned, settings.CommissionPercent())
		if commission.IsNegative() {
			commission = decimal.Zero
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Referral{}).
			Where("id = ? AND status = ?", ref.ID, models.ReferralPending).
			Updates(map[string]any{
				"status":            models.ReferralCompleted,
				"commission_earned": commission,
				"completed_at":      now,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		if !commission.IsPositive() {
			return nil
		}
		_, err = s.Ledger.CreditTx(tx, Entry{
			UserID:      ref.ReferrerID,
			Currency:    models.CurrencyCash,
			Amount:      commission,
			Kind:        models.KindReferralCommission,
			Description: "Referral commission",
			ReferralID:  &ref.ID,
		})
		return err
	})
	if err != nil {
		return err
	}

	if commission.IsPositive() {
		monitoring.ReferralCommissionsTotal.Inc()
	}
	s.Log.WithFields(logrus.Fields{
		"referral_id": ref.ID,
		"referrer_id": ref.ReferrerID,
		"commission":  commission.String(),
	}).Info("Referral completed")
	return nil
}

type ReferralStats struct {
	ReferralCode       string          `json:"referral_code"`
	TotalReferrals     int64           `json:"total_referrals"`
	CompletedReferrals int64           `json:"completed_referrals"`
	TotalCommission    decimal.Decimal `json:"total_commission"`
	Referrals          []ReferralEntry `json:"referrals"`
}

type ReferralEntry struct {
	ReferredUserID   string                `json:"referred_user_id"`
	Name             string                `json:"name"`
	Status           models.ReferralStatus `json:"status"`
	CommissionEarned decimal.Decimal       `json:"commission_earned"`
	CreatedAt        time.Time             `json:"created_at"`
}

func (s *ReferralService) Stats(ctx context.Context, userID string) (*ReferralStats, error) {
	if err := checkIDs(userID); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	var user models.User
	if err := db.Select("id", "referral_code").Take(&user, "id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}

	stats := &ReferralStats{}
	if user.ReferralCode != nil {
		stats.ReferralCode = *user.ReferralCode
	}

	if err := db.Table("referrals AS r").
		Select("r.referred_user_id, COALESCE(u.name, '') AS name, r.status, r.commission_earned, r.created_at").
		Joins("LEFT JOIN users u ON u.id = r.referred_user_id").
		Where("r.referrer_id = ?", userID).
		Order("r.created_at DESC").
		Scan(&stats.Referrals).Error; err != nil {
		return nil, err
	}

	stats.TotalCommission = decimal.Zero
	for _, r := range stats.Referrals {
		stats.TotalReferrals++
		if r.Status == models.ReferralCompleted {
			stats.CompletedReferrals++
			stats.TotalCommission = stats.TotalCommission.Add(r.CommissionEarned)
		}
	}
	return stats, nil
}
