// services/users.go
package services

import (
	"context"
	"errors"
	"strings"

	"rewards-ledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type UserService struct {
	DB        *gorm.DB
	Log       logrus.FieldLogger
	Settings  *SettingsService
	Wallet    *WalletService
	Referrals *ReferralService
}

func NewUserService(db *gorm.DB, log logrus.FieldLogger, settings *SettingsService, wallet *WalletService, referrals *ReferralService) *UserService {
	return &UserService{DB: db, Log: log, Settings: settings, Wallet: wallet, Referrals: referrals}
}

type LoginInput struct {
	GoogleID     string
	Email        string
	Name         string
	ProfilePic   string
	DeviceID     string
	ReferralCode string
}

type LoginResult struct {
	User       *models.User `json:"user"`
	Created    bool         `json:"created"`
	Referred   bool         `json:"referred"`
	SpinsGiven int          `json:"spins_given,omitempty"`
}

// Login finds or creates the user for a Google identity. A device already bound to a different
// account is refused with ErrDeviceMismatch.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.GoogleID = strings.TrimSpace(in.GoogleID)
	in.Email = strings.TrimSpace(in.Email)
	in.DeviceID = strings.TrimSpace(in.DeviceID)
	if in.GoogleID == "" || in.Email == "" {
		return nil, ErrInvalidInput
	}

	out := &LoginResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.DeviceID != "" {
			var others int64
			if err := tx.Model(&models.User{}).
				Where("device_id = ? AND google_id <> ?", in.DeviceID, in.GoogleID).
				Count(&others).Error; err != nil {
				return err
			}
			if others > 0 {
				return ErrDeviceMismatch
			}
		}

		var user models.User
		err := tx.Take(&user, "google_id = ?", in.GoogleID).Error
		if err == nil {
			if in.DeviceID != "" && (user.DeviceID == nil || *user.DeviceID != in.DeviceID) {
				if err := tx.Model(&user).Update("device_id", in.DeviceID).Error; err != nil {
					return err
				}
				user.DeviceID = &in.DeviceID
			}
			out.User = &user
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user = models.User{
			ID:               uuid.NewString(),
			GoogleID:         in.GoogleID,
			Email:            in.Email,
			Name:             strings.TrimSpace(in.Name),
			ProfilePic:       in.ProfilePic,
			WalletBalance:    decimal.Zero,
			TotalEarnings:    decimal.Zero,
			ReferralEarnings: decimal.Zero,
		}
		if in.DeviceID != "" {
			user.DeviceID = &in.DeviceID
		}
		if err := tx.Create(&user).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return err
		}

		code, err := s.Referrals.AssignCode(tx, user.ID, user.Name)
		if err != nil {
			return err
		}
		user.ReferralCode = &code

		settings, err := s.Settings.Snapshot(tx)
		if err != nil {
			return err
		}
		bonus := settings.NewUserSpinBonus()
		if err := s.Wallet.GrantSpins(tx, user.ID, bonus); err != nil {
			return err
		}

		out.User = &user
		out.Created = true
		out.SpinsGiven = bonus
		return nil
	})
	if errors.Is(err, ErrDuplicate) {
		// lost a first-login race for the same identity; the other request created the row
		var user models.User
		if err := s.DB.WithContext(ctx).Take(&user, "google_id = ?", in.GoogleID).Error; err != nil {
			return nil, err
		}
		return &LoginResult{User: &user}, nil
	}
	if err != nil {
		return nil, err
	}

	if out.Created && strings.TrimSpace(in.ReferralCode) != "" {
		referred, err := s.Referrals.RegisterReferral(ctx, in.ReferralCode, out.User.ID)
		if err != nil {
			s.Log.WithError(err).WithField("user_id", out.User.ID).Warn("Referral registration failed")
		}
		out.Referred = referred
		if referred {
			if fresh, err := s.Profile(ctx, out.User.ID); err == nil {
				out.User = fresh
			}
		}
	}
	return out, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	if err := checkIDs(userID); err != nil {
		return nil, err
	}
	var user models.User
	if err := s.DB.WithContext(ctx).Take(&user, "id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

type UserSummary struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	ReferralCode  *string         `json:"referral_code,omitempty"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

// Search matches name, email or referral code, case-insensitively.
func (s *UserService) Search(ctx context.Context, query string, limit int) ([]UserSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.WithContext(ctx).Model(&models.User{}).Order("created_at DESC").Limit(limit)
	if query = strings.TrimSpace(query); query != "" {
		searchTerm := "%" + strings.ToLower(query) + "%"
		db = db.Where(
			"LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(referral_code) LIKE ?",
			searchTerm, searchTerm, searchTerm,
		)
	}

	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return nil, err
	}

	res := make([]UserSummary, len(users))
	for i, u := range users {
		res[i] = UserSummary{
			ID:            u.ID,
			Email:         u.Email,
			Name:          u.Name,
			ReferralCode:  u.ReferralCode,
			WalletBalance: u.WalletBalance,
			TotalEarnings: u.TotalEarnings,
		}
	}
	return res, nil
}
