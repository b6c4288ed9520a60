package services

import (
	"context"
	"strconv"
	"strings"

	"rewards-ledger/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SettingReferralCommissionPercent = "referral_commission_percent"
	SettingMinWithdrawal             = "min_withdrawal"
	SettingDailyCheckinReward        = "daily_checkin_reward"
	SettingDailyCheckinCurrency      = "daily_checkin_currency"
	SettingSpinRewardValues          = "spin_reward_values"
	SettingSpinRewardCurrency        = "spin_reward_currency"
	SettingNewUserSpinBonus          = "new_user_spin_bonus"
)

// DefaultSettings are seeded at startup and used when a row is missing or unparseable.
var DefaultSettings = []models.AppSetting{
	{Key: SettingReferralCommissionPercent, Value: "10", Description: "Percent of a referred user's first offer reward paid to the referrer"},
	{Key: SettingMinWithdrawal, Value: "100", Description: "Minimum cash withdrawal"},
	{Key: SettingDailyCheckinReward, Value: "10", Description: "Daily check-in reward"},
	{Key: SettingDailyCheckinCurrency, Value: "coins", Description: "Currency of the daily check-in reward"},
	{Key: SettingSpinRewardValues, Value: "1,2,5,10,25,50,100", Description: "Comma-separated spin wheel prizes"},
	{Key: SettingSpinRewardCurrency, Value: "coins", Description: "Currency of spin wheel prizes"},
	{Key: SettingNewUserSpinBonus, Value: "2", Description: "Free spins granted at signup"},
}

func defaultSetting(key string) string {
	for _, s := range DefaultSettings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

type SettingsService struct {
	DB *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// Seed inserts the default rows, leaving admin-edited values alone.
func (s *SettingsService) Seed(ctx context.Context) error {
	rows := make([]models.AppSetting, len(DefaultSettings))
	copy(rows, DefaultSettings)
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (s *SettingsService) List(ctx context.Context) ([]models.AppSetting, error) {
	var rows []models.AppSetting
	err := s.DB.WithContext(ctx).Order("setting_key").Find(&rows).Error
	return rows, err
}

// Upsert writes one setting. Known keys are validated against their type.
func (s *SettingsService) Upsert(ctx context.Context, key, value string) (*models.AppSetting, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return nil, ErrInvalidInput
	}
	if err := validateSetting(key, value); err != nil {
		return nil, err
	}

	row := models.AppSetting{Key: key, Value: value}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func validateSetting(key, value string) error {
	switch key {
	case SettingReferralCommissionPercent, SettingMinWithdrawal, SettingDailyCheckinReward:
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() {
			return ErrInvalidInput
		}
	case SettingDailyCheckinCurrency, SettingSpinRewardCurrency:
		if !models.Currency(value).Valid() {
			return ErrInvalidInput
		}
	case SettingSpinRewardValues:
		if len(parseDecimalList(value)) == 0 {
			return ErrInvalidInput
		}
	case SettingNewUserSpinBonus:
		if n, err := strconv.Atoi(value); err != nil || n < 0 {
			return ErrInvalidInput
		}
	}
	return nil
}

// Snapshot reads every setting through db, which may be a caller's transaction.
func (s *SettingsService) Snapshot(db *gorm.DB) (Settings, error) {
	var rows []models.AppSetting
	if err := db.Find(&rows).Error; err != nil {
		return Settings{}, err
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	return Settings{values: values}, nil
}

// Settings is a point-in-time view of app_settings.
type Settings struct {
	values map[string]string
}

func (s Settings) raw(key string) string {
	if v, ok := s.values[key]; ok {
		return strings.TrimSpace(v)
	}
	return defaultSetting(key)
}

func (s Settings) decimal(key string) decimal.Decimal {
	if d, err := decimal.NewFromString(s.raw(key)); err == nil && !d.IsNegative() {
		return d
	}
	return decimal.RequireFromString(defaultSetting(key))
}

func (s Settings) currency(key string) models.Currency {
	if c := models.Currency(strings.ToLower(s.raw(key))); c.Valid() {
		return c
	}
	return models.Currency(defaultSetting(key))
}

func (s Settings) CommissionPercent() decimal.Decimal { return s.decimal(SettingReferralCommissionPercent) }
func (s Settings) MinWithdrawal() decimal.Decimal     { return s.decimal(SettingMinWithdrawal) }
func (s Settings) CheckinReward() decimal.Decimal     { return s.decimal(SettingDailyCheckinReward) }
func (s Settings) CheckinCurrency() models.Currency   { return s.currency(SettingDailyCheckinCurrency) }
func (s Settings) SpinCurrency() models.Currency      { return s.currency(SettingSpinRewardCurrency) }

func (s Settings) SpinRewards() []decimal.Decimal {
	if values := parseDecimalList(s.raw(SettingSpinRewardValues)); len(values) > 0 {
		return values
	}
	return parseDecimalList(defaultSetting(SettingSpinRewardValues))
}

func (s Settings) NewUserSpinBonus() int {
	if n, err := strconv.Atoi(s.raw(SettingNewUserSpinBonus)); err == nil && n >= 0 {
		return n
	}
	n, _ := strconv.Atoi(defaultSetting(SettingNewUserSpinBonus))
	return n
}

// parseDecimalList keeps only positive entries.
func parseDecimalList(value string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, part := range strings.Split(value, ",") {
		d, err := decimal.NewFromString(strings.TrimSpace(part))
		if err != nil || !d.IsPositive() {
			continue
		}
		out = append(out, d)
	}
	return out
}
