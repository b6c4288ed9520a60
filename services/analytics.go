package services

import (
	"context"
	"strings"
	"time"

	"rewards-ledger/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	suspiciousDeviceThreshold = 3
	suspiciousIPThreshold     = 5
)

// AnalyticsService serves the read-only admin views over clicks, postbacks and the ledger.
type AnalyticsService struct {
	DB *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{DB: db}
}

type PostbackLogFilter struct {
	Status  string
	OfferID string
	From    *time.Time
	To      *time.Time
	Limit   int
}

func (s *AnalyticsService) PostbackLogs(ctx context.Context, f PostbackLogFilter) ([]models.PostbackLog, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	db := s.DB.WithContext(ctx).Order("created_at DESC, id DESC").Limit(f.Limit)
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.OfferID != "" {
		db = db.Where("offer_id = ?", f.OfferID)
	}
	if f.From != nil {
		db = db.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("created_at <= ?", *f.To)
	}
	var logs []models.PostbackLog
	err := db.Find(&logs).Error
	return logs, err
}

type OfferConversion struct {
	OfferID        string          `json:"offer_id"`
	OfferName      string          `json:"offer_name"`
	TotalClicks    int64           `json:"total_clicks"`
	Conversions    int64           `json:"conversions"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
	ApprovedPayout decimal.Decimal `json:"approved_payout"`
}

// Conversions reports clicks and completions per offer. offerID narrows it to one offer.
func (s *AnalyticsService) Conversions(ctx context.Context, offerID string) ([]OfferConversion, error) {
	db := s.DB.WithContext(ctx).
		Table("offers AS o").
		Select(`o.id AS offer_id, o.name AS offer_name,
			(SELECT COUNT(*) FROM offer_clicks c WHERE c.offer_id = o.id) AS total_clicks,
			(SELECT COUNT(*) FROM offer_clicks c WHERE c.offer_id = o.id AND c.status = ?) AS conversions,
			(SELECT COALESCE(SUM(e.payout), 0) FROM offer_events e WHERE e.offer_id = o.id AND e.status = ?) AS approved_payout`,
			models.ClickStatusCompleted, models.EventStatusApproved).
		Order("o.name")
	if offerID != "" {
		if err := checkIDs(offerID); err != nil {
			return nil, err
		}
		db = db.Where("o.id = ?", offerID)
	}

	var rows []OfferConversion
	if err := db.Scan(&rows).Error; err != nil {
		return nil, err
	}
	hundred := decimal.NewFromInt(100)
	for i := range rows {
		rows[i].ConversionRate = decimal.Zero
		if rows[i].TotalClicks > 0 {
			rows[i].ConversionRate = decimal.NewFromInt(rows[i].Conversions).
				Mul(hundred).
				Div(decimal.NewFromInt(rows[i].TotalClicks)).
				Round(2)
		}
	}
	return rows, nil
}

type RevenueRow struct {
	Date             string          `json:"date"`
	CurrencyType     models.Currency `json:"currency_type"`
	TransactionCount int64           `json:"transaction_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	UniqueUsers      int64           `json:"unique_users"`
}

// Revenue totals offer rewards per day and currency over [from, to].
func (s *AnalyticsService) Revenue(ctx context.Context, from, to time.Time) ([]RevenueRow, error) {
	var rows []RevenueRow
	err := s.DB.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select(`DATE(created_at) AS date, currency_type, COUNT(*) AS transaction_count,
			COALESCE(SUM(amount), 0) AS total_amount, COUNT(DISTINCT user_id) AS unique_users`).
		Where("transaction_type = ? AND created_at BETWEEN ? AND ?", models.KindOfferReward, from, to).
		Group("DATE(created_at), currency_type").
		Order("date DESC, currency_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if len(rows[i].Date) > len(time.DateOnly) {
			rows[i].Date = rows[i].Date[:len(time.DateOnly)]
		}
	}
	return rows, nil
}

type SuspiciousUser struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DeviceCount int64  `json:"device_count"`
	IPCount     int64  `json:"ip_count"`
	TotalClicks int64  `json:"total_clicks"`
	Conversions int64  `json:"conversions"`
}

// Suspicious lists users seen on many devices or many click IPs.
func (s *AnalyticsService) Suspicious(ctx context.Context) ([]SuspiciousUser, error) {
	var rows []SuspiciousUser
	err := s.DB.WithContext(ctx).Raw(`
		SELECT * FROM (
			SELECT u.id AS user_id, u.email,
				(SELECT COUNT(DISTINCT df.device_id) FROM device_fingerprints df WHERE df.user_id = u.id) AS device_count,
				(SELECT COUNT(DISTINCT oc.ip_address) FROM offer_clicks oc WHERE oc.user_id = u.id) AS ip_count,
				(SELECT COUNT(*) FROM offer_clicks oc WHERE oc.user_id = u.id) AS total_clicks,
				(SELECT COUNT(*) FROM offer_clicks oc WHERE oc.user_id = u.id AND oc.status = ?) AS conversions
			FROM users u
			WHERE u.deleted_at IS NULL
		) s
		WHERE s.device_count > ? OR s.ip_count > ?
		ORDER BY s.device_count DESC, s.ip_count DESC
		LIMIT 50`,
		models.ClickStatusCompleted, suspiciousDeviceThreshold, suspiciousIPThreshold,
	).Scan(&rows).Error
	return rows, err
}

// MarkDeviceSuspicious flags every fingerprint row for deviceID.
func (s *AnalyticsService) MarkDeviceSuspicious(ctx context.Context, deviceID, notes string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ErrInvalidInput
	}
	res := s.DB.WithContext(ctx).Model(&models.DeviceFingerprint{}).
		Where("device_id = ?", deviceID).
		Updates(map[string]any{"is_suspicious": true, "notes": notes})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
