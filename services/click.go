package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"rewards-ledger/models"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const clickTokenBytes = 32

type ClickService struct {
	DB  *gorm.DB
	Log logrus.FieldLogger
}

func NewClickService(db *gorm.DB, log logrus.FieldLogger) *ClickService {
	return &ClickService{DB: db, Log: log}
}

type StartClickInput struct {
	UserID    string
	OfferID   string
	DeviceID  string
	IPAddress string
	UserAgent string
}

type ClickResult struct {
	ClickID      string          `json:"click_id"`
	TrackingURL  string          `json:"tracking_url"`
	OfferID      string          `json:"offer_id"`
	OfferName    string          `json:"offer_name"`
	Heading      string          `json:"heading"`
	ImageURL     string          `json:"image_url"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyType string          `json:"currency_type"`
}

// IsActiveStatus matches "active" regardless of case.
func IsActiveStatus(status string) bool {
	return cases.Fold().String(strings.TrimSpace(status)) == "active"
}

// StartClick records a new attribution token for (user, offer) and builds the outbound URL.
func (s *ClickService) StartClick(ctx context.Context, in StartClickInput) (*ClickResult, error) {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.OfferID) == "" {
		return nil, ErrInvalidInput
	}
	if err := checkIDs(in.UserID, in.OfferID); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	var user models.User
	if err := db.Select("id").Take(&user, "id = ?", in.UserID).Error; err != nil {
		return nil, notFound(err)
	}
	var offer models.Offer
	if err := db.Take(&offer, "id = ?", in.OfferID).Error; err != nil {
		return nil, notFound(err)
	}
	if !IsActiveStatus(offer.Status) {
		return nil, ErrNotFound
	}

	token, err := NewClickToken()
	if err != nil {
		return nil, err
	}

	click := models.OfferClick{
		ClickID:   token,
		UserID:    in.UserID,
		OfferID:   offer.ID,
		DeviceID:  in.DeviceID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Status:    models.ClickStatusClicked,
	}
	if err := db.Create(&click).Error; err != nil {
		return nil, err
	}

	if err := s.touchFingerprint(ctx, in); err != nil {
		s.Log.WithError(err).WithField("user_id", in.UserID).Warn("Device fingerprint update failed")
	}

	currency := offer.CurrencyType
	if currency == "" {
		currency = string(models.CurrencyCash)
	}

	return &ClickResult{
		ClickID:      token,
		TrackingURL:  BuildTrackingURL(offer.TrackingURL, token, in.UserID, offer),
		OfferID:      offer.ID,
		OfferName:    offer.Name,
		Heading:      offer.Heading,
		ImageURL:     offer.ImageURL,
		Amount:       offer.Amount,
		CurrencyType: currency,
	}, nil
}

// NewClickToken returns 256 random bits, hex-encoded.
func NewClickToken() (string, error) {
	buf := make([]byte, clickTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// BuildTrackingURL fills the known macros in template. Unknown placeholders are left as they are.
func BuildTrackingURL(template, clickID, userID string, offer models.Offer) string {
	if template == "" {
		return ""
	}
	return strings.NewReplacer(
		"{clickid}", clickID,
		"{user_id}", userID,
		"{offer_id}", offer.ID,
		"{offer_slug}", slug.Make(offer.Name),
	).Replace(template)
}

func (s *ClickService) touchFingerprint(ctx context.Context, in StartClickInput) error {
	if strings.TrimSpace(in.DeviceID) == "" {
		return nil
	}
	fp := models.DeviceFingerprint{
		UserID:    in.UserID,
		DeviceID:  in.DeviceID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		LastSeen:  time.Now().UTC(),
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ip_address", "user_agent", "last_seen"}),
	}).Create(&fp).Error
}

type ClickHistoryItem struct {
	ClickID     string             `json:"click_id"`
	OfferID     string             `json:"offer_id"`
	OfferName   string             `json:"offer_name"`
	Status      models.ClickStatus `json:"status"`
	Earned      decimal.Decimal    `json:"earned"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// ClickHistory lists the user's latest clicks with the approved payout for each.
func (s *ClickService) ClickHistory(ctx context.Context, userID string, limit int) ([]ClickHistoryItem, error) {
	if err := checkIDs(userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []ClickHistoryItem
	err := s.DB.WithContext(ctx).
		Table("offer_clicks AS c").
		Select(`c.click_id, c.offer_id, COALESCE(o.name, '') AS offer_name, c.status,
			COALESCE((SELECT SUM(e.payout) FROM offer_events e WHERE e.click_id = c.click_id AND e.status = ?), 0) AS earned,
			c.created_at, c.completed_at`, models.EventStatusApproved).
		Joins("LEFT JOIN offers o ON o.id = c.offer_id").
		Where("c.user_id = ?", userID).
		Order("c.created_at DESC, c.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
