package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"rewards-ledger/models"
	"rewards-ledger/monitoring"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultEventName = "default"

type PostbackCode string

const (
	PostbackBadRequest       PostbackCode = "bad_request"
	PostbackNotFound         PostbackCode = "not_found"
	PostbackAlreadyProcessed PostbackCode = "already_processed"
	PostbackSuccess          PostbackCode = "success"
	PostbackInternalError    PostbackCode = "internal_error"
)

const postbackLogReceived = "received"

// PostbackInput is one inbound call from the offer network. Every field is untrusted.
type PostbackInput struct {
	ClickID     string
	OfferIDHint string
	EventName   string
	Payout      string
	Status      string
	IPAddress   string
	Raw         map[string]string
}

// PostbackResult is the acknowledgment returned to the network. HTTPStatus and Message are what it sees.
type PostbackResult struct {
	Code       PostbackCode
	Message    string
	HTTPStatus int
	Approved   bool
	Credit     *Movement
}

func postbackResult(code PostbackCode, message string) PostbackResult {
	status := http.StatusOK
	switch code {
	case PostbackBadRequest:
		status = http.StatusBadRequest
	case PostbackNotFound:
		status = http.StatusNotFound
	case PostbackInternalError:
		status = http.StatusInternalServerError
	}
	return PostbackResult{Code: code, Message: message, HTTPStatus: status}
}

var (
	resultMissingClick = postbackResult(PostbackBadRequest, "ERROR: Missing click_id")
	resultClickMissing = postbackResult(PostbackNotFound, "ERROR: Click not found")
	resultOfferMissing = postbackResult(PostbackNotFound, "ERROR: Offer not found")
	resultDuplicate    = postbackResult(PostbackAlreadyProcessed, "OK: Already processed")
	resultInternal     = postbackResult(PostbackInternalError, "ERROR: Internal server error")
)

type PostbackService struct {
	DB        *gorm.DB
	Log       logrus.FieldLogger
	Ledger    *LedgerService
	Referrals *ReferralService
}

func NewPostbackService(db *gorm.DB, log logrus.FieldLogger, ledger *LedgerService, referrals *ReferralService) *PostbackService {
	return &PostbackService{DB: db, Log: log, Ledger: ledger, Referrals: referrals}
}

// IsApprovedStatus is an exact, case-sensitive match on "approved" or "completed".
func IsApprovedStatus(status string) bool {
	return status == "approved" || status == "completed"
}

// ParsePayout accepts only decimals that stay positive once rounded to cents.
func ParsePayout(hint string) (decimal.Decimal, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(hint)
	if err != nil {
		return decimal.Zero, false
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// Handle audits the call, then validates, dedupes and credits. It always returns a terminal result.
func (s *PostbackService) Handle(ctx context.Context, in PostbackInput) PostbackResult {
	raw, _ := json.Marshal(in.Raw)
	entry := models.PostbackLog{
		ClickID:   in.ClickID,
		OfferID:   in.OfferIDHint,
		RawData:   string(raw),
		IPAddress: in.IPAddress,
		Status:    postbackLogReceived,
	}
	logger := s.Log.WithFields(logrus.Fields{"click_id": in.ClickID, "event": in.EventName})

	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		logger.WithError(err).Error("Failed to write postback audit log")
		monitoring.PostbacksTotal.WithLabelValues(string(PostbackInternalError)).Inc()
		return resultInternal
	}

	res := s.process(ctx, in, string(raw), logger)

	errMsg := ""
	if res.Code != PostbackSuccess {
		errMsg = res.Message
	}
	if err := s.DB.WithContext(ctx).Model(&models.PostbackLog{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{"status": string(res.Code), "error_message": errMsg}).Error; err != nil {
		logger.WithError(err).Warn("Failed to update postback audit log")
	}

	monitoring.PostbacksTotal.WithLabelValues(string(res.Code)).Inc()
	return res
}

func (s *PostbackService) process(ctx context.Context, in PostbackInput, raw string, logger logrus.FieldLogger) PostbackResult {
	clickID := strings.TrimSpace(in.ClickID)
	if clickID == "" {
		return resultMissingClick
	}
	eventName := strings.TrimSpace(in.EventName)
	if eventName == "" {
		eventName = DefaultEventName
	}
	db := s.DB.WithContext(ctx)

	var click models.OfferClick
	if err := db.Take(&click, "click_id = ?", clickID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resultClickMissing
		}
		logger.WithError(err).Error("Click lookup failed")
		return resultInternal
	}

	var seen int64
	if err := db.Model(&models.OfferEvent{}).
		Where("click_id = ? AND event_name = ?", clickID, eventName).
		Count(&seen).Error; err != nil {
		logger.WithError(err).Error("Event lookup failed")
		return resultInternal
	}
	if seen > 0 {
		return resultDuplicate
	}

	var offer models.Offer
	if err := db.Take(&offer, "id = ?", click.OfferID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resultOfferMissing
		}
		logger.WithError(err).Error("Offer lookup failed")
		return resultInternal
	}

	payout, ok := ParsePayout(in.Payout)
	if !ok {
		payout = decimal.Zero
		if offer.Amount.IsPositive() {
			payout = offer.Amount.Round(2)
		}
	}
	currency := models.Currency(strings.ToLower(strings.TrimSpace(offer.CurrencyType)))
	if !currency.Valid() {
		currency = models.CurrencyCash
	}
	approved := IsApprovedStatus(in.Status)
	status := models.EventStatusPending
	if approved {
		status = models.EventStatusApproved
	}

	var credit *Movement
	err := db.Transaction(func(tx *gorm.DB) error {
		event := models.OfferEvent{
			ClickID:      clickID,
			EventName:    eventName,
			OfferID:      offer.ID,
			UserID:       click.UserID,
			Payout:       payout,
			CurrencyType: string(currency),
			Status:       status,
			PostbackData: raw,
			IPAddress:    in.IPAddress,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "click_id"}, {Name: "event_name"}},
			DoNothing: true,
		}).Create(&event)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDuplicate
		}
		if !approved {
			return nil
		}

		if payout.IsPositive() {
			var err error
			credit, err = s.Ledger.CreditTx(tx, Entry{
				UserID:      click.UserID,
				Currency:    currency,
				Amount:      payout,
				Kind:        models.KindOfferReward,
				Description: "Offer completed: " + offer.Name,
				OfferID:     &offer.ID,
				EventID:     &event.ID,
			})
			if err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		return tx.Model(&models.OfferClick{}).
			Where("click_id = ? AND status = ?", clickID, models.ClickStatusClicked).
			Updates(map[string]any{"status": models.ClickStatusCompleted, "completed_at": now}).Error
	})
	if errors.Is(err, ErrDuplicate) {
		return resultDuplicate
	}
	if err != nil {
		logger.WithError(err).Error("Postback transaction failed")
		return resultInternal
	}

	if credit != nil && s.Referrals != nil {
		if err := s.Referrals.OnQualifyingEarning(ctx, click.UserID, payout); err != nil {
			logger.WithError(err).WithField("user_id", click.UserID).Warn("Referral commission not paid")
		}
	}

	res := postbackResult(PostbackSuccess, "OK")
	res.Approved = approved
	res.Credit = credit
	return res
}
