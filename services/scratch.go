package services

import (
	"context"
	"errors"
	"strings"

	"rewards-ledger/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScratchService controls which offers a user has already uncovered. It never pays out.
type ScratchService struct {
	DB *gorm.DB
}

func NewScratchService(db *gorm.DB) *ScratchService {
	return &ScratchService{DB: db}
}

type RevealResult struct {
	AlreadyRevealed bool          `json:"already_revealed"`
	Offer           *OfferDetails `json:"offer,omitempty"`
}

type OfferDetails struct {
	models.Offer
	Steps []string `json:"steps"`
}

// RevealOffer records the reveal once; later calls report AlreadyRevealed without side effects.
func (s *ScratchService) RevealOffer(ctx context.Context, userID, offerID string) (*RevealResult, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(offerID) == "" {
		return nil, ErrInvalidInput
	}
	if err := checkIDs(userID, offerID); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	details, err := s.OfferDetails(ctx, offerID)
	if err != nil {
		return nil, err
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "offer_id"}},
		DoNothing: true,
	}).Create(&models.ScratchedOffer{UserID: userID, OfferID: offerID})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &RevealResult{AlreadyRevealed: true}, nil
	}
	return &RevealResult{Offer: details}, nil
}

// NextScratchable picks a random active offer the user has not revealed yet. Nil when none is left.
func (s *ScratchService) NextScratchable(ctx context.Context, userID string) (*models.Offer, error) {
	if err := checkIDs(userID); err != nil {
		return nil, err
	}
	var offer models.Offer
	err := s.DB.WithContext(ctx).
		Where("LOWER(status) = ?", "active").
		Where("id NOT IN (?)", s.DB.Model(&models.ScratchedOffer{}).Select("offer_id").Where("user_id = ?", userID)).
		Order("RANDOM()").
		Take(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (s *ScratchService) OfferDetails(ctx context.Context, offerID string) (*OfferDetails, error) {
	if err := checkIDs(offerID); err != nil {
		return nil, err
	}
	var offer models.Offer
	if err := s.DB.WithContext(ctx).Take(&offer, "id = ?", offerID).Error; err != nil {
		return nil, notFound(err)
	}
	return &OfferDetails{Offer: offer, Steps: OfferSteps(offer)}, nil
}

// OfferSteps renders the completion instructions shown next to an offer.
func OfferSteps(offer models.Offer) []string {
	task := offer.EventName
	if task == "" {
		task = "the required task"
	}
	reward := offer.Amount.StringFixed(2) + " " + strings.ToLower(offer.CurrencyType)
	if offer.Description != "" {
		return []string{
			`Tap "Start Offer"`,
			offer.Description,
			"Complete: " + task,
			"Rewards are credited within 5-10 minutes",
			"Earn " + reward,
		}
	}
	return []string{
		`Tap "Start Offer"`,
		"You will be redirected to the advertiser",
		"Complete: " + task,
		"Wait 5-10 minutes for verification",
		"Get " + reward + " credited to your wallet",
	}
}
