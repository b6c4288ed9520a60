package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("already processed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConflict            = errors.New("concurrent update lost")
	ErrDeviceMismatch      = errors.New("device is bound to another account")
	ErrAlreadyCheckedIn    = errors.New("already checked in today")
	ErrNoSpins             = errors.New("no spins available")
)

// notFound maps gorm.ErrRecordNotFound onto ErrNotFound and passes anything else through.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// checkIDs reports ErrNotFound for any value that is not a canonical uuid, so malformed path
// parameters never reach a uuid column.
func checkIDs(ids ...string) error {
	for _, id := range ids {
		if len(id) != 36 {
			return ErrNotFound
		}
		if _, err := uuid.Parse(id); err != nil {
			return ErrNotFound
		}
	}
	return nil
}
