package handlers

import (
	"errors"

	"rewards-ledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// respondError maps service errors onto {"error", "code"} bodies.
func respondError(c *fiber.Ctx, log logrus.FieldLogger, err error) error {
	status, code := fiber.StatusInternalServerError, "internal_error"
	msg := "internal server error"

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status, code, msg = fiber.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, services.ErrInvalidAmount):
		status, code, msg = fiber.StatusBadRequest, "invalid_amount", err.Error()
	case errors.Is(err, services.ErrInsufficientBalance):
		status, code, msg = fiber.StatusBadRequest, "insufficient_balance", err.Error()
	case errors.Is(err, services.ErrNoSpins):
		status, code, msg = fiber.StatusBadRequest, "no_spins", err.Error()
	case errors.Is(err, services.ErrNotFound):
		status, code, msg = fiber.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, services.ErrDeviceMismatch):
		status, code = fiber.StatusForbidden, "device_mismatch"
		msg = "This device is already registered with another account. Multiple accounts are not allowed."
	case errors.Is(err, services.ErrConflict):
		status, code, msg = fiber.StatusConflict, "conflict", err.Error()
	case errors.Is(err, services.ErrAlreadyCheckedIn):
		status, code, msg = fiber.StatusConflict, "already_checked_in", err.Error()
	case errors.Is(err, services.ErrDuplicate):
		status, code, msg = fiber.StatusConflict, "duplicate", err.Error()
	default:
		log.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}

	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": "invalid_input"})
}
