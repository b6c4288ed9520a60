package handlers

import (
	"time"

	"rewards-ledger/middleware"
	"rewards-ledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func SetupWalletRoutes(api fiber.Router, svc Services, userCtx fiber.Handler, log logrus.FieldLogger) {
	wallet := api.Group("/wallet", userCtx)

	wallet.Post("/withdraw", func(c *fiber.Ctx) error {
		var req struct {
			Amount  decimal.Decimal `json:"amount"`
			Method  string          `json:"method"`
			Details string          `json:"details"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		w, movement, err := svc.Wallet.RequestWithdrawal(c.UserContext(), services.WithdrawalInput{
			UserID:  middleware.UserID(c),
			Amount:  req.Amount,
			Method:  req.Method,
			Details: req.Details,
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message":    "Withdrawal request submitted successfully",
			"withdrawal": w,
			"movement":   movement,
		})
	})

	wallet.Post("/spin", func(c *fiber.Ctx) error {
		res, err := svc.Wallet.Spin(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	wallet.Post("/checkin", func(c *fiber.Ctx) error {
		movement, err := svc.Wallet.DailyCheckin(c.UserContext(), middleware.UserID(c), time.Now())
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"message": "Checked in", "movement": movement})
	})

	api.Get("/leaderboard", userCtx, func(c *fiber.Ctx) error {
		rows, err := svc.Wallet.Leaderboard(c.UserContext())
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"leaderboard": rows})
	})
}
