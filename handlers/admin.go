package handlers

import (
	"strconv"
	"time"

	"rewards-ledger/models"
	"rewards-ledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// parseTime accepts RFC3339 or a bare YYYY-MM-DD (UTC midnight).
func parseTime(v string) (*time.Time, bool) {
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

func SetupAdminRoutes(admin fiber.Router, svc Services, log logrus.FieldLogger) {
	admin.Get("/users/search", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		users, err := svc.Users.Search(c.UserContext(), c.Query("q"), limit)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(users)
	})

	admin.Post("/wallets/:userId/adjust", func(c *fiber.Ctx) error {
		var req struct {
			Currency models.Currency `json:"currency"`
			Amount   decimal.Decimal `json:"amount"`
			Note     string          `json:"note"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if req.Currency == "" {
			req.Currency = models.CurrencyCash
		}
		movement, err := svc.Wallet.AdminAdjust(c.UserContext(), c.Params("userId"), req.Currency, req.Amount, req.Note)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(movement)
	})

	admin.Post("/wallets/:userId/reconcile", func(c *fiber.Ctx) error {
		balances, err := svc.Ledger.Reconcile(c.UserContext(), c.Params("userId"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"user_id": c.Params("userId"), "balances": balances})
	})

	admin.Get("/postback-logs", func(c *fiber.Ctx) error {
		from, ok := parseTime(c.Query("from"))
		if !ok {
			return badRequest(c, "Invalid from")
		}
		to, ok := parseTime(c.Query("to"))
		if !ok {
			return badRequest(c, "Invalid to")
		}
		limit, _ := strconv.Atoi(c.Query("limit", "100"))
		logs, err := svc.Analytics.PostbackLogs(c.UserContext(), services.PostbackLogFilter{
			Status:  c.Query("status"),
			OfferID: c.Query("offer_id"),
			From:    from,
			To:      to,
			Limit:   limit,
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"logs": logs})
	})

	admin.Get("/analytics/conversions", func(c *fiber.Ctx) error {
		rows, err := svc.Analytics.Conversions(c.UserContext(), c.Query("offer_id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"conversions": rows})
	})

	admin.Get("/analytics/revenue", func(c *fiber.Ctx) error {
		now := time.Now().UTC()
		from, ok := parseTime(c.Query("from"))
		if !ok {
			return badRequest(c, "Invalid from")
		}
		to, ok := parseTime(c.Query("to"))
		if !ok {
			return badRequest(c, "Invalid to")
		}
		if from == nil {
			d := now.AddDate(0, 0, -30)
			from = &d
		}
		if to == nil {
			to = &now
		}
		rows, err := svc.Analytics.Revenue(c.UserContext(), *from, *to)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"revenue": rows})
	})

	admin.Get("/suspicious", func(c *fiber.Ctx) error {
		rows, err := svc.Analytics.Suspicious(c.UserContext())
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"users": rows})
	})

	admin.Put("/devices/:deviceId/suspicious", func(c *fiber.Ctx) error {
		var req struct {
			Notes string `json:"notes"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "Invalid request body")
			}
		}
		if err := svc.Analytics.MarkDeviceSuspicious(c.UserContext(), c.Params("deviceId"), req.Notes); err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	admin.Get("/withdrawals", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "100"))
		rows, err := svc.Wallet.ListWithdrawals(c.UserContext(), c.Query("status"), limit)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"withdrawals": rows})
	})

	admin.Put("/withdrawals/:id", func(c *fiber.Ctx) error {
		var req struct {
			Status models.WithdrawalStatus `json:"status"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		w, err := svc.Wallet.ResolveWithdrawal(c.UserContext(), c.Params("id"), req.Status)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(w)
	})

	admin.Get("/settings", func(c *fiber.Ctx) error {
		rows, err := svc.Settings.List(c.UserContext())
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"settings": rows})
	})

	admin.Put("/settings", func(c *fiber.Ctx) error {
		var req struct {
			Settings map[string]string `json:"settings"`
		}
		if err := c.BodyParser(&req); err != nil || len(req.Settings) == 0 {
			return badRequest(c, "settings map is required")
		}
		updated := make([]*models.AppSetting, 0, len(req.Settings))
		for k, v := range req.Settings {
			row, err := svc.Settings.Upsert(c.UserContext(), k, v)
			if err != nil {
				return respondError(c, log, err)
			}
			updated = append(updated, row)
		}
		return c.JSON(fiber.Map{"settings": updated})
	})
}
