package handlers

import (
	"strconv"

	"rewards-ledger/middleware"
	"rewards-ledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func SetupUserRoutes(api fiber.Router, svc Services, userCtx fiber.Handler, log logrus.FieldLogger) {
	api.Post("/users/login", func(c *fiber.Ctx) error {
		var req struct {
			GoogleID     string `json:"google_id"`
			Email        string `json:"email"`
			Name         string `json:"name"`
			ProfilePic   string `json:"profile_pic"`
			DeviceID     string `json:"device_id"`
			ReferralCode string `json:"referral_code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if req.DeviceID == "" {
			req.DeviceID = c.Get("X-Device-ID")
		}

		res, err := svc.Users.Login(c.UserContext(), services.LoginInput{
			GoogleID:     req.GoogleID,
			Email:        req.Email,
			Name:         req.Name,
			ProfilePic:   req.ProfilePic,
			DeviceID:     req.DeviceID,
			ReferralCode: req.ReferralCode,
		})
		if err != nil {
			return respondError(c, log, err)
		}
		status := fiber.StatusOK
		if res.Created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(res)
	})

	me := api.Group("/me", userCtx)

	me.Get("/", func(c *fiber.Ctx) error {
		user, err := svc.Users.Profile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(user)
	})

	me.Get("/wallet", func(c *fiber.Ctx) error {
		info, err := svc.Wallet.Info(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(info)
	})

	me.Get("/transactions", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		rows, err := svc.Ledger.Transactions(c.UserContext(), middleware.UserID(c), limit)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"transactions": rows})
	})

	me.Get("/clicks", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		rows, err := svc.Clicks.ClickHistory(c.UserContext(), middleware.UserID(c), limit)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"clicks": rows})
	})

	me.Get("/referrals", func(c *fiber.Ctx) error {
		stats, err := svc.Referrals.Stats(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(stats)
	})
}
