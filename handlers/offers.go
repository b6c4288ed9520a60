package handlers

import (
	"rewards-ledger/middleware"
	"rewards-ledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func SetupOfferRoutes(api fiber.Router, svc Services, userCtx fiber.Handler, log logrus.FieldLogger) {
	offers := api.Group("/offers", userCtx)

	offers.Get("/:offerId", func(c *fiber.Ctx) error {
		details, err := svc.Scratch.OfferDetails(c.UserContext(), c.Params("offerId"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(details)
	})

	offers.Post("/:offerId/click", func(c *fiber.Ctx) error {
		var req struct {
			DeviceID string `json:"device_id"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "Invalid request body")
			}
		}
		if req.DeviceID == "" {
			req.DeviceID = c.Get("X-Device-ID")
		}

		res, err := svc.Clicks.StartClick(c.UserContext(), services.StartClickInput{
			UserID:    middleware.UserID(c),
			OfferID:   c.Params("offerId"),
			DeviceID:  req.DeviceID,
			IPAddress: c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	scratch := api.Group("/scratch", userCtx)

	scratch.Get("/next", func(c *fiber.Ctx) error {
		offer, err := svc.Scratch.NextScratchable(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		if offer == nil {
			return c.JSON(fiber.Map{"offer": nil, "message": "No new offers available. Check back tomorrow!"})
		}
		return c.JSON(fiber.Map{"offer": offer})
	})

	scratch.Post("/:offerId/reveal", func(c *fiber.Ctx) error {
		res, err := svc.Scratch.RevealOffer(c.UserContext(), middleware.UserID(c), c.Params("offerId"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})
}
