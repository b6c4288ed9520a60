package handlers

import (
	"rewards-ledger/middleware"
	"rewards-ledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Users     *services.UserService
	Ledger    *services.LedgerService
	Wallet    *services.WalletService
	Clicks    *services.ClickService
	Postbacks *services.PostbackService
	Referrals *services.ReferralService
	Scratch   *services.ScratchService
	Settings  *services.SettingsService
	Analytics *services.AnalyticsService
}

// SetupRoutes mounts everything under /api behind the gateway token. /postback is mounted separately.
func SetupRoutes(app *fiber.App, svc Services, serviceToken string, log logrus.FieldLogger) {
	api := app.Group("/api", middleware.GatewayAuthMiddleware(serviceToken, log))
	userCtx := middleware.UserContextMiddleware(log)

	SetupUserRoutes(api, svc, userCtx, log)
	SetupOfferRoutes(api, svc, userCtx, log)
	SetupWalletRoutes(api, svc, userCtx, log)

	admin := api.Group("/admin", userCtx, middleware.RequireRole(middleware.RoleAdmin))
	SetupAdminRoutes(admin, svc, log)
}
