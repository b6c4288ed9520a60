package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rewards-ledger/config"
	"rewards-ledger/handlers"
	"rewards-ledger/logging"
	"rewards-ledger/models"
	"rewards-ledger/monitoring"
	"rewards-ledger/services"
	"rewards-ledger/utils"
	"rewards-ledger/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	bootLog := logging.New("rewards-ledger", config.GetLogLevel())
	config.LoadEnv(bootLog)

	cfg, err := config.Load()
	if err != nil {
		bootLog.WithError(err).Fatal("Invalid configuration")
	}
	log := logging.New("rewards-ledger", cfg.LogLevel)

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settingsService := services.NewSettingsService(db)
	if err := settingsService.Seed(ctx); err != nil {
		log.WithError(err).Fatal("failed to seed app settings")
	}

	ledgerService := services.NewLedgerService(db, log.WithField("component", "ledger"))
	referralService := services.NewReferralService(db, log.WithField("component", "referrals"), ledgerService, settingsService)
	walletService := services.NewWalletService(db, log.WithField("component", "wallet"), ledgerService, settingsService)
	svc := handlers.Services{
		Users:     services.NewUserService(db, log.WithField("component", "users"), settingsService, walletService, referralService),
		Ledger:    ledgerService,
		Wallet:    walletService,
		Clicks:    services.NewClickService(db, log.WithField("component", "clicks")),
		Postbacks: services.NewPostbackService(db, log.WithField("component", "postback"), ledgerService, referralService),
		Referrals: referralService,
		Scratch:   services.NewScratchService(db),
		Settings:  settingsService,
		Analytics: services.NewAnalyticsService(db),
	}

	reconcileWorker := workers.NewReconcileWorker(db, ledgerService, log.WithField("component", "reconcile"), cfg.ReconcileInterval, cfg.ReconcileBatchSize)
	go reconcileWorker.Start(ctx)

	if cfg.ArchiveEnabled {
		store, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize R2 client")
		}
		archiver := services.NewArchiveService(db, log.WithField("component", "archive"), store, cfg.ArchivePrefix)
		sched, err := archiver.StartArchiveScheduler(ctx)
		if err != nil {
			log.WithError(err).Fatal("failed to start archive scheduler")
		}
		defer func() { _ = sched.Shutdown() }()
	}

	app := fiber.New(fiber.Config{
		AppName: "rewards-ledger",
	})
	app.Use(recover.New())
	app.Use(monitoring.Middleware())

	origins := strings.Split(cfg.AllowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, X-User-ID, X-User-Roles, X-Device-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.SetupPostbackRoutes(app, svc.Postbacks)
	handlers.SetupRoutes(app, svc, cfg.ServiceToken, log)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Error("Server error")
		}
	}()

	log.WithField("port", cfg.Port).Info("Server running")
	log.WithField("interval", cfg.ReconcileInterval.String()).Info("Wallet reconcile worker running")
	if cfg.ArchiveEnabled {
		log.WithField("prefix", cfg.ArchivePrefix).Info("Postback log archive scheduled nightly at 00:15 UTC")
	}

	<-ctx.Done()
	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server shutdown incomplete")
	}
}
