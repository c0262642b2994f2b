package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/twelve20/pir-planet-new/external/midtrans"
	"github.com/twelve20/pir-planet-new/external/telegram"

	"github.com/twelve20/pir-planet-new/internal/config"
	"github.com/twelve20/pir-planet-new/internal/db"
	"github.com/twelve20/pir-planet-new/internal/repository"
	"github.com/twelve20/pir-planet-new/internal/services"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	// ======================
	// INFRA
	// ======================
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connect")
	}
	defer pool.Close()

	if err := db.InitSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("database schema")
	}

	// ======================
	// EXTERNALS
	// ======================
	var notifier services.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifier, err = telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		logger.Info().Msg("telegram notifications enabled")
	} else {
		notifier = services.NoopNotifier{}
		logger.Warn().Msg("telegram not configured, notifications disabled")
	}

	snapClient := midtrans.NewSnapClient()

	// ======================
	// REPOSITORIES
	// ======================
	orderRepo := repository.NewOrderRepository(pool)
	authRepo := repository.NewAuthRepository(pool)

	// ======================
	// SERVICES
	// ======================
	orderSvc := services.NewOrderService(orderRepo, notifier, logger)
	leadSvc := services.NewLeadService(notifier, logger)
	authSvc := services.NewAuthService(authRepo)
	paymentSvc := services.NewPaymentService(orderSvc, snapClient)

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			logger.Fatal().Err(err).Msg("ensure admin account")
		}
	}

	// ======================
	// ECHO
	// ======================
	e := echo.New()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	api := e.Group("/api")

	// ======================
	// ROUTES (ONLY REGISTRATION)
	// ======================
	registerOrderRoutes(api, orderSvc)
	registerLeadRoutes(api, leadSvc)
	registerAuthRoutes(api, authSvc)
	registerPaymentRoutes(api, paymentSvc)

	api.GET("/status", func(c echo.Context) error {
		_, telegramOn := notifier.(*telegram.Notifier)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"telegram":  telegramOn,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Storefront pages and the admin panel are plain static files.
	e.Static("/", cfg.StaticDir)

	// ======================
	// SERVER
	// ======================
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
