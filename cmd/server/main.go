package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/hairnova/internal/config"
	"github.com/example/hairnova/internal/database"
	"github.com/example/hairnova/internal/handlers"
	"github.com/example/hairnova/internal/logger"
	"github.com/example/hairnova/internal/middleware"
	"github.com/example/hairnova/internal/routes"
	"github.com/example/hairnova/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.FromConfig(cfg))
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.EnsureAdmin(db, cfg.AdminEmail, cfg.AdminPassword, log); err != nil {
		log.Fatal("bootstrap admin failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cancel()
		defer rdb.Close()
		log.Info("sessions stored in redis", zap.String("addr", cfg.RedisAddr))
	}

	images, err := services.NewImageStore(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("image storage setup failed", zap.Error(err))
	}
	if !cfg.StorageEnabled() {
		log.Warn("object storage not configured, image uploads are disabled")
	}

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log)
	mailer, err := services.NewMailer(cfg, log)
	if err != nil {
		log.Fatal("mailer setup failed", zap.Error(err))
	}
	email := services.NewEmailService(mailer, cfg.OTPTTL)
	limiter := middleware.NewRateLimiter(cfg.OTPRatePerMin, cfg.OTPRatePerMin)
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		AppName:      "HairNova API",
		ErrorHandler: handlers.ErrorHandler(log),
		BodyLimit:    20 << 20,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	routes.Register(app, routes.Deps{
		DB:       db,
		Config:   cfg,
		Log:      log,
		Sessions: routes.NewSessionStore(cfg, rdb),
		OTP:      services.NewOTPService(db, email, cfg.OTPTTL),
		Images:   images,
		Telegram: telegram,
		Limiter:  limiter,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("starting server", zap.String("port", cfg.AppPort), zap.String("env", cfg.Environment))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal("fiber.Listen error", zap.Error(err))
	}
}
