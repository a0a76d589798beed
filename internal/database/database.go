package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/hairnova/internal/config"
	"github.com/example/hairnova/internal/logger"
	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/utils"
)

// Connect opens the database named by cfg.DatabaseURL, creating the Postgres
// database when missing, and runs migrations. A sqlite: URL opens a local file,
// which is handy for development.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.NewSQLLogger(log, logger.GormLevel(cfg.LogLevel), 200*time.Millisecond),
	}

	var (
		conn *gorm.DB
		err  error
	)
	if path, ok := strings.CutPrefix(cfg.DatabaseURL, "sqlite:"); ok {
		conn, err = gorm.Open(sqlite.Open(path), gormCfg)
	} else {
		if err := ensureDatabase(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("ensure database: %w", err)
		}
		conn, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

// OpenInMemory returns a migrated in-memory SQLite database. The pool is pinned to
// one connection because every SQLite memory connection is a separate database.
func OpenInMemory() (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate creates or updates every table.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.User{},
		&models.OTP{},
		&models.PendingRegistration{},
		&models.Category{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Wishlist{},
		&models.Review{},
	)
}

// EnsureAdmin creates the bootstrap admin account, or promotes an existing account
// with that email. It does nothing when no email is configured.
func EnsureAdmin(conn *gorm.DB, email, password string, log *zap.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	var user models.User
	err := conn.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.IsAdmin() {
			return nil
		}
		log.Info("promoting bootstrap admin", zap.String("email", email))
		return conn.Model(&user).Update("role", models.RoleAdmin).Error
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	if len(password) < utils.MinPasswordLength {
		return fmt.Errorf("ADMIN_PASSWORD must be at least %d characters", utils.MinPasswordLength)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	log.Info("creating bootstrap admin", zap.String("email", email))
	return conn.Create(&models.User{
		Username:        email,
		Email:           email,
		FullName:        "Administrator",
		PasswordHash:    hash,
		IsEmailVerified: true,
		Role:            models.RoleAdmin,
	}).Error
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	sqlDB, err := sql.Open("postgres", parsed.String())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
