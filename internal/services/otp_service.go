package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/utils"
)

var ErrOTPInvalid = errors.New("invalid or expired verification code")

// OTPService issues and consumes one-time codes.
type OTPService struct {
	db    *gorm.DB
	email *EmailService
	ttl   time.Duration
	now   func() time.Time
}

// NewOTPService creates an OTPService with codes valid for ttl.
func NewOTPService(db *gorm.DB, email *EmailService, ttl time.Duration) *OTPService {
	return &OTPService{db: db, email: email, ttl: ttl, now: time.Now}
}

// Issue expires earlier unused codes for the address, stores a fresh one and emails it.
func (s *OTPService) Issue(email, name string, purpose models.OTPPurpose) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code, err := utils.GenerateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	now := s.now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OTP{}).
			Where("email = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?", email, purpose, now).
			Update("expires_at", now).Error; err != nil {
			return err
		}
		return tx.Create(&models.OTP{
			Email:     email,
			Code:      code,
			Purpose:   purpose,
			ExpiresAt: now.Add(s.ttl),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	return s.email.SendOTP(email, name, code, purpose)
}

// Consume marks the newest matching usable code as used within tx.
func (s *OTPService) Consume(tx *gorm.DB, email, code string, purpose models.OTPPurpose) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrOTPInvalid
	}

	now := s.now()
	var otp models.OTP
	err := tx.Where("email = ? AND code = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?", email, code, purpose, now).
		Order("created_at desc").
		First(&otp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOTPInvalid
	}
	if err != nil {
		return err
	}
	if !otp.Usable(now) {
		return ErrOTPInvalid
	}

	// guarded update so two concurrent requests cannot both consume the code
	res := tx.Model(&models.OTP{}).Where("id = ? AND used_at IS NULL AND attempts < ?", otp.ID, models.MaxOTPAttempts).Update("used_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOTPInvalid
	}
	return nil
}

// RecordFailure counts a wrong guess against the live code for email and
// purpose. The code expires once it reaches models.MaxOTPAttempts. Call it
// outside the transaction that ran Consume.
func (s *OTPService) RecordFailure(email string, purpose models.OTPPurpose) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	now := s.now()
	live := s.db.Model(&models.OTP{}).
		Where("email = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?", email, purpose, now).
		Session(&gorm.Session{})
	if err := live.Update("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
		return fmt.Errorf("record otp failure: %w", err)
	}
	if err := live.Where("attempts >= ?", models.MaxOTPAttempts).
		Update("expires_at", now).Error; err != nil {
		return fmt.Errorf("expire otp: %w", err)
	}
	return nil
}
