package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/config"
	"github.com/example/hairnova/internal/middleware"
	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/services"
	"github.com/example/hairnova/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
	otp *services.OTPService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, otp *services.OTPService) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, otp: otp}
}

var errEmailNotVerified = fiber.NewError(fiber.StatusForbidden, "email address not verified")

type registerRequest struct {
	FullName        string `json:"full_name" validate:"required,max=255"`
	Phone           string `json:"phone" validate:"required,max=32"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Register stores the sign-up details and emails a verification code. The account
// is only created once the code is verified.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	email := normalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)

	if err := h.ensureUnique(h.db, email, phone); err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return err
	}

	pending := models.PendingRegistration{Email: email}
	if err := h.db.Where("email = ?", email).
		Assign(models.PendingRegistration{FullName: strings.TrimSpace(req.FullName), Phone: phone, PasswordHash: hash}).
		FirstOrCreate(&pending).Error; err != nil {
		return err
	}

	if err := h.otp.Issue(email, pending.FullName, models.OTPRegistration); err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "verification code sent",
		"email":   email,
	})
}

func (h *AuthHandler) ensureUnique(tx *gorm.DB, email, phone string) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ? OR username = ?", email, email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}

	if phone == "" {
		return nil
	}
	if err := tx.Model(&models.User{}).Where("phone = ?", phone).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "phone number already registered")
	}
	return nil
}

type verifyOTPRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Code            string `json:"code" validate:"required,len=6,numeric"`
	Purpose         string `json:"purpose" validate:"omitempty,oneof=registration forgot_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// VerifyOTP completes a registration, or a password reset when purpose is
// forgot_password.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if models.OTPPurpose(req.Purpose) == models.OTPForgotPassword {
		return h.resetPassword(c, normalizeEmail(req.Email), req.Code, req.NewPassword, req.ConfirmPassword)
	}
	return h.completeRegistration(c, normalizeEmail(req.Email), req.Code)
}

func (h *AuthHandler) completeRegistration(c *fiber.Ctx, email, code string) error {
	var user models.User
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := h.otp.Consume(tx, email, code, models.OTPRegistration); err != nil {
			return err
		}

		var pending models.PendingRegistration
		if err := tx.Where("email = ?", email).First(&pending).Error; err != nil {
			return notFound(err, "registration")
		}
		if err := h.ensureUnique(tx, email, pending.Phone); err != nil {
			return err
		}

		user = models.User{
			Username:        email,
			Email:           email,
			Phone:           pending.Phone,
			FullName:        pending.FullName,
			PasswordHash:    pending.PasswordHash,
			IsEmailVerified: true,
			Role:            models.RoleCustomer,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Delete(&pending).Error
	})
	if errors.Is(err, services.ErrOTPInvalid) {
		return h.rejectCode(email, models.OTPRegistration)
	}
	if err != nil {
		return err
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.Role), h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

type resendOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=registration forgot_password"`
}

// ResendOTP issues a fresh code for a pending registration or password reset.
func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req resendOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	email := normalizeEmail(req.Email)
	purpose := models.OTPPurpose(req.Purpose)
	if purpose == "" {
		purpose = models.OTPRegistration
	}

	var name string
	if purpose == models.OTPRegistration {
		var pending models.PendingRegistration
		if err := h.db.Where("email = ?", email).First(&pending).Error; err != nil {
			return notFound(err, "registration")
		}
		name = pending.FullName
	} else {
		var user models.User
		if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
			return notFound(err, "user")
		}
		name = user.FullName
	}

	if err := h.otp.Issue(email, name, purpose); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "verification code sent"})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates a verified account by email or username.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	login := normalizeEmail(req.Email)

	var user models.User
	if err := h.db.Where("email = ? OR username = ?", login, login).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	if !user.IsEmailVerified {
		return errEmailNotVerified
	}

	now := time.Now()
	if err := h.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		return err
	}
	user.LastLoginAt = &now

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.Role), h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

// Me returns the signed-in account. When the role changed since the token was
// issued a fresh token is included.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		return err
	}

	resp := fiber.Map{"success": true, "user": user}
	if middleware.GetCurrentUserRole(c) != string(user.Role) {
		token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.Role), h.cfg.TokenExpires)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
		}
		resp["token"] = token
	}
	return c.JSON(resp)
}

type forgotPasswordRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

func (h *AuthHandler) findByIdentifier(identifier string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	query := h.db.Where("phone = ?", identifier)
	if strings.Contains(identifier, "@") {
		query = h.db.Where("email = ?", normalizeEmail(identifier))
	}

	var user models.User
	if err := query.First(&user).Error; err != nil {
		return user, notFound(err, "user")
	}
	return user, nil
}

// ForgotPassword emails a reset code to the account found by email or phone.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.findByIdentifier(req.Identifier)
	if err != nil {
		return err
	}

	if err := h.otp.Issue(user.Email, user.FullName, models.OTPForgotPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "password reset code sent",
		"email":   user.Email,
	})
}

type resetPasswordRequest struct {
	Identifier      string `json:"identifier" validate:"required"`
	Code            string `json:"code" validate:"required,len=6,numeric"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// ResetPassword sets a new password using a forgot-password code.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.findByIdentifier(req.Identifier)
	if err != nil {
		return err
	}
	return h.resetPassword(c, user.Email, req.Code, req.NewPassword, req.ConfirmPassword)
}

func (h *AuthHandler) resetPassword(c *fiber.Ctx, email, code, password, confirm string) error {
	if len(password) < utils.MinPasswordLength {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "password must be at least 6 characters")
	}
	if password != confirm {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "passwords do not match")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := h.otp.Consume(tx, email, code, models.OTPForgotPassword); err != nil {
			return err
		}
		res := tx.Model(&models.User{}).Where("email = ?", email).Update("password_hash", hash)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return nil
	})
	if errors.Is(err, services.ErrOTPInvalid) {
		return h.rejectCode(email, models.OTPForgotPassword)
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "password updated"})
}

// rejectCode counts a failed verification and answers 400.
func (h *AuthHandler) rejectCode(email string, purpose models.OTPPurpose) error {
	if err := h.otp.RecordFailure(email, purpose); err != nil {
		return err
	}
	return fiber.NewError(fiber.StatusBadRequest, services.ErrOTPInvalid.Error())
}
