package models

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes storefront customers from back-office staff.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is a registered account. Username mirrors the email for self-registered users.
type User struct {
	BaseModel
	Username        string     `gorm:"size:255;uniqueIndex;not null" json:"username"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone           string     `gorm:"size:32;index" json:"phone"`
	FullName        string     `gorm:"size:255" json:"full_name"`
	PasswordHash    string     `json:"-"`
	IsEmailVerified bool       `json:"is_email_verified"`
	Role            Role       `gorm:"size:16;not null;default:customer" json:"role"`
	LastLoginAt     *time.Time `json:"last_login_at"`
}

// IsAdmin reports whether the account carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// OTPPurpose scopes a one-time code to the flow that issued it.
type OTPPurpose string

const (
	OTPRegistration   OTPPurpose = "registration"
	OTPForgotPassword OTPPurpose = "forgot_password"
)

// Valid reports whether p is a known purpose.
func (p OTPPurpose) Valid() bool {
	return p == OTPRegistration || p == OTPForgotPassword
}

// MaxOTPAttempts is how many wrong guesses burn a code.
const MaxOTPAttempts = 5

// OTP is a six digit code emailed to a user. Single use and time-boxed.
type OTP struct {
	BaseModel
	Email     string     `gorm:"size:255;index:idx_otp_lookup" json:"email"`
	Code      string     `gorm:"size:6;index:idx_otp_lookup" json:"-"`
	Purpose   OTPPurpose `gorm:"size:32;index:idx_otp_lookup" json:"purpose"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
}

// Usable reports whether the code is unconsumed, unexpired at now and has
// guesses left.
func (o OTP) Usable(now time.Time) bool {
	return o.UsedAt == nil && o.Attempts < MaxOTPAttempts && now.Before(o.ExpiresAt)
}

// PendingRegistration holds sign-up details until the email is verified.
type PendingRegistration struct {
	BaseModel
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	FullName     string `gorm:"size:255"`
	Phone        string `gorm:"size:32"`
	PasswordHash string
}

// Wishlist links a user to a saved product.
type Wishlist struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wishlist_user_product;not null" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wishlist_user_product;not null" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
}
