package model

import (
	"time"

	"github.com/google/uuid"
)

// PasswordHistory is an archived password hash. Entries are never updated.
type PasswordHistory struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"userId" db:"user_id"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// PasswordResetToken binds a user to a single reset attempt
type PasswordResetToken struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	Token     string     `json:"-" db:"token"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	Used      bool       `json:"used" db:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty" db:"used_at"`
	IPAddress string     `json:"ipAddress" db:"ip_address"`
	UserAgent string     `json:"userAgent" db:"user_agent"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// IsUsable reports whether the token may still be redeemed at now
func (t *PasswordResetToken) IsUsable(now time.Time) bool {
	return !t.Used && t.ExpiresAt.After(now)
}

// Password request types
type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,max=128"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ConfirmResetPasswordRequest struct {
	Token           string `json:"token" binding:"required,len=64,hexadecimal"`
	NewPassword     string `json:"newPassword" binding:"required,max=128"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// ValidatePasswordRequest carries optional identity hints for forms where the
// caller is not yet authenticated (registration).
type ValidatePasswordRequest struct {
	Password string `json:"password" binding:"required,max=256"`
	Username string `json:"username" binding:"omitempty,max=64"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// Password response types
type ChangePasswordResponse struct {
	ChangedAt     time.Time `json:"changedAt"`
	ForceLogout   bool      `json:"forceLogout"`
	StrengthScore int       `json:"strengthScore"`
}

type ResetPasswordResponse struct {
	Email      string    `json:"email"`
	ExpiresIn  int       `json:"expiresIn"`
	SentAt     time.Time `json:"sentAt"`
	PreviewURL string    `json:"previewUrl,omitempty"`
}

type ConfirmResetPasswordResponse struct {
	ResetAt       time.Time `json:"resetAt"`
	ForceLogout   bool      `json:"forceLogout"`
	StrengthScore int       `json:"strengthScore"`
}

type PasswordPolicy struct {
	MinLength               int  `json:"minLength"`
	MaxLength               int  `json:"maxLength"`
	RequireUppercase        bool `json:"requireUppercase"`
	RequireLowercase        bool `json:"requireLowercase"`
	RequireNumbers          bool `json:"requireNumbers"`
	RequireSpecialChars     bool `json:"requireSpecialChars"`
	MinScore                int  `json:"minScore"`
	MaxHistoryCount         int  `json:"maxHistoryCount"`
	MaxDailyChanges         int  `json:"maxDailyChanges"`
	ResetTokenExpiry        int  `json:"resetTokenExpiry"`
	MaxResetAttemptsPerHour int  `json:"maxResetAttemptsPerHour"`
}

// RateLimitDetails is attached to RATE_LIMITED responses
type RateLimitDetails struct {
	NextAllowedTime *time.Time `json:"nextAllowedTime,omitempty"`
}
