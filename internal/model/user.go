package model

import (
	"time"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// User role constants
const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)

// User represents a system user. PasswordHash, RefreshToken and the
// change-frequency counters are only written by the password service.
type User struct {
	Base
	Username               string     `json:"username" db:"username"`
	Email                  string     `json:"email" db:"email"`
	PasswordHash           string     `json:"-" db:"password_hash"`
	Role                   string     `json:"role" db:"role"`
	Status                 string     `json:"status" db:"status"`
	RefreshToken           *string    `json:"-" db:"refresh_token"`
	PasswordChangedAt      time.Time  `json:"passwordChangedAt" db:"password_changed_at"`
	PasswordChangeCount    int        `json:"-" db:"password_change_count"`
	LastPasswordChangeDate *time.Time `json:"-" db:"last_password_change_date"`
	LastLoginAt            *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
