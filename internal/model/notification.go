package model

import (
	"time"
)

type PasswordEventType string

const (
	PasswordEventChanged        PasswordEventType = "password.changed"
	PasswordEventResetRequested PasswordEventType = "password.reset_requested"
)

// PasswordEvent is the queued form of an outgoing notification
type PasswordEvent struct {
	Type       PasswordEventType `json:"type"`
	Email      string            `json:"email"`
	Username   string            `json:"username"`
	IPAddress  string            `json:"ipAddress,omitempty"`
	Token      string            `json:"token,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}
