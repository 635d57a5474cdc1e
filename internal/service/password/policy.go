package password

import (
	"time"

	"github.com/yupeng0512/user-management/internal/config"
	"github.com/yupeng0512/user-management/internal/model"
)

// Policy holds the thresholds of the password lifecycle
type Policy struct {
	HistoryDepth       int
	HistoryRetention   time.Duration
	MaxDailyChanges    int
	ChangeWindow       time.Duration
	ResetTokenTTL      time.Duration
	MaxResetAttempts   int
	ResetWindow        time.Duration
	UsedTokenRetention time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		HistoryDepth:       5,
		HistoryRetention:   365 * 24 * time.Hour,
		MaxDailyChanges:    3,
		ChangeWindow:       24 * time.Hour,
		ResetTokenTTL:      30 * time.Minute,
		MaxResetAttempts:   3,
		ResetWindow:        time.Hour,
		UsedTokenRetention: 24 * time.Hour,
	}
}

// PolicyFromConfig overlays configured limits on the defaults
func PolicyFromConfig(cfg config.PasswordConfig) Policy {
	p := DefaultPolicy()
	if cfg.HistoryDepth > 0 {
		p.HistoryDepth = cfg.HistoryDepth
	}
	if cfg.HistoryRetentionDays > 0 {
		p.HistoryRetention = time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour
	}
	if cfg.MaxDailyChanges > 0 {
		p.MaxDailyChanges = cfg.MaxDailyChanges
	}
	if cfg.ResetTokenTTL > 0 {
		p.ResetTokenTTL = cfg.ResetTokenTTL
	}
	if cfg.MaxResetAttemptsPerHour > 0 {
		p.MaxResetAttempts = cfg.MaxResetAttemptsPerHour
	}
	return p
}

// Document is the public description served by the policy endpoint
func (p Policy) Document() model.PasswordPolicy {
	return model.PasswordPolicy{
		MinLength:               MinLength,
		MaxLength:               MaxLength,
		RequireUppercase:        true,
		RequireLowercase:        true,
		RequireNumbers:          true,
		RequireSpecialChars:     false,
		MinScore:                MinScore,
		MaxHistoryCount:         p.HistoryDepth,
		MaxDailyChanges:         p.MaxDailyChanges,
		ResetTokenExpiry:        int(p.ResetTokenTTL / time.Second),
		MaxResetAttemptsPerHour: p.MaxResetAttempts,
	}
}
