package password

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nbutton23/zxcvbn-go"
	"github.com/rs/zerolog/log"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
	apperrors "github.com/yupeng0512/user-management/pkg/errors"
	"github.com/yupeng0512/user-management/pkg/metrics"
	"github.com/yupeng0512/user-management/pkg/security"
)

// Notifier delivers password notices. Implementations must not block the
// caller and must swallow their own delivery failures.
type Notifier interface {
	SendChangeNotice(ctx context.Context, email, username, ipAddress string)
	SendResetLink(ctx context.Context, email, token, username string)
}

// ValidationResult is the strength report returned by the validate endpoint
type ValidationResult struct {
	StrengthResult
	StrengthText  string `json:"strengthText"`
	StrengthColor string `json:"strengthColor"`
	CrackTime     string `json:"crackTime"`
}

type Option func(*Service)

// WithClock replaces time.Now for every component of the service
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithPolicy(policy Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithResetPreview makes reset initiation return the reset link in the
// response body. Only meant for non-production environments.
func WithResetPreview(frontendURL string) Option {
	return func(s *Service) {
		s.previewBaseURL = strings.TrimRight(frontendURL, "/")
	}
}

// Service orchestrates password change, reset and validation
type Service struct {
	users    repository.UserRepository
	hasher   security.PasswordHasher
	notifier Notifier
	history  *HistoryLedger
	guard    *FrequencyGuard
	tokens   *TokenStore

	policy         Policy
	metrics        *metrics.Metrics
	previewBaseURL string
	now            func() time.Time
}

func NewService(
	users repository.UserRepository,
	historyRepo repository.PasswordHistoryRepository,
	tokenRepo repository.ResetTokenRepository,
	attemptRepo repository.ResetAttemptRepository,
	hasher security.PasswordHasher,
	notifier Notifier,
	opts ...Option,
) *Service {
	s := &Service{
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		policy:   DefaultPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.history = NewHistoryLedger(historyRepo, hasher, s.policy, s.now)
	s.guard = NewFrequencyGuard(users, s.policy, s.now)
	s.tokens = NewTokenStore(tokenRepo, attemptRepo, s.policy, s.now)
	return s
}

func (s *Service) History() *HistoryLedger { return s.history }
func (s *Service) Guard() *FrequencyGuard  { return s.guard }
func (s *Service) Tokens() *TokenStore     { return s.tokens }

// ChangePassword replaces the password of an authenticated user. Checks run in
// order and the first failure is returned; nothing is written unless all pass.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req *model.ChangePasswordRequest, ipAddress string) (resp *model.ChangePasswordResponse, err error) {
	defer func() { s.metrics.ObservePasswordChange(err) }()

	if req.NewPassword != req.ConfirmPassword {
		return nil, apperrors.NewPasswordMismatch()
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", err)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := security.Matches(s.hasher, user.PasswordHash, req.OldPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to verify current password: %w", err)
	}
	if !ok {
		return nil, apperrors.NewInvalidCredentials("current password is incorrect")
	}

	decision, err := s.guard.CheckAllowed(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, apperrors.NewRateLimited(http.StatusForbidden, decision.Reason, model.RateLimitDetails{
			NextAllowedTime: decision.NextAllowedTime,
		})
	}

	strength := Score(req.NewPassword, user.Username, user.Email)
	s.metrics.ObserveStrength(strength.Score)
	if !strength.IsValid {
		return nil, apperrors.NewWeakPassword(strength)
	}

	if err := s.checkReuse(ctx, user, req.NewPassword); err != nil {
		return nil, err
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	changedAt := s.now()
	if err := s.history.Record(ctx, userID, user.PasswordHash); err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, userID, newHash, changedAt); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.guard.RecordChange(ctx, userID); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("ip", ipAddress).
		Msg("Password changed")

	s.notifier.SendChangeNotice(ctx, user.Email, user.Username, ipAddress)

	return &model.ChangePasswordResponse{
		ChangedAt:     changedAt,
		ForceLogout:   true,
		StrengthScore: strength.Score,
	}, nil
}

func (s *Service) checkReuse(ctx context.Context, user *model.User, plaintext string) error {
	same, err := security.Matches(s.hasher, user.PasswordHash, plaintext)
	if err != nil {
		return fmt.Errorf("failed to compare current password: %w", err)
	}
	if same {
		return apperrors.NewPasswordReused("new password must differ from the current password")
	}

	reused, err := s.history.Contains(ctx, user.ID, plaintext)
	if err != nil {
		return err
	}
	if reused {
		return apperrors.NewPasswordReused(fmt.Sprintf("new password must not match any of the last %d passwords", s.policy.HistoryDepth))
	}
	return nil
}

// InitiateReset issues a reset token and mails the link. The response is the
// same whether or not the email belongs to an account; only the rate limit of
// a known account is surfaced.
func (s *Service) InitiateReset(ctx context.Context, email, ipAddress, userAgent string) (*model.ResetPasswordResponse, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	resp := &model.ResetPasswordResponse{
		Email:     normalized,
		ExpiresIn: int(s.policy.ResetTokenTTL / time.Second),
		SentAt:    s.now(),
	}

	user, err := s.users.GetByEmail(ctx, normalized)
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.ObserveResetRequest("unknown_email")
		log.Info().Str("ip", ipAddress).Msg("Password reset requested for unknown email")
		return resp, nil
	}
	if err != nil {
		s.metrics.ObserveResetRequest("error")
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	allowed, err := s.tokens.CheckFrequency(ctx, user.ID)
	if err != nil {
		s.metrics.ObserveResetRequest("error")
		return nil, err
	}
	if !allowed {
		s.metrics.ObserveResetRequest("rate_limited")
		return nil, apperrors.NewRateLimited(http.StatusTooManyRequests,
			fmt.Sprintf("at most %d reset requests are allowed per hour", s.policy.MaxResetAttempts), nil)
	}

	token, err := s.tokens.Issue(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		s.metrics.ObserveResetRequest("error")
		return nil, err
	}
	s.metrics.ObserveResetRequest("issued")

	log.Info().
		Str("user_id", user.ID.String()).
		Str("ip", ipAddress).
		Time("expires_at", token.ExpiresAt).
		Msg("Password reset token issued")

	s.notifier.SendResetLink(ctx, user.Email, token.Token, user.Username)

	if s.previewBaseURL != "" {
		resp.PreviewURL = ResetLink(s.previewBaseURL, token.Token)
	}
	return resp, nil
}

// ConfirmReset sets a new password using a reset token. History is not
// consulted because the user has lost the current password.
func (s *Service) ConfirmReset(ctx context.Context, req *model.ConfirmResetPasswordRequest, ipAddress string) (resp *model.ConfirmResetPasswordResponse, err error) {
	defer func() { s.metrics.ObserveResetConfirm(err) }()

	if req.NewPassword != req.ConfirmPassword {
		return nil, apperrors.NewPasswordMismatch()
	}

	token, err := s.tokens.Validate(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperrors.NewInvalidToken()
	}

	user, err := s.users.Get(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidToken()
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	strength := Score(req.NewPassword, user.Username, user.Email)
	s.metrics.ObserveStrength(strength.Score)
	if !strength.IsValid {
		return nil, apperrors.NewWeakPassword(strength)
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// The validated token may have been redeemed by a concurrent request since.
	consumed, err := s.tokens.Consume(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if consumed == nil {
		return nil, apperrors.NewInvalidToken()
	}

	resetAt := s.now()
	if err := s.users.UpdatePassword(ctx, user.ID, newHash, resetAt); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	if _, err := s.tokens.DeleteUnused(ctx, user.ID); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("ip", ipAddress).
		Msg("Password reset completed")

	s.notifier.SendChangeNotice(ctx, user.Email, user.Username, ipAddress)

	return &model.ConfirmResetPasswordResponse{
		ResetAt:       resetAt,
		ForceLogout:   true,
		StrengthScore: strength.Score,
	}, nil
}

// ValidatePassword scores a password without touching any state
func (s *Service) ValidatePassword(password, username, email string) *ValidationResult {
	return Evaluate(password, username, email)
}

// Evaluate builds the full strength report for a candidate password
func Evaluate(password, username, email string) *ValidationResult {
	result := Score(password, username, email)

	var hints []string
	for _, h := range []string{username, email, emailLocalPart(email)} {
		if h != "" {
			hints = append(hints, h)
		}
	}
	estimate := zxcvbn.PasswordStrength(password, hints)

	return &ValidationResult{
		StrengthResult: result,
		StrengthText:   StrengthText(result.Strength),
		StrengthColor:  StrengthColor(result.Strength),
		CrackTime:      estimate.CrackTimeDisplay,
	}
}

func (s *Service) Policy() model.PasswordPolicy {
	return s.policy.Document()
}

// ResetLink builds the frontend URL a reset email points at
func ResetLink(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}
