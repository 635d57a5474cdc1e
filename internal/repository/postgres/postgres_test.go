package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return NewBaseRepository(sqlx.NewDb(db, "postgres")), mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

var tokenCols = []string{"id", "user_id", "token", "expires_at", "used", "used_at", "ip_address", "user_agent", "created_at"}

func TestResetTokenConsume(t *testing.T) {
	base, mock := newMock(t)
	repo := NewResetTokenRepository(base)
	userID := uuid.New()

	mock.ExpectQuery(q("UPDATE password_reset_tokens SET used = TRUE, used_at = $2 WHERE token = $1 AND used = FALSE AND expires_at > $2 RETURNING")).
		WithArgs("tok", now).
		WillReturnRows(sqlmock.NewRows(tokenCols).
			AddRow(uuid.New().String(), userID.String(), "tok", now.Add(10*time.Minute), true, now, "127.0.0.1", "curl", now.Add(-20*time.Minute)))

	got, err := repo.Consume(context.Background(), "tok", now)
	require.NoError(t, err)
	assert.True(t, got.Used)
	assert.Equal(t, userID, got.UserID)
	require.NotNil(t, got.UsedAt)
}

func TestResetTokenConsumeAlreadyUsed(t *testing.T) {
	base, mock := newMock(t)
	repo := NewResetTokenRepository(base)

	mock.ExpectQuery(q("UPDATE password_reset_tokens")).
		WithArgs("tok", now).
		WillReturnRows(sqlmock.NewRows(tokenCols))

	_, err := repo.Consume(context.Background(), "tok", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResetTokenGetUsableNotFound(t *testing.T) {
	base, mock := newMock(t)
	repo := NewResetTokenRepository(base)

	mock.ExpectQuery(q("FROM password_reset_tokens WHERE token = $1 AND used = FALSE AND expires_at > $2")).
		WithArgs("tok", now).
		WillReturnRows(sqlmock.NewRows(tokenCols))

	_, err := repo.GetUsable(context.Background(), "tok", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResetTokenCreateDuplicate(t *testing.T) {
	base, mock := newMock(t)
	repo := NewResetTokenRepository(base)

	mock.ExpectExec(q("INSERT INTO password_reset_tokens")).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := repo.Create(context.Background(), &model.PasswordResetToken{UserID: uuid.New(), Token: "tok", ExpiresAt: now, CreatedAt: now})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestResetTokenDeleteUnusedAndStale(t *testing.T) {
	base, mock := newMock(t)
	repo := NewResetTokenRepository(base)
	userID := uuid.New()

	mock.ExpectExec(q("DELETE FROM password_reset_tokens WHERE used = $1 AND user_id = $2")).
		WithArgs(false, userID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	mock.ExpectExec(q("DELETE FROM password_reset_tokens WHERE (expires_at < $1 OR (used = $2 AND created_at < $3))")).
		WithArgs(now, true, now.Add(-24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteUnusedByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.DeleteStale(context.Background(), now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestPasswordHistoryListRecentAndTrim(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPasswordHistoryRepository(base)
	userID := uuid.New()
	since := now.AddDate(-1, 0, 0)

	mock.ExpectQuery(q("SELECT id, user_id, password_hash, created_at FROM password_history WHERE user_id = $1 AND created_at > $2 ORDER BY created_at DESC LIMIT 5")).
		WithArgs(userID, since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "password_hash", "created_at"}).
			AddRow(uuid.New().String(), userID.String(), "h2", now).
			AddRow(uuid.New().String(), userID.String(), "h1", now.Add(-time.Hour)))

	mock.ExpectExec(q("DELETE FROM password_history WHERE user_id = $1 AND id NOT IN")).
		WithArgs(userID, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entries, err := repo.ListRecent(context.Background(), userID, 5, since)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h2", entries[0].PasswordHash)

	n, err := repo.DeleteBeyond(context.Background(), userID, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPasswordHistoryDeleteOlderThan(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPasswordHistoryRepository(base)
	cutoff := now.AddDate(0, 0, -365)

	mock.ExpectExec(q("DELETE FROM password_history WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestUserRecordPasswordChange(t *testing.T) {
	base, mock := newMock(t)
	repo := NewUserRepository(base)
	id := uuid.New()

	mock.ExpectExec(q("WHEN last_password_change_date IS NOT NULL AND last_password_change_date > $2")).
		WithArgs(now, now.Add(-24*time.Hour), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordPasswordChange(context.Background(), id, now, now.Add(-24*time.Hour)))
}

func TestUserUpdatePasswordNotFound(t *testing.T) {
	base, mock := newMock(t)
	repo := NewUserRepository(base)
	id := uuid.New()

	mock.ExpectExec(q("refresh_token = NULL")).
		WithArgs("hash", now, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), id, "hash", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserGetByEmail(t *testing.T) {
	base, mock := newMock(t)
	repo := NewUserRepository(base)
	id := uuid.New()

	cols := []string{"id", "username", "email", "password_hash", "role", "status", "refresh_token",
		"password_changed_at", "password_change_count", "last_password_change_date",
		"last_login_at", "created_at", "updated_at"}

	mock.ExpectQuery(q("FROM users WHERE LOWER(email) = LOWER($1)")).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(id.String(), "alice", "alice@example.com", "hash", "user", "active", nil,
				now, 2, now, nil, now, now))

	user, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, 2, user.PasswordChangeCount)
	assert.Nil(t, user.RefreshToken)

	mock.ExpectQuery(q("FROM users WHERE LOWER(email) = LOWER($1)")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(cols))

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS users")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, EnsureSchema(context.Background(), sqlx.NewDb(db, "postgres")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
