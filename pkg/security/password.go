package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for stored passwords
const DefaultCost = 12

// bcrypt only reads the first 72 bytes of its input and newer releases of
// x/crypto reject anything longer outright.
const maxBcryptInput = 72

var (
	ErrHashingFailed = errors.New("password hashing failed")
	ErrMismatch      = bcrypt.ErrMismatchedHashAndPassword
)

// PasswordHasher provides interface for password operations
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a new password hasher using bcrypt
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(truncate(password), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(bytes), nil
}

// Compare returns ErrMismatch when the password does not match the hash.
// Any other error means the stored hash is unusable.
func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), truncate(password))
}

// Matches reports whether password matches hash, separating a mismatch from a
// malformed hash.
func Matches(h PasswordHasher, hash, password string) (bool, error) {
	err := h.Compare(hash, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrMismatch):
		return false, nil
	default:
		return false, err
	}
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > maxBcryptInput {
		b = b[:maxBcryptInput]
	}
	return b
}
