package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ResetTokenBytes is the entropy of a password reset token
const ResetTokenBytes = 32

// GenerateToken returns n random bytes hex-encoded
func GenerateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
