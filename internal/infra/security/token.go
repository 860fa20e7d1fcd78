package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateSecureToken returns a base64 URL-safe random string using the
// specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateNumericCode returns a random numeric string of the given length.
// Each digit is drawn uniformly; bytes that would bias the modulo are
// rejected and redrawn.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	// Largest multiple of 10 below 256 keeps b%10 unbiased.
	const rejectAbove = 249

	digits := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(digits) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		for _, b := range buf {
			if b > rejectAbove {
				continue
			}
			digits = append(digits, '0'+(b%10))
			if len(digits) == length {
				break
			}
		}
	}

	return string(digits), nil
}

// HashToken calculates a SHA-256 hash of the provided value. Recovery tokens
// are persisted hashed so a database leak does not expose usable artifacts.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
