package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 16
	keyLength  = 32
	iterations = 100_000

	// credentialLength is the decoded size of a well-formed credential:
	// the salt followed by the derived key. Any other length is corrupt.
	credentialLength = saltLength + keyLength

	// minEncodedLength is a fast-path guard against legacy non-hash values
	// that predate the current encoding.
	minEncodedLength = 40
)

// Hasher derives and verifies PBKDF2-HMAC-SHA256 credentials. The iteration
// count and salt/key sizes are part of the stored-credential contract and
// must not change without a hash migration.
type Hasher struct{}

// NewHasher constructs a Hasher with the service's fixed derivation parameters.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash derives a salted credential for the password. The result is the
// base64url encoding of a fresh 16-byte random salt concatenated with the
// 32-byte derived key. An empty password is allowed here; strength
// enforcement belongs to the policy evaluator.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)

	buf := make([]byte, 0, credentialLength)
	buf = append(buf, salt...)
	buf = append(buf, key...)

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify compares the password against a stored credential in constant time.
// Malformed input of any kind reports false rather than failing: callers
// must not be able to distinguish a corrupt credential from a wrong password.
func (h *Hasher) Verify(password, stored string) bool {
	if stored == "" || len(stored) < minEncodedLength {
		return false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(stored)
	if err != nil {
		// Stored values may carry padding depending on the writer.
		decoded, err = base64.URLEncoding.DecodeString(stored)
		if err != nil {
			return false
		}
	}

	if len(decoded) != credentialLength {
		return false
	}

	salt := decoded[:saltLength]
	storedKey := decoded[saltLength:]

	candidate := pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)

	return subtle.ConstantTimeCompare(candidate, storedKey) == 1
}

// VerifyPlaintext compares a password against a legacy plaintext credential
// in constant time. Used only for rows still awaiting the hash migration.
func (h *Hasher) VerifyPlaintext(password, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
}
