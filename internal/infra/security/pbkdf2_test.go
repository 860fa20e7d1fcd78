package security

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestHashAndVerifySuccess(t *testing.T) {
	hasher := NewHasher()
	password := "correct horse battery staple"

	encoded, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if encoded == "" {
		t.Fatal("Hash returned empty string")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("credential is not base64url: %v", err)
	}
	if len(decoded) != credentialLength {
		t.Fatalf("expected %d decoded bytes, got %d", credentialLength, len(decoded))
	}

	if !hasher.Verify(password, encoded) {
		t.Fatal("Verify returned false for correct password")
	}
}

func TestVerifyIncorrectPassword(t *testing.T) {
	hasher := NewHasher()

	encoded, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if hasher.Verify("Tr0ub4dor&3", encoded) {
		t.Fatal("Verify returned true for incorrect password")
	}
}

func TestHashProducesUniqueSalts(t *testing.T) {
	hasher := NewHasher()
	password := "repeatable-input"

	first, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if first == second {
		t.Fatal("expected two hashes of the same password to differ")
	}
	if !hasher.Verify(password, first) || !hasher.Verify(password, second) {
		t.Fatal("expected both hashes to verify independently")
	}
}

func TestVerifyRejectsCorruptedCredential(t *testing.T) {
	hasher := NewHasher()
	password := "correct horse battery staple"

	encoded, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode credential: %v", err)
	}

	for i := range decoded {
		corrupted := make([]byte, len(decoded))
		copy(corrupted, decoded)
		corrupted[i] ^= 0x01

		if hasher.Verify(password, base64.RawURLEncoding.EncodeToString(corrupted)) {
			t.Fatalf("Verify accepted credential with byte %d corrupted", i)
		}
	}
}

func TestVerifyMalformedInputs(t *testing.T) {
	hasher := NewHasher()

	cases := map[string]string{
		"empty":           "",
		"short":           "abc",
		"below guard":     strings.Repeat("a", minEncodedLength-1),
		"not base64":      strings.Repeat("!", 64),
		"wrong length":    base64.RawURLEncoding.EncodeToString(make([]byte, 32)),
		"oversized":       base64.RawURLEncoding.EncodeToString(make([]byte, 64)),
		"legacy sentinel": "plaintext-password-from-before-migration",
	}

	for name, stored := range cases {
		if hasher.Verify("any password", stored) {
			t.Fatalf("Verify accepted malformed credential (%s)", name)
		}
	}
}

func TestVerifyAcceptsPaddedEncoding(t *testing.T) {
	hasher := NewHasher()
	password := "padding tolerant"

	encoded, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode credential: %v", err)
	}

	padded := base64.URLEncoding.EncodeToString(decoded)
	if !hasher.Verify(password, padded) {
		t.Fatal("Verify rejected padded base64url credential")
	}
}

func TestVerifyEmptyPasswordAgainstItsHash(t *testing.T) {
	hasher := NewHasher()

	encoded, err := hasher.Hash("")
	if err != nil {
		t.Fatalf("Hash returned error for empty password: %v", err)
	}

	if !hasher.Verify("", encoded) {
		t.Fatal("Verify rejected empty password against its own hash")
	}
	if hasher.Verify("not empty", encoded) {
		t.Fatal("Verify accepted wrong password against empty-password hash")
	}
}

func TestVerifyPlaintext(t *testing.T) {
	hasher := NewHasher()

	if !hasher.VerifyPlaintext("legacy-secret", "legacy-secret") {
		t.Fatal("VerifyPlaintext rejected matching value")
	}
	if hasher.VerifyPlaintext("legacy-secret", "other") {
		t.Fatal("VerifyPlaintext accepted mismatched value")
	}
	if hasher.VerifyPlaintext("anything", "") {
		t.Fatal("VerifyPlaintext accepted empty stored value")
	}
}
