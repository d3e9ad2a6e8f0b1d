// Package auth handles SDK key generation and verification.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// KeyPrefix is the prefix for all generated SDK keys.
	KeyPrefix = "fdk_"
	// KeyLength is the length of the random part of the key (32 bytes = 256 bits).
	KeyLength = 32
	// BCryptCost is the cost factor for bcrypt hashing.
	BCryptCost = 12
)

// GenerateSDKKey generates a new SDK key: the fdk_ prefix followed by
// 32 random bytes in URL-safe base64 without padding.
func GenerateSDKKey() (string, error) {
	randomBytes := make([]byte, KeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// ValidKeyShape reports whether a key looks like a generated SDK key.
// Shape validation happens client-side before any network call; the
// server still verifies the key against its stored hash.
func ValidKeyShape(key string) bool {
	if !strings.HasPrefix(key, KeyPrefix) {
		return false
	}
	rest := key[len(KeyPrefix):]
	if rest == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(rest)
	return err == nil
}

// HashSDKKey hashes an SDK key with bcrypt for storage.
func HashSDKKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}

// VerifySDKKey verifies an SDK key against a bcrypt hash.
func VerifySDKKey(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// VerifyKeyConstantTime compares a presented key against a plain
// expected key in constant time. Used for keys configured directly via
// environment variables.
func VerifyKeyConstantTime(got, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// ExtractBearerToken extracts the bearer token from an Authorization
// header, tolerating a case-insensitive scheme.
func ExtractBearerToken(authHeader string) string {
	token := strings.TrimSpace(authHeader)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
