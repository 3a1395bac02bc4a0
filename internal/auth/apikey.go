// Package auth provides the credential primitives for the request tracker: API key
// generation, SHA-256 hashing for lookup, display prefixes and Bearer header parsing.
// See internal/services/credentials.go for validation against the store and
// internal/middleware/auth.go for the request-time authentication logic.
package auth

import (
	"crypto/md5" // #nosec G501 -- md5 only tags the key with a non-secret seed fingerprint
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// KeyTag is the fixed leading component of every API key
	KeyTag = "crs"

	// APIKeyRandomBytes is the length of the random part of the API key in bytes
	APIKeyRandomBytes = 16

	// DisplayPrefixLength is the number of plaintext characters kept for display
	DisplayPrefixLength = 12

	seedFingerprintLength = 8
)

// now is swapped in tests
var now = time.Now

// GenerateAPIKey creates a new API key for the given seed (usually an email).
// Format: crs_<8 hex of md5(seed)>_<base36 unix millis>_<32 hex random>.
// The random component carries the entropy; the key cannot be rebuilt from seed.
func GenerateAPIKey(seed string) (string, error) {
	randomBytes := make([]byte, APIKeyRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	sum := md5.Sum([]byte(seed)) // #nosec G401
	fingerprint := hex.EncodeToString(sum[:])[:seedFingerprintLength]
	stamp := strconv.FormatInt(now().UnixMilli(), 36)

	return fmt.Sprintf("%s_%s_%s_%s", KeyTag, fingerprint, stamp, hex.EncodeToString(randomBytes)), nil
}

// HashAPIKey returns the lowercase hex SHA-256 of the key. This is the only form
// of the key that is ever stored.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix returns the first DisplayPrefixLength characters of the key followed by "..."
func DisplayPrefix(key string) string {
	if len(key) > DisplayPrefixLength {
		key = key[:DisplayPrefixLength]
	}
	return key + "..."
}

// ExtractAPIKeyFromHeader extracts the API key from an Authorization header
// Expected format: "Bearer crs_1a2b3c4d_..."
func ExtractAPIKeyFromHeader(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	key := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if key == "" {
		return "", errors.New("API key is empty after Bearer prefix")
	}

	return key, nil
}
