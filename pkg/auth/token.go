package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// AccessTokenPrefix identifies access tokens
	AccessTokenPrefix = "ppt_"
	// RefreshTokenPrefix identifies refresh tokens
	RefreshTokenPrefix = "ppr_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// TokenGenerator generates and validates opaque session tokens
type TokenGenerator struct {
	prefix string
}

// NewTokenGenerator creates a token generator for the given prefix
func NewTokenGenerator(prefix string) *TokenGenerator {
	return &TokenGenerator{prefix: prefix}
}

// GenerateToken creates a new token and the hash used to store it.
// Format: <prefix><base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token = tg.prefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return token, HashToken(token), nil
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, tg.prefix) {
		return fmt.Errorf("token must start with %q", tg.prefix)
	}

	encodedPart := strings.TrimPrefix(token, tg.prefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(encodedPart)
	if err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	if len(decoded) != TokenLength {
		return fmt.Errorf("token has %d random bytes, want %d", len(decoded), TokenLength)
	}

	return nil
}

// HashToken computes the SHA256 hash of a token for lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
