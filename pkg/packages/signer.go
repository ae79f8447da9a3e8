package packages

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// SignatureAlgorithm is the prefix of every signature string
const SignatureAlgorithm = "ed25519"

// Signer signs package checksums
type Signer struct {
	privateKey ed25519.PrivateKey
}

// NewSigner wraps an ed25519 private key
func NewSigner(privateKey ed25519.PrivateKey) (*Signer, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(privateKey))
	}
	return &Signer{privateKey: privateKey}, nil
}

// GenerateSigner creates a signer with a fresh random key
func GenerateSigner() (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &Signer{privateKey: priv}, nil
}

// ParseSigner decodes a base64 ed25519 seed (32 bytes) or private key (64 bytes)
func ParseSigner(encoded string) (*Signer, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signing key: %w", err)
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return &Signer{privateKey: ed25519.NewKeyFromSeed(raw)}, nil
	case ed25519.PrivateKeySize:
		return NewSigner(ed25519.PrivateKey(raw))
	default:
		return nil, fmt.Errorf("signing key must decode to %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// Sign returns "ed25519:<base64 signature>" over the checksum string
func (s *Signer) Sign(checksum string) string {
	sig := ed25519.Sign(s.privateKey, []byte(checksum))
	return SignatureAlgorithm + ":" + base64.StdEncoding.EncodeToString(sig)
}

// PublicKey returns the verification key
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.privateKey.Public().(ed25519.PublicKey)
}

// EncodedPublicKey returns the verification key as base64
func (s *Signer) EncodedPublicKey() string {
	return base64.StdEncoding.EncodeToString(s.PublicKey())
}

// EncodedPrivateKey returns the private key as base64
func (s *Signer) EncodedPrivateKey() string {
	return base64.StdEncoding.EncodeToString(s.privateKey)
}

// Verify checks a signature produced by Sign
func Verify(publicKey ed25519.PublicKey, checksum, signature string) bool {
	encoded, ok := strings.CutPrefix(signature, SignatureAlgorithm+":")
	if !ok {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, []byte(checksum), sig)
}
