package auth

import (
	"strings"
	"testing"
)

func TestTokenGenerator_GenerateToken(t *testing.T) {
	tg := NewTokenGenerator(AccessTokenPrefix)

	token, tokenHash, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if !strings.HasPrefix(token, AccessTokenPrefix) {
		t.Errorf("Token should start with %q, got %q", AccessTokenPrefix, token)
	}

	// SHA256 = 64 hex chars
	if len(tokenHash) != 64 {
		t.Errorf("TokenHash length = %d, want 64", len(tokenHash))
	}

	if tokenHash != HashToken(token) {
		t.Errorf("TokenHash does not match HashToken(token)")
	}
}

func TestTokenGenerator_GenerateToken_Uniqueness(t *testing.T) {
	tg := NewTokenGenerator(RefreshTokenPrefix)

	tokens := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, err := tg.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if tokens[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		tokens[token] = true
	}
}

func TestTokenGenerator_ValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator(AccessTokenPrefix)
	valid, _, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", valid, false},
		{"wrong prefix", "ppr_" + strings.TrimPrefix(valid, AccessTokenPrefix), true},
		{"prefix only", AccessTokenPrefix, true},
		{"bad encoding", AccessTokenPrefix + "!!!not-base64!!!", true},
		{"short payload", AccessTokenPrefix + "YWJj", true},
		{"legacy hex token", "0123456789abcdef0123456789abcdef", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTokenFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
