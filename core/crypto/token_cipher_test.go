package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestTokenCipher_SealOpen(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	if err != nil {
		t.Fatalf("NewTokenCipher returned an error: %v", err)
	}

	sealed, err := c.Seal("ya29.access-token")
	if err != nil {
		t.Fatalf("Seal returned an error: %v", err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) || strings.Contains(sealed, "ya29") {
		t.Errorf("Expected an opaque sealed value, got %q", sealed)
	}

	plain, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open returned an error: %v", err)
	}
	if plain != "ya29.access-token" {
		t.Errorf("Expected round trip, got %q", plain)
	}

	// legacy plaintext rows pass through
	if got, _ := c.Open("legacy"); got != "legacy" {
		t.Errorf("Expected legacy value unchanged, got %q", got)
	}
}

func TestTokenCipher_TamperedValueFails(t *testing.T) {
	c, _ := NewTokenCipher(testKey)
	sealed, _ := c.Seal("refresh")
	raw, _ := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	raw[len(raw)-1] ^= 0xff
	tampered := sealedPrefix + base64.RawURLEncoding.EncodeToString(raw)

	if _, err := c.Open(tampered); err == nil {
		t.Error("Expected tampered token to fail authentication")
	}
}

func TestNewTokenCipher_BadKey(t *testing.T) {
	if _, err := NewTokenCipher(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("Expected error for a short key")
	}

	c, err := NewTokenCipher("")
	if err != nil {
		t.Fatalf("empty key should yield passthrough: %v", err)
	}
	if got, _ := c.Seal("x"); got != "x" {
		t.Errorf("Expected passthrough, got %q", got)
	}
}
