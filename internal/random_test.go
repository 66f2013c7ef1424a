package internal

import (
	"encoding/base64"
	"testing"
)

func TestNewXSRFTokenEntropyAndEncoding(t *testing.T) {
	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		tok, err := NewXSRFToken()
		if err != nil {
			t.Fatalf("NewXSRFToken error: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token %q is not base64url: %v", tok, err)
		}
		if len(raw)*8 < 128 {
			t.Fatalf("expected at least 128 bits, got %d", len(raw)*8)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestXSRFEqual(t *testing.T) {
	a, _ := NewXSRFToken()
	b, _ := NewXSRFToken()

	if !XSRFEqual(a, a) {
		t.Fatal("expected identical tokens to match")
	}
	if XSRFEqual(a, b) {
		t.Fatal("expected distinct tokens to mismatch")
	}
	if XSRFEqual("", a) || XSRFEqual(a, "") || XSRFEqual("", "") {
		t.Fatal("expected empty values to never match")
	}
}

func TestNewSecret(t *testing.T) {
	if _, err := NewSecret(8); err == nil {
		t.Fatal("expected undersized secret request to fail")
	}
	s, err := NewSecret(48)
	if err != nil {
		t.Fatalf("NewSecret error: %v", err)
	}
	if len(s) != 48 {
		t.Fatalf("expected 48 bytes, got %d", len(s))
	}
}

func TestHashKeyPartStable(t *testing.T) {
	if HashKeyPart("alice") != HashKeyPart("alice") {
		t.Fatal("expected stable key hash")
	}
	if HashKeyPart("alice") == HashKeyPart("bob") {
		t.Fatal("expected different inputs to hash differently")
	}
	if got := len(HashKeyPart("alice")); got != 32 {
		t.Fatalf("expected 32 hex chars, got %d", got)
	}
}
