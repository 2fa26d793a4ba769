package crypto

import (
	"strings"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	enc, err := Encrypt("EAAB-page-token", "secret-key")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !strings.HasPrefix(enc, prefix) {
		t.Fatalf("missing prefix: %q", enc)
	}
	if strings.Contains(enc, "EAAB") {
		t.Fatal("ciphertext leaks plaintext")
	}

	plain, err := Decrypt(enc, "secret-key")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "EAAB-page-token" {
		t.Errorf("got %q", plain)
	}

	if _, err := Decrypt(enc, "other-key"); err == nil {
		t.Error("expected error with wrong key")
	}
}

func TestSealOpenPassthrough(t *testing.T) {
	tests := []struct {
		name  string
		value string
		key   string
	}{
		{"no key", "plain", ""},
		{"empty value", "", "k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := Seal(tt.value, tt.key)
			if err != nil {
				t.Fatal(err)
			}
			if sealed != tt.value {
				t.Errorf("Seal = %q, want passthrough %q", sealed, tt.value)
			}
		})
	}

	// Legacy plaintext rows stay readable after a key is introduced.
	got, err := Open("legacy-token", "k")
	if err != nil || got != "legacy-token" {
		t.Errorf("Open legacy = %q, %v", got, err)
	}
}
