// Package crypto encrypts secrets (gateway API keys, Meta tokens) before they are persisted.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const prefix = "aes-gcm:"

// ErrNotEncrypted is returned by Decrypt when the value lacks the cipher prefix.
var ErrNotEncrypted = errors.New("crypto: value is not encrypted")

func newGCM(key string) (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext with AES-256-GCM. The key string is hashed to 32 bytes.
func Encrypt(plaintext, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(value, key string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return "", ErrNotEncrypted
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", errors.New("crypto: ciphertext too short")
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plain), nil
}

// Seal encrypts when a key is configured and passes the value through otherwise.
func Seal(value, key string) (string, error) {
	if key == "" || value == "" {
		return value, nil
	}
	return Encrypt(value, key)
}

// Open reverses Seal. Plaintext values written before a key was configured are returned as-is.
func Open(value, key string) (string, error) {
	if key == "" || value == "" {
		return value, nil
	}
	plain, err := Decrypt(value, key)
	if errors.Is(err, ErrNotEncrypted) {
		return value, nil
	}
	return plain, err
}
