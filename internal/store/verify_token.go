package store

import (
	"crypto/rand"
	"encoding/hex"
)

// NewVerifyToken returns a random 32-byte hex webhook verification token.
func NewVerifyToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("store: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
