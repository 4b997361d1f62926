package aster

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces request signatures for the Aster REST API. The secret
// is stored as []byte so it can be wiped from memory at shutdown.
type Signer struct {
	secretKey []byte
}

// NewSigner creates a signer for one API secret.
func NewSigner(secretKey string) *Signer {
	return &Signer{secretKey: []byte(secretKey)}
}

// Sign returns the lowercase hex HMAC-SHA256 of the encoded query string.
func (s *Signer) Sign(query string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// Wipe clears the secret from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	for i := range s.secretKey {
		s.secretKey[i] = 0
	}
}
