package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewSessionID returns a random hex id of nBytes entropy.
func NewSessionID(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32 // 256 бит по умолчанию
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SessionFingerprint is the short hash stored in audit rows instead of the raw id.
func SessionFingerprint(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:16]
}
