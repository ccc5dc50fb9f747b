package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// GenerateSecret generates a cryptographically secure random secret
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateJWTSecrets generates two different JWT secrets (access and refresh)
func GenerateJWTSecrets() (accessSecret, refreshSecret string, err error) {
	accessSecret, err = GenerateSecret(32)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access secret: %w", err)
	}

	refreshSecret, err = GenerateSecret(32)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh secret: %w", err)
	}

	return accessSecret, refreshSecret, nil
}

// NewTransactionID returns a gateway transaction id: "tran_" + unix millis + 8 random hex chars.
// Uniqueness is ultimately enforced by the payments_transaction_id_key constraint.
func NewTransactionID() (string, error) {
	suffix, err := GenerateSecret(4)
	if err != nil {
		return "", fmt.Errorf("failed to generate transaction id: %w", err)
	}
	return "tran_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + suffix, nil
}
