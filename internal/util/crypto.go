package util

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
)

func SHA256Hex(input []byte) string {
	return hex.EncodeToString(SHA256(input))
}

func SHA256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// KeyID computes the transparency-log key identifier for a public key: the
// hex SHA-256 of its PKIX encoding.
func KeyID(pub crypto.PublicKey) (string, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return SHA256Hex(spki), nil
}
