package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateHMAC generates a hex HMAC-SHA256 of data
func GenerateHMAC(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC checks a hex HMAC-SHA256 signature in constant time
func VerifyHMAC(data []byte, signature, secret string) error {
	if len(signature) == 0 {
		return fmt.Errorf("signature is empty")
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	if !hmac.Equal(got, h.Sum(nil)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
