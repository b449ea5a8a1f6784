package risk

import (
	"encoding/json"
	"fmt"

	"github.com/Dan9191/cashflow-risk/internal/utils"
)

// envelope is the persisted form of a bundle. Signature is an HMAC over the
// exact bytes of Bundle.
type envelope struct {
	Bundle    json.RawMessage `json:"bundle"`
	Signature string          `json:"signature,omitempty"`
}

// Encode serializes a bundle, signing it when signingKey is set
func Encode(b *Bundle, signingKey string) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle: %w", err)
	}
	env := envelope{Bundle: raw}
	if signingKey != "" {
		env.Signature = utils.GenerateHMAC(raw, signingKey)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// Decode parses and validates a persisted bundle. When signingKey is set the
// signature must be present and match.
func Decode(data []byte, signingKey string) (*Bundle, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if len(env.Bundle) == 0 {
		return nil, fmt.Errorf("%w: no bundle in payload", ErrInvalidBundle)
	}
	if signingKey != "" {
		if err := utils.VerifyHMAC(env.Bundle, env.Signature, signingKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
		}
	}

	var b Bundle
	if err := json.Unmarshal(env.Bundle, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
