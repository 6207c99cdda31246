// Package auth implements the caller credential check for authenticated
// endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
)

// ErrNotConfigured means no service API key is set. This is an operator
// misconfiguration and maps to 503; requests are never silently allowed.
var ErrNotConfigured = errors.New("service API key is not configured")

// ErrInvalidKey means the caller supplied no key or a mismatched one.
// Maps to 401.
var ErrInvalidKey = errors.New("invalid API key")

// Gate compares caller-supplied keys against the configured service key.
type Gate struct {
	serviceKey string
}

// NewGate creates a credential gate. serviceKey may be empty, in which case
// every check fails with ErrNotConfigured.
func NewGate(serviceKey string) *Gate {
	return &Gate{serviceKey: serviceKey}
}

// Check validates a caller-supplied key. The comparison is constant-time
// with respect to the key contents. The key value is never logged.
func (g *Gate) Check(provided string) error {
	if g.serviceKey == "" {
		return ErrNotConfigured
	}
	if provided == "" {
		return ErrInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(g.serviceKey)) != 1 {
		return ErrInvalidKey
	}
	return nil
}

// Configured reports whether a service key is set.
func (g *Gate) Configured() bool {
	return g.serviceKey != ""
}
