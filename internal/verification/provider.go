package verification

import (
	"context"
	"errors"
)

var (
	// ErrInvalidPhoneNumber occurs when a phone number cannot be parsed or is
	// not a valid number for the supplied country hint.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	// ErrProvider indicates the verification provider was unreachable or
	// answered with a payload that could not be interpreted.
	ErrProvider = errors.New("verification provider error")

	// ErrVerificationFailed indicates the provider explicitly rejected the
	// submitted code.
	ErrVerificationFailed = errors.New("invalid verification code")
)

// ConfirmedMarker is stored on a user once the provider approved a code.
const ConfirmedMarker = "true"

// Provider represents a connector to an external phone verification service.
type Provider interface {
	// Start begins an out-of-band verification for an E.164 number and returns
	// the provider's pending verification reference.
	Start(ctx context.Context, phoneNumber string) (string, error)
	// Check confirms a submitted code for an E.164 number. It returns nil only
	// when the provider approved the code.
	Check(ctx context.Context, phoneNumber, code string) error
}

// StaticProvider simulates a verification service for local development and
// tests. Every start succeeds and only Code is approved.
type StaticProvider struct {
	Reference string
	Code      string
}

// Start returns the configured reference.
func (p StaticProvider) Start(_ context.Context, phoneNumber string) (string, error) {
	if p.Reference != "" {
		return p.Reference, nil
	}
	return "static://verifications/" + phoneNumber, nil
}

// Check approves the configured code and rejects anything else.
func (p StaticProvider) Check(_ context.Context, _ string, code string) error {
	if p.Code == "" || code != p.Code {
		return ErrVerificationFailed
	}
	return nil
}
