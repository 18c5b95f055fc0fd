// Package identity abstracts the external auth provider. Implementations
// return identity facts only; user creation, linking, and profile state are
// the reconciler's job.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrEmailExists means the provider already holds an identity for this email.
	ErrEmailExists = errors.New("email already registered")
	// ErrUserNotFound means no identity exists for the given email or id.
	ErrUserNotFound = errors.New("no account found for this email")
	// ErrInvalidCredential means the identity exists but the password is wrong.
	ErrInvalidCredential = errors.New("invalid email or password")
	// ErrTooManyAttempts is the provider's lockout response.
	ErrTooManyAttempts = errors.New("too many attempts, try again later")
	// ErrWeakPassword is the provider's password-policy rejection.
	ErrWeakPassword = errors.New("password should be at least 6 characters")
	// ErrInvalidToken covers signature, audience, and expiry failures. It is
	// fatal for the request and never downgraded to anonymous.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrProviderDisabled means the provider was not configured at startup.
	ErrProviderDisabled = errors.New("authentication service unavailable")
)

// Identity is a normalized external identity record.
type Identity struct {
	ExternalID    string
	Email         string
	DisplayName   string
	EmailVerified bool
}

// Provider is the contract the reconciler expects from the external auth
// service. A password never touches application storage; SignUp and SignIn
// forward it to the provider and discard it.
type Provider interface {
	// SignUp creates a provider identity and returns it with a bearer token.
	SignUp(ctx context.Context, email, password, displayName string) (*Identity, string, error)
	// SignIn verifies the password and returns the identity with a bearer token.
	SignIn(ctx context.Context, email, password string) (*Identity, string, error)
	// LookupByEmail returns the identity for an email, or ErrUserNotFound.
	LookupByEmail(ctx context.Context, email string) (*Identity, error)
	// Delete removes a provider identity. Used only as compensation when the
	// application-side create fails after a successful SignUp.
	Delete(ctx context.Context, externalID string) error
	// VerifyToken validates a bearer token and returns the identity it
	// asserts. Any cryptographic or audience mismatch is ErrInvalidToken.
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// Disabled is the provider used when auth is not configured. Every call
// fails fast with ErrProviderDisabled so handlers can return 503 uniformly.
type Disabled struct{}

func (Disabled) SignUp(ctx context.Context, email, password, displayName string) (*Identity, string, error) {
	return nil, "", ErrProviderDisabled
}

func (Disabled) SignIn(ctx context.Context, email, password string) (*Identity, string, error) {
	return nil, "", ErrProviderDisabled
}

func (Disabled) LookupByEmail(ctx context.Context, email string) (*Identity, error) {
	return nil, ErrProviderDisabled
}

func (Disabled) Delete(ctx context.Context, externalID string) error {
	return ErrProviderDisabled
}

func (Disabled) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	return nil, ErrProviderDisabled
}
