package workshop

import (
	"context"
)

// Logger is the logging contract used across the module. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// AuthEvent names a session change published by a backend.
type AuthEvent string

const (
	AuthEventInitialSession AuthEvent = "initial_session"
	AuthEventSignedIn       AuthEvent = "signed_in"
	AuthEventSignedOut      AuthEvent = "signed_out"
	AuthEventTokenRefreshed AuthEvent = "token_refreshed"
)

// SessionChange is delivered to Backend subscribers. Session is nil when
// there is no live session.
type SessionChange struct {
	Event    AuthEvent
	Session  *Session
	Identity *Identity
}

// HasSession reports whether the change carries a live session.
func (c SessionChange) HasSession() bool {
	return c.Session != nil && c.Identity != nil
}

// Subscription is the handle returned by observer registrations.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// Backend is the external auth service the Store delegates to.
type Backend interface {
	// VerifyCredentials exchanges an email/password pair for a Grant.
	VerifyCredentials(ctx context.Context, email, password string) (*Grant, error)
	// CreateAccount registers a new account. The returned Grant may carry a
	// nil Session when the service requires email confirmation.
	CreateAccount(ctx context.Context, email, password string, meta AccountMetadata) (*Grant, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	// Subscribe registers fn for session changes. Implementations deliver
	// the current session as AuthEventInitialSession before returning and
	// every later change in order.
	Subscribe(fn func(SessionChange)) Subscription
}

// ProfileStore is the row storage side of the external service.
type ProfileStore interface {
	// FindProfile returns ErrProfileNotFound when no row exists for ownerID.
	FindProfile(ctx context.Context, ownerID string) (*Profile, error)
	// InsertProfile returns ErrProfileExists when ownerID already has a row.
	InsertProfile(ctx context.Context, profile *Profile) (*Profile, error)
}
