package workshop

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess        ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure        ActivityEventType = "auth.signin.failure"
	ActivityEventSignUpSuccess        ActivityEventType = "auth.signup.success"
	ActivityEventSignUpFailure        ActivityEventType = "auth.signup.failure"
	ActivityEventSignOut              ActivityEventType = "auth.signout"
	ActivityEventSignOutRemoteFailure ActivityEventType = "auth.signout.remote_failure"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset_requested"
	ActivityEventPasswordResetFailure ActivityEventType = "auth.password.reset_failure"
	ActivityEventSessionChanged       ActivityEventType = "auth.session.changed"
	ActivityEventProfileLoaded        ActivityEventType = "profile.sync.loaded"
	ActivityEventProfileCreated       ActivityEventType = "profile.sync.created"
	ActivityEventProfileSyncFailure   ActivityEventType = "profile.sync.failure"
	ActivityEventProfileSyncDiscarded ActivityEventType = "profile.sync.discarded"
)

// ActivityEvent captures audit-friendly information about a store action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans events out to every sink; the first error wins but
// all sinks are called.
func MultiActivitySink(sinks ...ActivitySink) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		var first error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
