package workshop_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-workshop"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements workshop.Backend. Subscribe is handled without
// the mock so tests can push notifications through Notify.
type MockBackend struct {
	mock.Mock

	mu      sync.Mutex
	current workshop.SessionChange
	subs    *workshop.Broadcaster[workshop.SessionChange]
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		current: workshop.SessionChange{Event: workshop.AuthEventInitialSession},
		subs:    workshop.NewBroadcaster[workshop.SessionChange](),
	}
}

func (m *MockBackend) VerifyCredentials(ctx context.Context, email, password string) (*workshop.Grant, error) {
	args := m.Called(ctx, email, password)
	grant, _ := args.Get(0).(*workshop.Grant)
	return grant, args.Error(1)
}

func (m *MockBackend) CreateAccount(ctx context.Context, email, password string, meta workshop.AccountMetadata) (*workshop.Grant, error) {
	args := m.Called(ctx, email, password, meta)
	grant, _ := args.Get(0).(*workshop.Grant)
	return grant, args.Error(1)
}

func (m *MockBackend) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBackend) SendPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockBackend) Subscribe(fn func(workshop.SessionChange)) workshop.Subscription {
	sub := m.subs.Subscribe(fn)
	m.mu.Lock()
	initial := m.current
	m.mu.Unlock()
	initial.Event = workshop.AuthEventInitialSession
	fn(initial)
	return sub
}

// SetInitial sets the session delivered on Subscribe.
func (m *MockBackend) SetInitial(change workshop.SessionChange) {
	m.mu.Lock()
	m.current = change
	m.mu.Unlock()
}

// Notify pushes a change to every subscriber.
func (m *MockBackend) Notify(change workshop.SessionChange) {
	m.mu.Lock()
	m.current = change
	m.mu.Unlock()
	m.subs.Publish(change)
}

func (m *MockBackend) Subscribers() int {
	return m.subs.Len()
}

// MockProfiles implements workshop.ProfileStore.
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) FindProfile(ctx context.Context, ownerID string) (*workshop.Profile, error) {
	args := m.Called(ctx, ownerID)
	profile, _ := args.Get(0).(*workshop.Profile)
	return profile, args.Error(1)
}

func (m *MockProfiles) InsertProfile(ctx context.Context, profile *workshop.Profile) (*workshop.Profile, error) {
	args := m.Called(ctx, profile)
	created, _ := args.Get(0).(*workshop.Profile)
	return created, args.Error(1)
}

type capturingSink struct {
	mu     sync.Mutex
	events []workshop.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt workshop.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Types() []workshop.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]workshop.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}
