package web

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-workshop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	workshop.Backend
	workshop.ProfileStore
	token string
}

func (f fakeSession) AccessToken() string {
	return f.token
}

type staticBackend struct {
	unsubscribed int
}

func (b *staticBackend) VerifyCredentials(context.Context, string, string) (*workshop.Grant, error) {
	return nil, workshop.ErrInvalidCredentials
}

func (b *staticBackend) CreateAccount(context.Context, string, string, workshop.AccountMetadata) (*workshop.Grant, error) {
	return nil, workshop.ErrAccountExists
}

func (b *staticBackend) SignOut(context.Context) error { return nil }

func (b *staticBackend) SendPasswordReset(context.Context, string) error { return nil }

func (b *staticBackend) Subscribe(fn func(workshop.SessionChange)) workshop.Subscription {
	fn(workshop.SessionChange{Event: workshop.AuthEventInitialSession})
	return workshop.SubscriptionFunc(func() { b.unsubscribed++ })
}

func TestRegistrySweepsIdleVisitors(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	backend := &staticBackend{}
	var counts []int

	reg := NewRegistry(func(token string) (Session, error) {
		return fakeSession{Backend: backend, token: token}, nil
	},
		WithVisitorTTL(time.Minute),
		WithRegistryClock(func() time.Time { return now }),
		WithRegistryLogger(workshop.NopLogger()),
		WithStoreOptions(workshop.WithStoreLogger(workshop.NopLogger())),
		WithVisitorCount(func(n int) { counts = append(counts, n) }),
	)

	ctx := context.Background()
	first, err := reg.Create(ctx, "")
	require.NoError(t, err)
	assert.True(t, first.Store.State().Initialized)

	now = now.Add(45 * time.Second)
	second, err := reg.Create(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "token", second.Client.AccessToken())

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, reg.Sweep())
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, backend.unsubscribed)

	_, ok := reg.Get(first.ID)
	assert.False(t, ok)

	_, ok = reg.Get(second.ID)
	assert.True(t, ok)

	now = now.Add(50 * time.Second)
	assert.Equal(t, 0, reg.Sweep())

	reg.Remove(second.ID)
	reg.Remove(second.ID)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 2, backend.unsubscribed)

	assert.Equal(t, []int{1, 2, 1, 0}, counts)
}

func TestRegistryGetIgnoresEmptyID(t *testing.T) {
	reg := NewRegistry(nil, WithRegistryLogger(workshop.NopLogger()))

	_, ok := reg.Get("")
	assert.False(t, ok)

	_, err := reg.Create(context.Background(), "")
	require.Error(t, err)
}
