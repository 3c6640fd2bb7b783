package web

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workshop"
	"github.com/google/uuid"
)

// DefaultVisitorTTL is how long an idle visitor store is kept.
const DefaultVisitorTTL = 30 * time.Minute

// Session is a backend client bound to one visitor. Both the local and the
// rest clients satisfy it.
type Session interface {
	workshop.Backend
	workshop.ProfileStore
	AccessToken() string
}

// SessionFactory builds a client for a new visitor. accessToken is the value
// remembered in the visitor cookie and may be empty.
type SessionFactory func(accessToken string) (Session, error)

// Visitor pairs a browser with its own store.
type Visitor struct {
	ID     string
	Store  *workshop.Store
	Client Session

	sub      workshop.Subscription
	lastSeen time.Time
}

// Registry holds one store per visitor cookie.
type Registry struct {
	factory   SessionFactory
	storeOpts []workshop.StoreOption
	ttl       time.Duration
	now       func() time.Time
	logger    workshop.Logger
	onChange  func(n int)

	mu       sync.Mutex
	visitors map[string]*Visitor
}

type RegistryOption func(*Registry)

func WithVisitorTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithStoreOptions are applied to every store the registry builds.
func WithStoreOptions(opts ...workshop.StoreOption) RegistryOption {
	return func(r *Registry) {
		r.storeOpts = append(r.storeOpts, opts...)
	}
}

func WithRegistryLogger(logger workshop.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithVisitorCount is called with the number of visitors after every change.
func WithVisitorCount(fn func(n int)) RegistryOption {
	return func(r *Registry) {
		r.onChange = fn
	}
}

func NewRegistry(factory SessionFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory:  factory,
		ttl:      DefaultVisitorTTL,
		now:      time.Now,
		logger:   workshop.DefaultLogger(),
		visitors: map[string]*Visitor{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Get returns the visitor for id and marks it as seen.
func (r *Registry) Get(id string) (*Visitor, bool) {
	if id == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[id]
	if ok {
		v.lastSeen = r.now()
	}
	return v, ok
}

// Create builds and initializes a store for a new visitor.
func (r *Registry) Create(ctx context.Context, accessToken string) (*Visitor, error) {
	if r.factory == nil {
		return nil, goerrors.New("visitor registry has no session factory", goerrors.CategoryInternal)
	}

	client, err := r.factory(accessToken)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build visitor session")
	}

	store := workshop.NewStore(client, client, r.storeOpts...)
	sub, err := store.Initialize(ctx)
	if err != nil {
		return nil, err
	}

	v := &Visitor{
		ID:       uuid.NewString(),
		Store:    store,
		Client:   client,
		sub:      sub,
		lastSeen: r.now(),
	}

	r.mu.Lock()
	r.visitors[v.ID] = v
	n := len(r.visitors)
	r.mu.Unlock()

	r.logger.Debug("visitor created", "visitor_id", v.ID, "restored", accessToken != "")
	r.changed(n)

	return v, nil
}

// Remove closes the visitor store and forgets it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	v, ok := r.visitors[id]
	delete(r.visitors, id)
	n := len(r.visitors)
	r.mu.Unlock()

	if !ok {
		return
	}

	v.sub.Unsubscribe()
	r.changed(n)
}

// Sweep closes visitors idle for longer than the TTL and reports how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var stale []*Visitor
	for id, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			stale = append(stale, v)
			delete(r.visitors, id)
		}
	}
	n := len(r.visitors)
	r.mu.Unlock()

	for _, v := range stale {
		v.sub.Unsubscribe()
	}

	if len(stale) > 0 {
		r.logger.Debug("swept idle visitors", "removed", len(stale), "remaining", n)
		r.changed(n)
	}

	return len(stale)
}

// Run sweeps on every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Close ends every visitor subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	visitors := r.visitors
	r.visitors = map[string]*Visitor{}
	r.mu.Unlock()

	for _, v := range visitors {
		v.sub.Unsubscribe()
	}
	r.changed(0)
}

func (r *Registry) changed(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}
