package workshop

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-print"
)

// Store owns the authentication state of one application instance. It is
// safe for concurrent use; the mutex is never held across backend calls or
// watcher callbacks.
//
// Every authentication transition advances an epoch. Profile writes started
// under an older epoch are discarded, so a slow fetch from a previous sign in
// can not repopulate the state after a sign out.
//
// Watchers see snapshots in mutation order. A watcher must not call back
// into the store's operations synchronously.
type Store struct {
	backend  Backend
	profiles ProfileStore
	logger   Logger
	sink     ActivitySink
	timeout  time.Duration
	now      func() time.Time

	mu         sync.RWMutex
	state      State
	epoch      uint64
	synced     string
	subscribed bool
	sub        Subscription

	publishMu sync.Mutex
	watchers  *Broadcaster[State]
}

// NewStore creates a Store in its initial loading state.
func NewStore(backend Backend, profiles ProfileStore, opts ...StoreOption) *Store {
	s := &Store{
		backend:  backend,
		profiles: profiles,
		logger:   defLogger{},
		sink:     noopActivitySink{},
		timeout:  DefaultOperationTimeout,
		now:      time.Now,
		state:    State{Loading: true},
		watchers: NewBroadcaster[State](),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.logger = normalizeLogger(s.logger)
	s.sink = normalizeActivitySink(s.sink)

	return s
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Watch registers fn to receive a snapshot after every state change.
func (s *Store) Watch(fn func(State)) Subscription {
	return s.watchers.Subscribe(fn)
}

// SignIn verifies the credentials with the backend and loads the profile.
// A failed profile load does not fail the sign in.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	creds := newCredentials(email, password)
	if err := validate(creds, "invalid sign in request"); err != nil {
		return err
	}

	s.setLoading(true)

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	grant, err := s.backend.VerifyCredentials(opCtx, creds.Email, creds.Password)
	if err == nil {
		err = ensureGrant(grant)
	}

	if err != nil {
		s.setLoading(false)
		s.logger.Error("sign in failed", "email", creds.Email, "error", err)
		s.emit(ctx, ActivityEventSignInFailure, "", creds.Email, map[string]any{
			"error": err.Error(),
		})
		return external(err, "sign in failed")
	}

	epoch, synced := s.authenticate(grant)
	s.emit(ctx, ActivityEventSignInSuccess, grant.Identity.ID, grant.Identity.Email, nil)

	if synced {
		s.logger.Debug("profile already synced by session change", "user_id", grant.Identity.ID)
		return nil
	}

	s.fetchProfile(opCtx, epoch, grant.Identity.ID)

	return nil
}

// SignUp creates the account and its profile. A profile that already exists
// is logged and ignored; the caller is still signed in.
func (s *Store) SignUp(ctx context.Context, email, password, displayName string) error {
	reg := newRegistration(email, password, displayName)
	if err := validate(reg, "invalid sign up request"); err != nil {
		return err
	}

	s.setLoading(true)

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	grant, err := s.backend.CreateAccount(opCtx, reg.Email, reg.Password, AccountMetadata{
		Name:         reg.DisplayName,
		WorkshopRole: RoleParticipant,
	})
	if err == nil {
		err = ensureGrant(grant)
	}

	if err != nil {
		s.setLoading(false)
		s.logger.Error("sign up failed", "email", reg.Email, "error", err)
		s.emit(ctx, ActivityEventSignUpFailure, "", reg.Email, map[string]any{
			"error": err.Error(),
		})
		return external(err, "sign up failed")
	}

	epoch, _ := s.authenticate(grant)
	s.emit(ctx, ActivityEventSignUpSuccess, grant.Identity.ID, grant.Identity.Email, map[string]any{
		"confirmed": grant.Session != nil,
	})

	s.createProfile(opCtx, epoch, grant.Identity.ID, reg.DisplayName)

	return nil
}

// SignOut ends the remote session and always clears local state, even when
// the remote call fails.
func (s *Store) SignOut(ctx context.Context) {
	s.setLoading(true)

	userID := ""
	if current := s.State(); current.Identity != nil {
		userID = current.Identity.ID
	}

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	if err := s.backend.SignOut(opCtx); err != nil {
		s.logger.Warn("remote sign out failed, clearing local state", "user_id", userID, "error", err)
		s.emit(ctx, ActivityEventSignOutRemoteFailure, userID, "", map[string]any{
			"error": err.Error(),
		})
	}

	s.mutate(true, func(st *State) {
		*st = State{}
	})

	s.emit(ctx, ActivityEventSignOut, userID, "", nil)
}

// ResetPassword asks the backend to send a reset email. State is untouched.
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	addr := emailAddress{Email: strings.TrimSpace(email)}
	if err := validate(addr, "invalid password reset request"); err != nil {
		return err
	}

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	if err := s.backend.SendPasswordReset(opCtx, addr.Email); err != nil {
		s.logger.Error("password reset request failed", "email", addr.Email, "error", err)
		s.emit(ctx, ActivityEventPasswordResetFailure, "", addr.Email, map[string]any{
			"error": err.Error(),
		})
		return external(err, "password reset request failed")
	}

	s.emit(ctx, ActivityEventPasswordResetRequest, "", addr.Email, nil)
	return nil
}

// Initialize subscribes to the backend session notifications. The returned
// handle, or Close, ends the subscription.
func (s *Store) Initialize(ctx context.Context) (Subscription, error) {
	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		return nil, ErrAlreadyInitialized
	}
	s.subscribed = true
	s.mu.Unlock()

	lifeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	sub := s.backend.Subscribe(func(change SessionChange) {
		s.handleSessionChange(lifeCtx, change)
	})

	var once sync.Once
	handle := SubscriptionFunc(func() {
		once.Do(func() {
			if sub != nil {
				sub.Unsubscribe()
			}
			cancel()

			s.mu.Lock()
			s.subscribed = false
			s.sub = nil
			s.mu.Unlock()
		})
	})

	s.mu.Lock()
	s.sub = handle
	s.mu.Unlock()

	return handle, nil
}

// Close ends the backend subscription, if any.
func (s *Store) Close() error {
	s.mu.RLock()
	sub := s.sub
	s.mu.RUnlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	return nil
}

func (s *Store) handleSessionChange(ctx context.Context, change SessionChange) {
	s.logger.Debug("session change", "event", change.Event, "has_session", change.HasSession())

	if !change.HasSession() {
		s.mutate(true, func(st *State) {
			st.Identity = nil
			st.Session = nil
			st.Profile = nil
			st.Initialized = true
			st.Loading = false
		})
		s.emit(ctx, ActivityEventSessionChanged, "", "", map[string]any{
			"event": string(change.Event),
		})
		return
	}

	epoch := s.mutate(true, func(st *State) {
		st.Loading = true
		applyGrant(st, change.Identity, change.Session)
	})

	s.emit(ctx, ActivityEventSessionChanged, change.Identity.ID, change.Identity.Email, map[string]any{
		"event": string(change.Event),
	})

	opCtx, cancel := s.operationContext(ctx)
	s.fetchProfile(opCtx, epoch, change.Identity.ID)
	cancel()

	s.mutateAt(epoch, func(st *State) {
		st.Initialized = true
		st.Loading = false
		s.synced = change.Session.AccessToken
	})
}

// authenticate applies a grant returned by the backend. When the backend
// already delivered the same session as a notification and its profile sync
// finished, the state is kept as is and synced is true.
func (s *Store) authenticate(grant *Grant) (epoch uint64, synced bool) {
	s.mu.Lock()
	if s.alreadySynced(grant) {
		s.state.Loading = false
		epoch = s.epoch
		s.mu.Unlock()
		s.publish()
		return epoch, true
	}
	s.mu.Unlock()

	return s.mutate(true, func(st *State) {
		applyGrant(st, grant.Identity, grant.Session)
		st.Loading = false
	}), false
}

// alreadySynced must be called with s.mu held.
func (s *Store) alreadySynced(grant *Grant) bool {
	if grant.Session == nil || s.synced == "" || s.synced != grant.Session.AccessToken {
		return false
	}
	return s.state.Identity != nil && s.state.Identity.ID == grant.Identity.ID
}

func applyGrant(st *State, identity *Identity, session *Session) {
	if st.Profile != nil && st.Profile.OwnerID != identity.ID {
		st.Profile = nil
	}
	st.Identity = cloneIdentity(identity)
	st.Session = cloneSession(session)
}

func (s *Store) setLoading(loading bool) {
	s.mutate(false, func(st *State) {
		st.Loading = loading
	})
}

// mutate applies fn under the lock, optionally starting a new epoch, and
// publishes the resulting snapshot. It returns the epoch fn ran under.
func (s *Store) mutate(advance bool, fn func(*State)) uint64 {
	s.mu.Lock()
	if advance {
		s.epoch++
		s.synced = ""
	}
	fn(&s.state)
	epoch := s.epoch
	s.mu.Unlock()

	s.publish()
	return epoch
}

// mutateAt applies fn only if no transition happened since epoch.
func (s *Store) mutateAt(epoch uint64, fn func(*State)) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	fn(&s.state)
	s.mu.Unlock()

	s.publish()
	return true
}

// publish delivers the current state to the watchers. The snapshot is taken
// and delivered under publishMu, so a watcher never sees an older state after
// a newer one and the last delivered snapshot matches State.
func (s *Store) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.watchers.Publish(s.State())
}

func (s *Store) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Store) emit(ctx context.Context, eventType ActivityEventType, userID, email string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Email:      email,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "event", eventType, "error", err)
	}
}

func ensureGrant(grant *Grant) error {
	if grant == nil || grant.Identity == nil || grant.Identity.ID == "" {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Store) debugPayload(msg string, payload any) {
	s.logger.Debug(msg, "payload", print.MaybePrettyJSON(payload))
}
