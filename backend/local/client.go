package local

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-workshop"
)

// RestoreTimeout bounds the session restore performed on first Subscribe.
var RestoreTimeout = 5 * time.Second

// Client is one application instance's handle on a Service. It keeps the
// current session and implements workshop.Backend and workshop.ProfileStore.
type Client struct {
	service *Service
	logger  workshop.Logger

	mu       sync.Mutex
	identity *workshop.Identity
	session  *workshop.Session
	pending  string

	changes *workshop.Broadcaster[workshop.SessionChange]
}

var (
	_ workshop.Backend      = (*Client)(nil)
	_ workshop.ProfileStore = (*Client)(nil)
)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithAccessToken restores a previously issued session on first Subscribe.
func WithAccessToken(token string) ClientOption {
	return func(c *Client) {
		c.pending = token
	}
}

func WithClientLogger(logger workshop.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a signed out client.
func NewClient(service *Service, opts ...ClientOption) *Client {
	c := &Client{
		service: service,
		logger:  service.logger,
		changes: workshop.NewBroadcaster[workshop.SessionChange](),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

func (c *Client) VerifyCredentials(ctx context.Context, email, password string) (*workshop.Grant, error) {
	grant, err := c.service.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.publish(workshop.AuthEventSignedIn, grant.Identity, grant.Session)
	return grant, nil
}

func (c *Client) CreateAccount(ctx context.Context, email, password string, meta workshop.AccountMetadata) (*workshop.Grant, error) {
	grant, err := c.service.SignUp(ctx, email, password, meta)
	if err != nil {
		return nil, err
	}

	if grant.Session != nil {
		c.publish(workshop.AuthEventSignedIn, grant.Identity, grant.Session)
	}
	return grant, nil
}

// SignOut revokes the current session. Local session state is dropped even
// when the revoke fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}

	err := c.service.Revoke(ctx, session.AccessToken)

	c.publish(workshop.AuthEventSignedOut, nil, nil)
	return err
}

func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.service.RequestPasswordReset(ctx, email)
}

// Subscribe delivers the current session as initial_session, then every
// later change in order.
func (c *Client) Subscribe(fn func(workshop.SessionChange)) workshop.Subscription {
	c.restorePending()

	sub := c.changes.Subscribe(fn)

	c.mu.Lock()
	initial := workshop.SessionChange{
		Event:    workshop.AuthEventInitialSession,
		Identity: c.identity,
		Session:  c.session,
	}
	c.mu.Unlock()

	if fn != nil {
		fn(initial)
	}
	return sub
}

func (c *Client) FindProfile(ctx context.Context, ownerID string) (*workshop.Profile, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}
	return c.service.FindProfile(ctx, token, ownerID)
}

func (c *Client) InsertProfile(ctx context.Context, profile *workshop.Profile) (*workshop.Profile, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}
	return c.service.InsertProfile(ctx, token, profile)
}

// Restore adopts a previously issued access token.
func (c *Client) Restore(ctx context.Context, accessToken string) error {
	identity, session, err := c.service.Authenticate(ctx, accessToken)
	if err != nil {
		return err
	}

	c.publish(workshop.AuthEventSignedIn, identity, session)
	return nil
}

// RefreshSession rotates the current token pair.
func (c *Client) RefreshSession(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil || session.RefreshToken == "" {
		return workshop.ErrNoSession
	}

	grant, err := c.service.Refresh(ctx, session.RefreshToken)
	if err != nil {
		return err
	}

	c.publish(workshop.AuthEventTokenRefreshed, grant.Identity, grant.Session)
	return nil
}

// AccessToken returns the current access token, or "" when signed out.
func (c *Client) AccessToken() string {
	token, _ := c.accessToken()
	return token
}

func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.AccessToken == "" {
		return "", workshop.ErrNoSession
	}
	return c.session.AccessToken, nil
}

func (c *Client) restorePending() {
	c.mu.Lock()
	token := c.pending
	c.pending = ""
	c.mu.Unlock()

	if token == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), RestoreTimeout)
	defer cancel()

	if err := c.Restore(ctx, token); err != nil {
		c.logger.Debug("could not restore session", "error", err)
	}
}

// publish records the new session and notifies subscribers outside the lock.
func (c *Client) publish(event workshop.AuthEvent, identity *workshop.Identity, session *workshop.Session) {
	c.mu.Lock()
	c.identity = identity
	c.session = session
	c.mu.Unlock()

	c.changes.Publish(workshop.SessionChange{
		Event:    event,
		Identity: identity,
		Session:  session,
	})
}
