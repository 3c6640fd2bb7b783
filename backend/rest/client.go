// Package rest binds the workshop store to a hosted GoTrue and PostgREST
// deployment over HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workshop"
)

const (
	authPath         = "/auth/v1"
	restPath         = "/rest/v1"
	participantsPath = restPath + "/participants"

	pgrstObjectMedia = "application/vnd.pgrst.object+json"
	pgrstNoRows      = "PGRST116"
	pgrstJWTExpired  = "PGRST301"
	pgUniqueCode     = "23505"

	maxErrorBody = 64 << 10
)

// TextCodeResetRejected marks a reset request the hosted service refused.
const TextCodeResetRejected = "RESET_REJECTED"

// Client implements workshop.Backend and workshop.ProfileStore against the
// hosted service.
type Client struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	logger  workshop.Logger
	now     func() time.Time

	mu       sync.Mutex
	identity *workshop.Identity
	session  *workshop.Session

	changes *workshop.Broadcaster[workshop.SessionChange]
}

var (
	_ workshop.Backend      = (*Client)(nil)
	_ workshop.ProfileStore = (*Client)(nil)
)

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

func WithLogger(logger workshop.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithGrant starts the client with a previously issued session.
func WithGrant(grant *workshop.Grant) Option {
	return func(c *Client) {
		if grant != nil && grant.Identity != nil && grant.Session != nil {
			c.identity = grant.Identity
			c.session = grant.Session
		}
	}
}

// New validates the connection settings and builds a signed out client.
// Both values are required.
func New(baseURL, anonKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	anonKey = strings.TrimSpace(anonKey)

	var missing []string
	if baseURL == "" {
		missing = append(missing, "url")
	}
	if anonKey == "" {
		missing = append(missing, "anon key")
	}
	if len(missing) > 0 {
		return nil, goerrors.New("missing hosted backend settings: "+strings.Join(missing, ", "), goerrors.CategoryValidation).
			WithTextCode("BACKEND_CONFIG_MISSING").
			WithMetadata(map[string]any{"missing": missing})
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, goerrors.New("invalid hosted backend url", goerrors.CategoryValidation).
			WithTextCode("BACKEND_URL_INVALID").
			WithMetadata(map[string]any{"url": baseURL})
	}

	c := &Client{
		baseURL: u,
		anonKey: anonKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  workshop.DefaultLogger(),
		now:     time.Now,
		changes: workshop.NewBroadcaster[workshop.SessionChange](),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

func (c *Client) VerifyCredentials(ctx context.Context, email, password string) (*workshop.Grant, error) {
	var out tokenResponse
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    authPath + "/token",
		query:   url.Values{"grant_type": {"password"}},
		body:    passwordGrantRequest{Email: email, Password: password},
		out:     &out,
		mapping: tokenErrors,
	})
	if err != nil {
		return nil, err
	}

	grant := out.grant(c.now())
	if grant.Session == nil {
		return nil, goerrors.New("token response without a session", goerrors.CategoryExternal)
	}

	c.publish(workshop.AuthEventSignedIn, grant.Identity, grant.Session)
	return grant, nil
}

func (c *Client) CreateAccount(ctx context.Context, email, password string, meta workshop.AccountMetadata) (*workshop.Grant, error) {
	var out tokenResponse
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    authPath + "/signup",
		body:    signUpRequest{Email: email, Password: password, Data: meta},
		out:     &out,
		mapping: signUpErrors,
	})
	if err != nil {
		return nil, err
	}

	grant := out.grant(c.now())
	if grant.Identity == nil {
		return nil, goerrors.New("signup response without a user", goerrors.CategoryExternal)
	}

	if grant.Session != nil {
		c.publish(workshop.AuthEventSignedIn, grant.Identity, grant.Session)
	}
	return grant, nil
}

// SignOut ends the remote session. The local session is dropped even when
// the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}

	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   authPath + "/logout",
		token:  session.AccessToken,
	})

	c.publish(workshop.AuthEventSignedOut, nil, nil)
	return err
}

func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, call{
		method:  http.MethodPost,
		path:    authPath + "/recover",
		body:    recoverRequest{Email: email},
		mapping: recoverErrors,
	})
}

// RefreshSession exchanges the refresh token for a new pair.
func (c *Client) RefreshSession(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil || session.RefreshToken == "" {
		return workshop.ErrNoSession
	}

	var out tokenResponse
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    authPath + "/token",
		query:   url.Values{"grant_type": {"refresh_token"}},
		body:    refreshGrantRequest{RefreshToken: session.RefreshToken},
		out:     &out,
		mapping: refreshErrors,
	})
	if err != nil {
		return err
	}

	grant := out.grant(c.now())
	if grant.Session == nil {
		return goerrors.New("refresh response without a session", goerrors.CategoryExternal)
	}

	c.publish(workshop.AuthEventTokenRefreshed, grant.Identity, grant.Session)
	return nil
}

// Subscribe delivers the current session as initial_session, then every
// later change in order.
func (c *Client) Subscribe(fn func(workshop.SessionChange)) workshop.Subscription {
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
	var out workshop.Profile
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   participantsPath,
		query: url.Values{
			"select":         {"*"},
			"participant_id": {"eq." + ownerID},
		},
		accept:  pgrstObjectMedia,
		token:   c.bearer(),
		out:     &out,
		mapping: rowErrors,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InsertProfile(ctx context.Context, profile *workshop.Profile) (*workshop.Profile, error) {
	if profile == nil {
		return nil, goerrors.New("profile is required", goerrors.CategoryBadInput)
	}

	var out workshop.Profile
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    participantsPath,
		body:    newParticipantRow(profile),
		accept:  pgrstObjectMedia,
		prefer:  "return=representation",
		token:   c.bearer(),
		out:     &out,
		mapping: rowErrors,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AccessToken returns the current access token, or "" when signed out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// bearer is the access token, falling back to the anon key when signed out.
func (c *Client) bearer() string {
	if token := c.AccessToken(); token != "" {
		return token
	}
	return c.anonKey
}

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

type call struct {
	method  string
	path    string
	query   url.Values
	body    any
	out     any
	accept  string
	prefer  string
	token   string
	mapping func(status int, body apiError) error
}

func (c *Client) do(ctx context.Context, cl call) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("apikey", c.anonKey)
	token := cl.token
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.accept != "" {
		req.Header.Set("Accept", cl.accept)
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if cl.prefer != "" {
		req.Header.Set("Prefer", cl.prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "hosted backend request failed").
			WithMetadata(map[string]any{"path": cl.path})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.failure(resp, cl)
	}

	if cl.out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to decode hosted backend response").
			WithMetadata(map[string]any{"path": cl.path})
	}
	return nil
}

func (c *Client) failure(resp *http.Response, cl call) error {
	var body apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	if cl.mapping != nil {
		if err := cl.mapping(resp.StatusCode, body); err != nil {
			return err
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return workshop.ErrTooManyAttempts
	}

	msg := body.message()
	if msg == "" {
		msg = fmt.Sprintf("hosted backend returned %s", resp.Status)
	}

	c.logger.Debug("hosted backend error", "path", cl.path, "status", resp.StatusCode, "code", body.code())

	err := goerrors.New(msg, goerrors.CategoryExternal).
		WithCode(resp.StatusCode).
		WithMetadata(map[string]any{
			"path":   cl.path,
			"status": resp.StatusCode,
		})
	if code := body.code(); code != "" {
		err = err.WithTextCode(strings.ToUpper(code))
	}
	return err
}

func tokenErrors(status int, body apiError) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return workshop.ErrInvalidCredentials
	}
	return nil
}

// recoverErrors maps a rejected reset request to a validation failure on the
// email, never to a credentials error.
func recoverErrors(status int, body apiError) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		msg := body.message()
		if msg == "" {
			msg = "password reset request rejected"
		}
		return goerrors.New(msg, goerrors.CategoryValidation).
			WithCode(http.StatusUnprocessableEntity).
			WithTextCode(TextCodeResetRejected).
			WithMetadata(map[string]any{"code": body.code()})
	}
	return nil
}

func refreshErrors(status int, body apiError) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return workshop.ErrSessionExpired
	}
	return nil
}

func signUpErrors(status int, body apiError) error {
	code := body.code()
	if code == "user_already_exists" || code == "email_exists" {
		return workshop.ErrAccountExists
	}
	if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(body.message()), "already registered") {
		return workshop.ErrAccountExists
	}
	return nil
}

func rowErrors(status int, body apiError) error {
	switch body.code() {
	case pgrstNoRows:
		return workshop.ErrProfileNotFound
	case pgUniqueCode:
		return workshop.ErrProfileExists
	case pgrstJWTExpired:
		return workshop.ErrSessionExpired
	}
	if status == http.StatusForbidden {
		return workshop.ErrForbidden
	}
	return nil
}
