package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workshop"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAnonKey = "anon-key"

type hostedUser struct {
	id       string
	email    string
	password string
	meta     workshop.AccountMetadata
}

// hostedFake mimics the auth and rows endpoints of the hosted service.
type hostedFake struct {
	t *testing.T

	mu           sync.Mutex
	users        map[string]*hostedUser
	tokens       map[string]string
	refresh      map[string]string
	participants map[string]*workshop.Profile
	requests     []*http.Request
	issued       int
	logoutStatus int
}

func newHostedFake(t *testing.T) (*hostedFake, *httptest.Server) {
	f := &hostedFake{
		t:            t,
		users:        map[string]*hostedUser{},
		tokens:       map[string]string{},
		refresh:      map[string]string{},
		participants: map[string]*workshop.Profile{},
		logoutStatus: http.StatusNoContent,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", f.token)
	mux.HandleFunc("/auth/v1/signup", f.signup)
	mux.HandleFunc("/auth/v1/logout", f.logout)
	mux.HandleFunc("/auth/v1/recover", f.recover)
	mux.HandleFunc("/rest/v1/participants", f.rows)
	mux.HandleFunc("/rest/v1/broken", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "boom", "code": "XX000"})
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(context.Background()))
		f.mu.Unlock()

		if r.Header.Get("apikey") != testAnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "No API key found in request"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *hostedFake) addUser(email, password string) *hostedUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &hostedUser{id: uuid.NewString(), email: email, password: password}
	f.users[email] = u
	return u
}

func (f *hostedFake) lastRequest(path string) *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].URL.Path == path {
			return f.requests[i]
		}
	}
	return nil
}

// issueLocked must be called with f.mu held.
func (f *hostedFake) issueLocked(w http.ResponseWriter, u *hostedUser) {
	f.issued++
	access := fmt.Sprintf("access-%d", f.issued)
	refresh := fmt.Sprintf("refresh-%d", f.issued)
	f.tokens[access] = u.id
	f.refresh[refresh] = u.email

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": refresh,
		"user": map[string]any{
			"id":            u.id,
			"email":         u.email,
			"user_metadata": u.meta,
		},
	})
}

func (f *hostedFake) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Query().Get("grant_type") {
	case "password":
		var req passwordGrantRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		u, ok := f.users[req.Email]
		if !ok || u.password != req.Password {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		f.issueLocked(w, u)
	case "refresh_token":
		var req refreshGrantRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		email, ok := f.refresh[req.RefreshToken]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		delete(f.refresh, req.RefreshToken)
		f.issueLocked(w, f.users[email])
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
	}
}

func (f *hostedFake) signup(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[req.Email]; ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":       422,
			"error_code": "user_already_exists",
			"msg":        "User already registered",
		})
		return
	}

	u := &hostedUser{id: uuid.NewString(), email: req.Email, password: req.Password, meta: req.Data}
	f.users[req.Email] = u
	f.issueLocked(w, u)
}

func (f *hostedFake) logout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	delete(f.tokens, token)
	if f.logoutStatus >= http.StatusBadRequest {
		writeJSON(w, f.logoutStatus, map[string]any{"msg": "logout failed"})
		return
	}
	w.WriteHeader(f.logoutStatus)
}

func (f *hostedFake) recover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	if req.Email == "bounced@example.com" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":       400,
			"error_code": "validation_failed",
			"msg":        "Unable to validate email address: invalid format",
		})
		return
	}
	if req.Email == "throttled@example.com" {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"code":       429,
			"error_code": "over_email_send_rate_limit",
			"msg":        "email rate limit exceeded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *hostedFake) rows(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "expired" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "PGRST301", "message": "JWT expired"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		owner := strings.TrimPrefix(r.URL.Query().Get("participant_id"), "eq.")
		p, ok := f.participants[owner]
		if !ok {
			writeJSON(w, http.StatusNotAcceptable, map[string]any{
				"code":    "PGRST116",
				"message": "JSON object requested, multiple (or no) rows returned",
				"details": "The result contains 0 rows",
			})
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPost:
		if _, ok := f.tokens[token]; !ok {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"code":    "42501",
				"message": "new row violates row-level security policy",
			})
			return
		}
		var row participantRow
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&row))
		if _, ok := f.participants[row.ParticipantID]; ok {
			writeJSON(w, http.StatusConflict, map[string]any{
				"code":    "23505",
				"message": "duplicate key value violates unique constraint",
			})
			return
		}
		now := time.Now().UTC()
		p := &workshop.Profile{
			ID:                 uuid.New(),
			OwnerID:            row.ParticipantID,
			Name:               row.Name,
			Role:               row.Role,
			EngagementStrength: row.EngagementStrength,
			Preferences:        row.Preferences,
			ConnectionQuality:  row.ConnectionQuality,
			CreatedAt:          &now,
			UpdatedAt:          &now,
		}
		f.participants[row.ParticipantID] = p
		writeJSON(w, http.StatusCreated, p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	opts = append([]Option{WithLogger(workshop.NopLogger()), WithHTTPClient(srv.Client())}, opts...)
	client, err := New(srv.URL, testAnonKey, opts...)
	require.NoError(t, err)
	return client
}

func TestNewValidatesSettings(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		key     string
		missing []string
	}{
		{name: "both missing", missing: []string{"url", "anon key"}},
		{name: "missing key", url: "https://example.supabase.co", missing: []string{"anon key"}},
		{name: "missing url", key: "key", missing: []string{"url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.url, tt.key)
			require.Error(t, err)
			assert.True(t, goerrors.IsValidation(err))

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, "BACKEND_CONFIG_MISSING", richErr.TextCode)
			assert.Equal(t, tt.missing, richErr.Metadata["missing"])
		})
	}

	_, err := New("not a url", "key")
	require.Error(t, err)
	assert.True(t, goerrors.IsValidation(err))

	client, err := New("https://example.supabase.co/", "key")
	require.NoError(t, err)
	assert.Equal(t, "https://example.supabase.co", client.baseURL.String())
	assert.Empty(t, client.AccessToken())
}

func TestClientDrivesStore(t *testing.T) {
	fake, srv := newHostedFake(t)
	client := newTestClient(t, srv)
	store := workshop.NewStore(client, client, workshop.WithStoreLogger(workshop.NopLogger()))
	ctx := context.Background()

	sub, err := store.Initialize(ctx)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	st := store.State()
	assert.True(t, st.Initialized)
	assert.Nil(t, st.Identity)

	require.NoError(t, store.SignUp(ctx, "ada@example.com", "secret1", "Ada"))

	st = store.State()
	require.NotNil(t, st.Identity)
	require.NotNil(t, st.Session)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "ada@example.com", st.Identity.Email)
	assert.Equal(t, "Ada", st.Identity.Metadata.Name)
	assert.Equal(t, workshop.RoleParticipant, st.Identity.Metadata.WorkshopRole)
	assert.Equal(t, st.Identity.ID, st.Profile.OwnerID)
	assert.Equal(t, workshop.DefaultPreferences(), st.Profile.Preferences)
	assert.Equal(t, workshop.ConnectionGood, st.Profile.ConnectionQuality)

	insert := fake.lastRequest("/rest/v1/participants")
	require.NotNil(t, insert)
	assert.Equal(t, "Bearer "+st.Session.AccessToken, insert.Header.Get("Authorization"))

	store.SignOut(ctx)

	st = store.State()
	assert.Nil(t, st.Identity)
	assert.Nil(t, st.Profile)
	assert.Empty(t, client.AccessToken())

	require.NoError(t, store.SignIn(ctx, "ada@example.com", "secret1"))

	st = store.State()
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Ada", st.Profile.Name)
	assert.False(t, st.Loading)
}

func TestVerifyCredentialsInvalid(t *testing.T) {
	fake, srv := newHostedFake(t)
	fake.addUser("ada@example.com", "secret1")
	client := newTestClient(t, srv)

	_, err := client.VerifyCredentials(context.Background(), "ada@example.com", "nope")
	require.Error(t, err)
	assert.True(t, workshop.IsInvalidCredentials(err))

	req := fake.lastRequest("/auth/v1/token")
	require.NotNil(t, req)
	assert.Equal(t, "password", req.URL.Query().Get("grant_type"))
	assert.Equal(t, "Bearer "+testAnonKey, req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestCreateAccountExists(t *testing.T) {
	fake, srv := newHostedFake(t)
	fake.addUser("ada@example.com", "secret1")
	client := newTestClient(t, srv)

	_, err := client.CreateAccount(context.Background(), "ada@example.com", "secret1", workshop.AccountMetadata{Name: "Ada"})
	require.Error(t, err)
	assert.True(t, workshop.IsAccountExists(err))
}

func TestSendPasswordReset(t *testing.T) {
	_, srv := newHostedFake(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.SendPasswordReset(ctx, "ada@example.com"))

	err := client.SendPasswordReset(ctx, "throttled@example.com")
	require.Error(t, err)
	assert.True(t, workshop.HasTextCode(err, workshop.TextCodeTooManyAttempts))

	err = client.SendPasswordReset(ctx, "bounced@example.com")
	require.Error(t, err)
	assert.False(t, workshop.IsInvalidCredentials(err))
	assert.True(t, goerrors.IsValidation(err))
	assert.True(t, workshop.HasTextCode(err, TextCodeResetRejected))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "Unable to validate email address: invalid format", richErr.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, richErr.Code)
}

func TestFindProfileMapsRowErrors(t *testing.T) {
	fake, srv := newHostedFake(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	_, err := client.FindProfile(ctx, "missing")
	require.Error(t, err)
	assert.True(t, workshop.IsProfileNotFound(err))

	req := fake.lastRequest("/rest/v1/participants")
	require.NotNil(t, req)
	assert.Equal(t, pgrstObjectMedia, req.Header.Get("Accept"))
	assert.Equal(t, "eq.missing", req.URL.Query().Get("participant_id"))
	assert.Equal(t, "*", req.URL.Query().Get("select"))
	assert.Equal(t, "Bearer "+testAnonKey, req.Header.Get("Authorization"))

	expired := newTestClient(t, srv, WithGrant(&workshop.Grant{
		Identity: &workshop.Identity{ID: "user-a"},
		Session:  &workshop.Session{AccessToken: "expired", UserID: "user-a"},
	}))
	_, err = expired.FindProfile(ctx, "user-a")
	require.Error(t, err)
	assert.True(t, workshop.IsSessionExpired(err))
}

func TestInsertProfileMapsRowErrors(t *testing.T) {
	_, srv := newHostedFake(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	_, err := client.InsertProfile(ctx, workshop.NewProfile("user-a", "Ada"))
	require.Error(t, err)
	assert.True(t, workshop.HasTextCode(err, workshop.TextCodeForbidden))

	grant, err := client.CreateAccount(ctx, "ada@example.com", "secret1", workshop.AccountMetadata{Name: "Ada"})
	require.NoError(t, err)

	created, err := client.InsertProfile(ctx, workshop.NewProfile(grant.Identity.ID, "Ada"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "Ada", created.Name)
	require.NotNil(t, created.CreatedAt)

	_, err = client.InsertProfile(ctx, workshop.NewProfile(grant.Identity.ID, "Ada"))
	require.Error(t, err)
	assert.True(t, workshop.IsProfileExists(err))

	found, err := client.FindProfile(ctx, grant.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestUnexpectedStatusIsExternal(t *testing.T) {
	_, srv := newHostedFake(t)
	client := newTestClient(t, srv)

	err := client.do(context.Background(), call{method: http.MethodGet, path: "/rest/v1/broken"})
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryExternal))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, http.StatusInternalServerError, richErr.Code)
	assert.Equal(t, "XX000", richErr.TextCode)
	assert.Equal(t, "boom", richErr.Message)
}

func TestSubscribeDeliversInitialThenChanges(t *testing.T) {
	fake, srv := newHostedFake(t)
	fake.addUser("ada@example.com", "secret1")
	client := newTestClient(t, srv)
	ctx := context.Background()

	var events []workshop.AuthEvent
	sub := client.Subscribe(func(change workshop.SessionChange) {
		events = append(events, change.Event)
	})

	_, err := client.VerifyCredentials(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	first := client.AccessToken()

	require.NoError(t, client.RefreshSession(ctx))
	assert.NotEqual(t, first, client.AccessToken())

	require.NoError(t, client.SignOut(ctx))
	sub.Unsubscribe()

	require.NoError(t, client.SignOut(ctx))

	assert.Equal(t, []workshop.AuthEvent{
		workshop.AuthEventInitialSession,
		workshop.AuthEventSignedIn,
		workshop.AuthEventTokenRefreshed,
		workshop.AuthEventSignedOut,
	}, events)
}

func TestRefreshSessionRequiresSession(t *testing.T) {
	_, srv := newHostedFake(t)
	client := newTestClient(t, srv)

	err := client.RefreshSession(context.Background())
	require.ErrorIs(t, err, workshop.ErrNoSession)
}

func TestWithGrantRestoresSession(t *testing.T) {
	_, srv := newHostedFake(t)
	grant := &workshop.Grant{
		Identity: &workshop.Identity{ID: "user-a", Email: "ada@example.com"},
		Session:  &workshop.Session{AccessToken: "restored", UserID: "user-a"},
	}
	client := newTestClient(t, srv, WithGrant(grant))

	var initial workshop.SessionChange
	sub := client.Subscribe(func(change workshop.SessionChange) {
		if change.Event == workshop.AuthEventInitialSession {
			initial = change
		}
	})
	defer sub.Unsubscribe()

	assert.True(t, initial.HasSession())
	assert.Equal(t, "user-a", initial.Identity.ID)
	assert.Equal(t, "restored", client.AccessToken())
}

func TestSignOutClearsOnRemoteFailure(t *testing.T) {
	fake, srv := newHostedFake(t)
	fake.addUser("ada@example.com", "secret1")
	fake.logoutStatus = http.StatusInternalServerError
	client := newTestClient(t, srv)
	ctx := context.Background()

	_, err := client.VerifyCredentials(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	err = client.SignOut(ctx)
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryExternal))
	assert.Empty(t, client.AccessToken())
}

func TestTokenResponseGrant(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	bare := tokenResponse{userResponse: userResponse{ID: "user-a", Email: "ada@example.com"}}
	grant := bare.grant(now)
	require.NotNil(t, grant.Identity)
	assert.Equal(t, "user-a", grant.Identity.ID)
	assert.Nil(t, grant.Session)

	full := tokenResponse{
		AccessToken: "access",
		ExpiresIn:   60,
		User:        &userResponse{ID: "user-a"},
	}
	grant = full.grant(now)
	require.NotNil(t, grant.Session)
	assert.Equal(t, now.Add(time.Minute), grant.Session.ExpiresAt)
	assert.Equal(t, "bearer", grant.Session.TokenType)
	assert.Equal(t, "user-a", grant.Session.UserID)

	full.ExpiresAt = now.Add(time.Hour).Unix()
	assert.True(t, full.grant(now).Session.ExpiresAt.Equal(now.Add(time.Hour)))
}
