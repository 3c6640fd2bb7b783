package rest

import (
	"time"

	"github.com/goliatone/go-workshop"
)

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrantRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type signUpRequest struct {
	Email    string                   `json:"email"`
	Password string                   `json:"password"`
	Data     workshop.AccountMetadata `json:"data"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type userResponse struct {
	ID           string                   `json:"id"`
	Email        string                   `json:"email"`
	UserMetadata workshop.AccountMetadata `json:"user_metadata"`
	CreatedAt    *time.Time               `json:"created_at"`
}

func (u *userResponse) identity() *workshop.Identity {
	if u == nil || u.ID == "" {
		return nil
	}
	return &workshop.Identity{
		ID:        u.ID,
		Email:     u.Email,
		Metadata:  u.UserMetadata,
		CreatedAt: u.CreatedAt,
	}
}

// tokenResponse covers both the token endpoint and signup. Signup returns
// the bare user, without tokens, while email confirmation is pending.
type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`

	userResponse
}

func (t tokenResponse) grant(now time.Time) *workshop.Grant {
	user := t.User
	if user == nil {
		user = &t.userResponse
	}

	grant := &workshop.Grant{Identity: user.identity()}
	if t.AccessToken == "" || grant.Identity == nil {
		return grant
	}

	expiresAt := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	if t.ExpiresAt > 0 {
		expiresAt = time.Unix(t.ExpiresAt, 0)
	}

	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	grant.Session = &workshop.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
		UserID:       grant.Identity.ID,
	}
	return grant
}

// participantRow is the insert payload; id and timestamps are generated by
// the database.
type participantRow struct {
	ParticipantID      string                     `json:"participant_id"`
	Name               string                     `json:"name"`
	Role               workshop.ParticipantRole   `json:"role"`
	EngagementStrength float64                    `json:"engagement_strength"`
	Preferences        workshop.Preferences       `json:"preferences"`
	ConnectionQuality  workshop.ConnectionQuality `json:"connection_quality"`
}

func newParticipantRow(p *workshop.Profile) participantRow {
	return participantRow{
		ParticipantID:      p.OwnerID,
		Name:               p.Name,
		Role:               p.Role,
		EngagementStrength: p.EngagementStrength,
		Preferences:        p.Preferences,
		ConnectionQuality:  p.ConnectionQuality,
	}
}

// apiError is the union of GoTrue and PostgREST error bodies.
type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	ErrorCode        string `json:"error_code"`
	Code             any    `json:"code"`
	Message          string `json:"message"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
}

func (e apiError) message() string {
	for _, m := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

// code returns the machine readable code. GoTrue sends a numeric code next
// to error_code, PostgREST a string code.
func (e apiError) code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	if s, ok := e.Code.(string); ok && s != "" {
		return s
	}
	return e.Error
}
