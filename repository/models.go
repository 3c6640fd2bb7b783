package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the credential record behind an Identity.
type Account struct {
	bun.BaseModel     `bun:"table:accounts,alias:acc"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email             string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash      string     `bun:"password_hash,notnull" json:"-"`
	Name              string     `bun:"name" json:"name,omitempty"`
	WorkshopRole      string     `bun:"workshop_role" json:"workshop_role,omitempty"`
	EmailVerified     bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	LoginAttempts     int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt    *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt        *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	PasswordChangedAt *time.Time `bun:"password_changed_at,nullzero" json:"password_changed_at,omitempty"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AuthSession is the server side row behind an issued token pair.
type AuthSession struct {
	bun.BaseModel    `bun:"table:auth_sessions,alias:ses"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID        uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id"`
	RefreshTokenHash string     `bun:"refresh_token_hash,notnull,unique" json:"-"`
	ExpiresAt        time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	RefreshExpiresAt time.Time  `bun:"refresh_expires_at,notnull" json:"refresh_expires_at"`
	RevokedAt        *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Revoked reports whether the session was explicitly ended.
func (s *AuthSession) Revoked() bool {
	return s == nil || s.RevokedAt != nil
}

// Refreshable reports whether the refresh token can still be exchanged at now.
func (s *AuthSession) Refreshable(now time.Time) bool {
	return !s.Revoked() && now.Before(s.RefreshExpiresAt)
}

// PasswordResetStatus tracks a reset request.
type PasswordResetStatus = string

const (
	ResetRequestedStatus PasswordResetStatus = "requested"
	ResetExpiredStatus   PasswordResetStatus = "expired"
	ResetChangedStatus   PasswordResetStatus = "changed"
)

// PasswordReset records a reset email sent to an account.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
