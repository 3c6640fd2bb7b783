package workshop

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ParticipantRole is the workshop role of a profile.
type ParticipantRole string

const (
	RolePresenter   ParticipantRole = "presenter"
	RoleParticipant ParticipantRole = "participant"
)

// ConnectionQuality tags the last observed connection health.
type ConnectionQuality string

const (
	ConnectionExcellent ConnectionQuality = "excellent"
	ConnectionGood      ConnectionQuality = "good"
	ConnectionPoor      ConnectionQuality = "poor"
)

// ColorHarmony is the interface color scheme.
type ColorHarmony string

const (
	ColorWarm     ColorHarmony = "warm"
	ColorCool     ColorHarmony = "cool"
	ColorMystical ColorHarmony = "mystical"
)

// GlyphLanguage is the interface copy variant.
type GlyphLanguage string

const (
	GlyphEnglish   GlyphLanguage = "english"
	GlyphEnchanted GlyphLanguage = "enchanted"
)

// AccountMetadata is attached to an account when it is created.
type AccountMetadata struct {
	Name         string          `json:"name,omitempty"`
	WorkshopRole ParticipantRole `json:"workshop_role,omitempty"`
}

// Identity is the authenticated principal issued by the backend.
type Identity struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Metadata  AccountMetadata `json:"user_metadata"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

// Session is a time bounded grant for an Identity.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// ExpiresIn is the remaining lifetime, zero once expired.
func (s *Session) ExpiresIn(now time.Time) time.Duration {
	if s == nil || s.ExpiresAt.IsZero() {
		return 0
	}
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Grant is what the backend returns after verifying or creating an account.
type Grant struct {
	Identity *Identity `json:"user"`
	Session  *Session  `json:"session,omitempty"`
}

// Preferences are the per profile interface settings.
type Preferences struct {
	VibrationLevel float64       `json:"vibration_level"`
	ColorHarmony   ColorHarmony  `json:"color_harmony"`
	GlyphLanguage  GlyphLanguage `json:"glyph_language"`
	SoundAmbiance  bool          `json:"sound_ambiance"`
}

// DefaultPreferences is the bundle every new profile starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		VibrationLevel: 0.5,
		ColorHarmony:   ColorMystical,
		GlyphLanguage:  GlyphEnglish,
		SoundAmbiance:  false,
	}
}

func (p Preferences) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.VibrationLevel, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&p.ColorHarmony, validation.Required, validation.In(ColorWarm, ColorCool, ColorMystical)),
		validation.Field(&p.GlyphLanguage, validation.Required, validation.In(GlyphEnglish, GlyphEnchanted)),
	)
}

// Profile is the application record attached one to one to an Identity.
type Profile struct {
	bun.BaseModel      `bun:"table:participants,alias:prt"`
	ID                 uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OwnerID            string            `bun:"participant_id,notnull,unique" json:"participant_id"`
	Name               string            `bun:"name,notnull" json:"name"`
	Role               ParticipantRole   `bun:"role,notnull" json:"role"`
	EngagementStrength float64           `bun:"engagement_strength,notnull" json:"engagement_strength"`
	Preferences        Preferences       `bun:"preferences,type:jsonb" json:"preferences"`
	ConnectionQuality  ConnectionQuality `bun:"connection_quality,notnull" json:"connection_quality"`
	CreatedAt          *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time        `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NewProfile builds the row inserted after a successful sign up.
func NewProfile(ownerID, name string) *Profile {
	return &Profile{
		OwnerID:            ownerID,
		Name:               strings.TrimSpace(name),
		Role:               RoleParticipant,
		EngagementStrength: 0,
		Preferences:        DefaultPreferences(),
		ConnectionQuality:  ConnectionGood,
	}
}

func (p *Profile) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.OwnerID, validation.Required),
		validation.Field(&p.Role, validation.Required, validation.In(RolePresenter, RoleParticipant)),
		validation.Field(&p.EngagementStrength, validation.Min(0.0)),
		validation.Field(&p.Preferences),
		validation.Field(&p.ConnectionQuality, validation.Required, validation.In(ConnectionExcellent, ConnectionGood, ConnectionPoor)),
	)
}

// Clone returns a deep copy safe to hand out from the store.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.CreatedAt != nil {
		t := *p.CreatedAt
		c.CreatedAt = &t
	}
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}
