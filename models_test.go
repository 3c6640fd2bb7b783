package workshop

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfileDefaults(t *testing.T) {
	p := NewProfile("user-1", "  Ada ")

	assert.Equal(t, "user-1", p.OwnerID)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, RoleParticipant, p.Role)
	assert.Equal(t, 0.0, p.EngagementStrength)
	assert.Equal(t, ConnectionGood, p.ConnectionQuality)
	assert.Equal(t, Preferences{
		VibrationLevel: 0.5,
		ColorHarmony:   ColorMystical,
		GlyphLanguage:  GlyphEnglish,
		SoundAmbiance:  false,
	}, p.Preferences)
	assert.NoError(t, p.Validate())
}

func TestProfileValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Profile)
	}{
		{name: "missing owner", mutate: func(p *Profile) { p.OwnerID = "" }},
		{name: "unknown role", mutate: func(p *Profile) { p.Role = "guest" }},
		{name: "negative engagement", mutate: func(p *Profile) { p.EngagementStrength = -1 }},
		{name: "vibration out of range", mutate: func(p *Profile) { p.Preferences.VibrationLevel = 1.5 }},
		{name: "unknown harmony", mutate: func(p *Profile) { p.Preferences.ColorHarmony = "neon" }},
		{name: "unknown connection", mutate: func(p *Profile) { p.ConnectionQuality = "lost" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProfile("user-1", "Ada")
			tc.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestProfileCloneIsDeep(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewProfile("user-1", "Ada")
	p.CreatedAt = &created

	c := p.Clone()
	require.NotNil(t, c)
	c.Name = "Bob"
	*c.CreatedAt = created.Add(time.Hour)

	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, created, *p.CreatedAt)

	var nilProfile *Profile
	assert.Nil(t, nilProfile.Clone())
}

func TestIdentityJSONOmitsUnknownCreatedAt(t *testing.T) {
	raw, err := json.Marshal(Identity{ID: "user-1", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "created_at")

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err = json.Marshal(Identity{ID: "user-1", CreatedAt: &created})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"created_at":"2024-03-01T12:00:00Z"`)

	clone := cloneIdentity(&Identity{ID: "user-1", CreatedAt: &created})
	require.NotNil(t, clone.CreatedAt)
	assert.NotSame(t, &created, clone.CreatedAt)
	assert.True(t, created.Equal(*clone.CreatedAt))
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s := &Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now))
	assert.Equal(t, time.Minute, s.ExpiresIn(now))

	assert.True(t, s.Expired(now.Add(time.Minute)))
	assert.Equal(t, time.Duration(0), s.ExpiresIn(now.Add(2*time.Minute)))

	var missing *Session
	assert.True(t, missing.Expired(now))
	assert.False(t, (&Session{}).Expired(now))
}

func TestDisplayNameFor(t *testing.T) {
	assert.Equal(t, "Ada", displayNameFor(" Ada ", "a@example.com"))
	assert.Equal(t, "carol", displayNameFor("", "carol@example.com"))
	assert.Equal(t, "", displayNameFor("", "no-at-sign"))
}

func TestRegistrationValidate(t *testing.T) {
	assert.NoError(t, newRegistration("a@example.com", "secret", "").Validate())
	assert.Error(t, newRegistration("a@example.com", "short", "Ada").Validate())
	assert.Error(t, newRegistration("a@example.com", string(make([]byte, 73)), "Ada").Validate())
	assert.Error(t, newRegistration("bad", "secret1", "Ada").Validate())
}
