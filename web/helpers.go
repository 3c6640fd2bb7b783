package web

import (
	"maps"

	"github.com/goliatone/go-workshop"
)

// TemplateUserKey is the view key holding the current profile.
var TemplateUserKey = "current_user"

// TemplateHelpers are merged into every view.
//
// In templates:
//
//	{% if is_authenticated(state) %}
//	{% if is_presenter(current_user) %}
//	{{ enchant("draw the room") }}
//	{{ harmony(12, 30) }}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"is_presenter":     isPresenter,
		"enchant":          workshop.EnchantPrompt,
		"harmony":          workshop.WorkshopHarmony,
		"golden_position":  workshop.GoldenRatioPosition,

		"max_participants":    workshop.MaxParticipants,
		"resonance_frequency": workshop.ResonanceFrequency,
		"dimensional_zones":   workshop.DimensionalZones,
	}
}

// viewContext merges the helpers, the visitor state and data.
func viewContext(st workshop.State, data map[string]any) map[string]any {
	out := TemplateHelpers()
	out["state"] = st
	out[TemplateUserKey] = st.Profile
	out["authenticated"] = st.Authenticated()
	out["display_name"] = displayName(st)
	maps.Copy(out, data)
	return out
}

func displayName(st workshop.State) string {
	if st.Profile != nil && st.Profile.Name != "" {
		return st.Profile.Name
	}
	if st.Identity != nil {
		if st.Identity.Metadata.Name != "" {
			return st.Identity.Metadata.Name
		}
		return st.Identity.Email
	}
	return ""
}

func isAuthenticated(st any) bool {
	switch s := st.(type) {
	case workshop.State:
		return s.Authenticated()
	case *workshop.State:
		return s != nil && s.Authenticated()
	default:
		return false
	}
}

func isPresenter(profile any) bool {
	p, ok := profile.(*workshop.Profile)
	return ok && p != nil && p.Role == workshop.RolePresenter
}

// zone is one lobby position laid out by the golden ratio.
type zone struct {
	Index    int
	Radius   float64
	Resonant int
}

func lobbyZones(total float64) []zone {
	zones := make([]zone, 0, workshop.DimensionalZones)
	for i := 0; i < workshop.DimensionalZones; i++ {
		zones = append(zones, zone{
			Index:    i + 1,
			Radius:   workshop.GoldenRatioPosition(total, i),
			Resonant: workshop.HarmonicFrequencies[i%len(workshop.HarmonicFrequencies)],
		})
	}
	return zones
}
