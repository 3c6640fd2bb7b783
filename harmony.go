package workshop

import "math"

const (
	MaxParticipants      = 15
	ResonanceFrequency   = 432
	GoldenRatio          = 1.618
	DimensionalZones     = 8
	CosmicWebConnections = 42
	ObservationThreshold = 0.75
)

var (
	SacredGeometry      = []int{1, 1, 2, 3, 5, 8, 13}
	HarmonicFrequencies = []int{432, 528, 639, 741, 852}
)

// EnchantPrompt decorates a creative prompt.
func EnchantPrompt(prompt string) string {
	return prompt + " manifested through quantum observation"
}

// GoldenRatioPosition scales total down by GoldenRatio once per index step.
func GoldenRatioPosition(total float64, index int) float64 {
	return total * math.Pow(GoldenRatio, -float64(index))
}

// WorkshopHarmony scores interaction density on a 0..100 scale.
func WorkshopHarmony(participants, observations int) float64 {
	if participants <= 0 {
		return 0
	}
	return math.Min(100, float64(observations)/float64(participants)*25)
}
