package workshop_test

import (
	"testing"

	"github.com/goliatone/go-workshop"
	"github.com/stretchr/testify/assert"
)

func TestEnchantPrompt(t *testing.T) {
	assert.Equal(t, "a red fox manifested through quantum observation", workshop.EnchantPrompt("a red fox"))
}

func TestGoldenRatioPosition(t *testing.T) {
	assert.InDelta(t, 100.0, workshop.GoldenRatioPosition(100, 0), 1e-9)
	assert.InDelta(t, 100/1.618, workshop.GoldenRatioPosition(100, 1), 1e-9)
	assert.InDelta(t, 100/(1.618*1.618), workshop.GoldenRatioPosition(100, 2), 1e-9)
}

func TestWorkshopHarmony(t *testing.T) {
	tests := []struct {
		name         string
		participants int
		observations int
		expected     float64
	}{
		{name: "no participants", participants: 0, observations: 10, expected: 0},
		{name: "sparse", participants: 4, observations: 2, expected: 12.5},
		{name: "capped", participants: 2, observations: 40, expected: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, workshop.WorkshopHarmony(tt.participants, tt.observations), 1e-9)
		})
	}
}
