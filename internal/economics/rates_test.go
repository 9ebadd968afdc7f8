package economics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		tier Tier
		want int
	}{
		{"empty", "", Medium, 0},
		{"forty chars medium", strings.Repeat("a", 40), Medium, 10},
		{"two hundred chars medium", strings.Repeat("a", 200), Medium, 50},
		{"rounds up", "abcde", Medium, 2},
		{"low discount", strings.Repeat("a", 40), Low, 4},
		{"heavy premium", strings.Repeat("a", 40), Heavy, 28},
		{"counts runes not bytes", "ééééé", Medium, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text, tt.tier))
		})
	}
}

func TestDerivedMetrics(t *testing.T) {
	assert.InDelta(t, 0.12, EnergyWh(60), 1e-12)
	assert.InDelta(t, 0.03, WaterLiters(60), 1e-12)
	assert.InDelta(t, 2.5, Benefit(Medium), 1e-12)
	assert.InDelta(t, 7.0, Benefit(Heavy), 1e-12)
	assert.InDelta(t, 0.006, BiodiversityDelta(60, Medium), 1e-12)
}

func TestCoolingReservePercent(t *testing.T) {
	assert.Equal(t, 100.0, CoolingReservePercent(0))
	assert.InDelta(t, 50.0, CoolingReservePercent(5), 1e-9)
	assert.Equal(t, 0.0, CoolingReservePercent(25))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-3))
	assert.Equal(t, 100.0, ClampScore(140))
	assert.Equal(t, 42.5, ClampScore(42.5))
}

func TestDonation(t *testing.T) {
	assert.InDelta(t, 25.0, Donation(5000, TokenPriceUSD), 1e-9)
}

func TestNodeByID(t *testing.T) {
	n, ok := NodeByID("nor-1")
	assert.True(t, ok)
	assert.Equal(t, "Atlantic Coast", n.Name)

	_, ok = NodeByID("missing")
	assert.False(t, ok)
}
