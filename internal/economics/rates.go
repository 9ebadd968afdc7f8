package economics

import (
	"math"
	"unicode/utf8"
)

// Conversion rates. They are illustrative, not audited figures.
const (
	// WaterPerToken is litres of cooling water attributed to one token.
	WaterPerToken = 0.0005
	// EnergyPerToken is watt-hours attributed to one token.
	EnergyPerToken = 0.002
	// TokenPriceUSD is the donation asked per replenished token.
	TokenPriceUSD = 0.005
	// ProductivityValuePerRequest is the financial benefit of one MEDIUM exchange;
	// other tiers scale it by their multiplier.
	ProductivityValuePerRequest = 2.50
	// BiodiversityDecayPerToken is subtracted from the biodiversity score per
	// token, scaled by the tier multiplier.
	BiodiversityDecayPerToken = 0.0001

	// CharsPerToken drives the crude token estimator.
	CharsPerToken = 4

	// InitialTokenGrant is the balance a fresh session starts with.
	InitialTokenGrant = 2500
	// InitialBiodiversityScore is the score a fresh session starts with.
	InitialBiodiversityScore = 92.0

	// DailyCoolingCapacityLiters is the cooling budget behind the reserve gauge.
	DailyCoolingCapacityLiters = 10.0
)

// EstimateTokens converts text into a token cost for the given tier:
// ceil(chars/4 × multiplier).
func EstimateTokens(text string, t Tier) int {
	chars := float64(utf8.RuneCountInString(text))
	return int(math.Ceil((chars / CharsPerToken) * Multiplier(t)))
}

// EnergyWh derives energy use from total tokens.
func EnergyWh(tokens int) float64 {
	return float64(tokens) * EnergyPerToken
}

// WaterLiters derives cooling water from total tokens.
func WaterLiters(tokens int) float64 {
	return float64(tokens) * WaterPerToken
}

// CoolingReservePercent is how much of the daily cooling capacity is left
// after using the given amount of water, floored at zero.
func CoolingReservePercent(waterLiters float64) float64 {
	return math.Max(0, 100-(waterLiters/DailyCoolingCapacityLiters)*100)
}

// Benefit is the productivity value credited for one exchange in tier t.
func Benefit(t Tier) float64 {
	return ProductivityValuePerRequest * Multiplier(t)
}

// BiodiversityDelta is how much one exchange of the given cost lowers the score.
func BiodiversityDelta(tokens int, t Tier) float64 {
	return float64(tokens) * BiodiversityDecayPerToken * Multiplier(t)
}

// ClampScore bounds a biodiversity score to [0, 100].
func ClampScore(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}

// Donation is the amount asked for replenishing the given number of tokens.
func Donation(tokens int, pricePerToken float64) float64 {
	return float64(tokens) * pricePerToken
}

// ReplenishPresets are the allocation sizes offered when topping up.
var ReplenishPresets = []int{1000, 5000, 10000}
