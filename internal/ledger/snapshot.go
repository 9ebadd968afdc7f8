package ledger

import "github.com/ecoai/sentinel/internal/economics"

// Snapshot is a consistent copy of the ledger with the derived metrics filled in.
type Snapshot struct {
	SessionID             string          `json:"sessionId"`
	Started               bool            `json:"started"`
	TokensRemaining       int             `json:"tokensRemaining"`
	TotalDonated          float64         `json:"totalDonated"`
	ActiveTier            economics.Tier  `json:"activeTier"`
	AutoMode              bool            `json:"autoMode"`
	Busy                  bool            `json:"busy"`
	PendingRequest        string          `json:"pendingInitialRequest,omitempty"`
	Metrics               Metrics         `json:"metrics"`
	EnergyConsumedWh      float64         `json:"energyConsumedWh"`
	WaterUsedLiters       float64         `json:"waterUsedLiters"`
	CoolingReservePercent float64         `json:"coolingReservePercent"`
	DonationPresets       []DonationQuote `json:"donationPresets"`
	History               []Message       `json:"history"`
}

// DonationQuote prices one replenishment preset.
type DonationQuote struct {
	Tokens   int     `json:"tokens"`
	Donation float64 `json:"donationUsd"`
}

// Snapshot returns the current state.
func (l *Ledger) Snapshot() Snapshot {
	busy := l.Busy()

	l.mu.RLock()
	defer l.mu.RUnlock()

	water := economics.WaterLiters(l.metrics.TokensUsed)
	quotes := make([]DonationQuote, 0, len(economics.ReplenishPresets))
	for _, n := range economics.ReplenishPresets {
		quotes = append(quotes, DonationQuote{Tokens: n, Donation: economics.Donation(n, l.price)})
	}

	return Snapshot{
		SessionID:             l.id,
		Started:               l.started,
		TokensRemaining:       l.tokens,
		TotalDonated:          l.donated,
		ActiveTier:            l.tier,
		AutoMode:              l.autoMode,
		Busy:                  busy,
		PendingRequest:        l.pendingRequest,
		Metrics:               l.metrics,
		EnergyConsumedWh:      economics.EnergyWh(l.metrics.TokensUsed),
		WaterUsedLiters:       water,
		CoolingReservePercent: economics.CoolingReservePercent(water),
		DonationPresets:       quotes,
		History:               append([]Message(nil), l.history...),
	}
}
