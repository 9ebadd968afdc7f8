// Package economics holds the static unit economics of the sentinel: compute tiers,
// their cost multipliers, and the conversion rates that turn tokens into
// environmental metrics.
package economics

import (
	"fmt"
	"strings"
)

// Tier classifies the reasoning depth a request needs.
type Tier string

const (
	Low    Tier = "LOW"
	Medium Tier = "MEDIUM"
	Heavy  Tier = "HEAVY"
)

// Tiers lists every tier from cheapest to most expensive.
var Tiers = []Tier{Low, Medium, Heavy}

// Profile describes a tier. Only Multiplier, Temperature and Instruction affect
// computation; the rest is display metadata.
type Profile struct {
	Tier        Tier    `json:"tier" yaml:"tier"`
	Multiplier  float64 `json:"multiplier" yaml:"multiplier"`
	Label       string  `json:"label" yaml:"label"`
	Description string  `json:"description" yaml:"description"`
	Accent      string  `json:"accent" yaml:"accent"`

	// Temperature is the sampling temperature requested from the backend.
	Temperature float64 `json:"temperature" yaml:"temperature"`
	// Instruction is the reasoning-depth directive added to the system prompt.
	Instruction string `json:"instruction" yaml:"instruction"`
	// Deep routes the tier to the deep-reasoning model instead of the standard one.
	Deep bool `json:"deep" yaml:"deep"`
}

var profiles = map[Tier]Profile{
	Low: {
		Tier:        Low,
		Multiplier:  0.4,
		Label:       "Minimalist",
		Description: "Ideal for: Word definitions, proofreading, simple logic. Minimal grid impact.",
		Accent:      "blue",
		Temperature: 0.6,
		Instruction: "You are in LOW compute mode. Be as brief and efficient as possible, using minimal tokens.",
	},
	Medium: {
		Tier:        Medium,
		Multiplier:  1.0,
		Label:       "Balanced",
		Description: "Ideal for: Creative writing, summarization, general chat. Optimized throughput.",
		Accent:      "green",
		Temperature: 0.6,
		Instruction: "You are in MEDIUM compute mode. Provide helpful, balanced responses.",
	},
	Heavy: {
		Tier:        Heavy,
		Multiplier:  2.8,
		Label:       "Deep Reason",
		Description: "Ideal for: Complex coding, multi-step math, deep research. High thermal output.",
		Accent:      "amber",
		Temperature: 0.9,
		Instruction: "You are in HEAVY compute mode. Provide deeply reasoned, thorough, and precise answers.",
		Deep:        true,
	},
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	_, ok := profiles[t]
	return ok
}

func (t Tier) String() string {
	return string(t)
}

// ProfileOf returns the profile for t. Unknown values resolve to the MEDIUM
// profile, the same fail-safe the classifier applies to unparseable output.
func ProfileOf(t Tier) Profile {
	if p, ok := profiles[t]; ok {
		return p
	}
	return profiles[Medium]
}

// Multiplier returns the cost multiplier of t.
func Multiplier(t Tier) float64 {
	return ProfileOf(t).Multiplier
}

// Profiles returns the whole table ordered as Tiers.
func Profiles() []Profile {
	out := make([]Profile, 0, len(Tiers))
	for _, t := range Tiers {
		out = append(out, profiles[t])
	}
	return out
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown compute tier %q (want LOW, MEDIUM or HEAVY)", s)
	}
	return t, nil
}

// MatchTier extracts a tier from free-form classifier output. HEAVY wins over
// LOW; anything else is MEDIUM. It never fails.
func MatchTier(output string) Tier {
	upper := strings.ToUpper(strings.TrimSpace(output))
	switch {
	case strings.Contains(upper, string(Heavy)):
		return Heavy
	case strings.Contains(upper, string(Low)):
		return Low
	default:
		return Medium
	}
}

// UnmarshalText lets tiers be decoded from YAML, JSON and env values.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t), nil
}
