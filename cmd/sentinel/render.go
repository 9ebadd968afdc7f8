package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/ledger"
)

var (
	colorText   = lipgloss.Color("#FFFCF0")
	colorMuted  = lipgloss.Color("#6F6E69")
	colorBorder = lipgloss.Color("#282726")
	colorRed    = lipgloss.Color("#D14D41")

	// tier accents
	accents = map[string]lipgloss.Color{
		"blue":  lipgloss.Color("#4385BE"),
		"green": lipgloss.Color("#879A39"),
		"amber": lipgloss.Color("#D0A215"),
	}
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
)

func tierStyle(t economics.Tier) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(accents[economics.ProfileOf(t).Accent])
}

// renderStatus draws the ledger panel shown after each exchange.
func renderStatus(s ledger.Snapshot) string {
	mode := "MANUAL"
	if s.AutoMode {
		mode = "AUTO"
	}
	rows := [][2]string{
		{"tier", tierStyle(s.ActiveTier).Render(s.ActiveTier.String()) + labelStyle.Render(" ("+mode+")")},
		{"tokens", fmt.Sprintf("%d remaining, %d used", s.TokensRemaining, s.Metrics.TokensUsed)},
		{"water", fmt.Sprintf("%.4f L (cooling reserve %.1f%%)", s.WaterUsedLiters, s.CoolingReservePercent)},
		{"energy", fmt.Sprintf("%.4f Wh", s.EnergyConsumedWh)},
		{"biodiversity", fmt.Sprintf("%.3f / 100", s.Metrics.Biodiversity)},
		{"benefit", fmt.Sprintf("$%.2f", s.Metrics.FinancialBenefit)},
		{"donated", fmt.Sprintf("$%.2f", s.TotalDonated)},
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%-13s", r[0]))+valueStyle.Render(r[1]))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// renderReply prints a model message with its tier tag.
func renderReply(m ledger.Message) string {
	tag := tierStyle(m.Tier).Render("[" + m.Tier.String() + "]")
	if m.Content == ledger.UnavailableNotice {
		return tag + " " + errorStyle.Render(m.Content)
	}
	return tag + "\n" + m.Content
}

// renderTiers draws the unit economics table.
func renderTiers() string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("TIER", "LABEL", "MULTIPLIER", "TEMPERATURE", "MODEL", "GUIDANCE")
	for _, p := range economics.Profiles() {
		model := "standard"
		if p.Deep {
			model = "deep"
		}
		t.Row(p.Tier.String(), p.Label, fmt.Sprintf("%.1fx", p.Multiplier), fmt.Sprintf("%.1f", p.Temperature), model, p.Description)
	}
	return t.Render()
}

func renderDonationQuotes(s ledger.Snapshot) string {
	parts := make([]string, 0, len(s.DonationPresets))
	for _, q := range s.DonationPresets {
		parts = append(parts, fmt.Sprintf("%d tokens = $%.2f", q.Tokens, q.Donation))
	}
	return labelStyle.Render("replenish presets: " + strings.Join(parts, ", "))
}
