package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/ledger"
)

var errUnknownCommand = errors.New("unknown command (try /tier, /auto, /replenish, /status, /quit)")

// slashCommand is one parsed REPL command.
type slashCommand struct {
	name string
	arg  string
}

// parseSlash splits "/name arg". ok is false for ordinary prompts.
func parseSlash(line string) (slashCommand, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return slashCommand{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return slashCommand{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// runSlash applies cmd to l and returns the text to show. quit ends the REPL.
func runSlash(l *ledger.Ledger, cmd slashCommand) (out string, quit bool, err error) {
	switch cmd.name {
	case "quit", "exit", "q":
		return "", true, nil

	case "status":
		s := l.Snapshot()
		return renderStatus(s) + "\n" + renderDonationQuotes(s), false, nil

	case "auto":
		if l.ToggleAutoMode() {
			return "auto classification on", false, nil
		}
		return "auto classification off", false, nil

	case "tier":
		tier, err := economics.ParseTier(cmd.arg)
		if err != nil {
			return "", false, err
		}
		if !l.SetTier(tier) {
			return "", false, errors.New("manual tier selection is disabled while auto mode is on (use /auto first)")
		}
		return "tier set to " + tier.String(), false, nil

	case "replenish":
		amount, err := strconv.Atoi(cmd.arg)
		if err != nil {
			return "", false, fmt.Errorf("replenish amount %q: %w", cmd.arg, err)
		}
		if !l.Replenish(amount, l.PricePerToken()) {
			return "", false, errors.New("amount must be positive")
		}
		return fmt.Sprintf("added %d tokens, donated $%.2f", amount, economics.Donation(amount, l.PricePerToken())), false, nil
	}
	return "", false, errUnknownCommand
}
