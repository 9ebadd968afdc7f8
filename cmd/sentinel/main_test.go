package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/gateway"
	"github.com/ecoai/sentinel/internal/ledger"
	"github.com/ecoai/sentinel/internal/llm/provider"
	"github.com/ecoai/sentinel/internal/logger"
)

func testLedger(autoMode bool) *ledger.Ledger {
	gw := gateway.New(provider.NewMockProvider(""), gateway.Options{Logger: logger.Discard()})
	return ledger.New(gw, gw, ledger.Options{AutoMode: autoMode, Logger: logger.Discard()})
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseSlash(t *testing.T) {
	tests := []struct {
		in     string
		want   slashCommand
		wantOK bool
	}{
		{"/tier heavy", slashCommand{name: "tier", arg: "heavy"}, true},
		{"  /REPLENISH   5000 ", slashCommand{name: "replenish", arg: "5000"}, true},
		{"/quit", slashCommand{name: "quit"}, true},
		{"what is /tier?", slashCommand{}, false},
		{"hello", slashCommand{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseSlash(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunSlash(t *testing.T) {
	l := testLedger(true)

	_, _, err := runSlash(l, slashCommand{name: "tier", arg: "HEAVY"})
	assert.ErrorContains(t, err, "auto mode")

	out, quit, err := runSlash(l, slashCommand{name: "auto"})
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, "auto classification off", out)

	out, _, err = runSlash(l, slashCommand{name: "tier", arg: "heavy"})
	require.NoError(t, err)
	assert.Equal(t, "tier set to HEAVY", out)
	assert.Equal(t, economics.Heavy, l.Snapshot().ActiveTier)

	_, _, err = runSlash(l, slashCommand{name: "tier", arg: "extreme"})
	assert.Error(t, err)

	out, _, err = runSlash(l, slashCommand{name: "replenish", arg: "5000"})
	require.NoError(t, err)
	assert.Equal(t, "added 5000 tokens, donated $25.00", out)
	assert.Equal(t, 7500, l.Snapshot().TokensRemaining)

	_, _, err = runSlash(l, slashCommand{name: "replenish", arg: "-3"})
	assert.Error(t, err)
	_, _, err = runSlash(l, slashCommand{name: "replenish", arg: "lots"})
	assert.Error(t, err)

	out, _, err = runSlash(l, slashCommand{name: "status"})
	require.NoError(t, err)
	assert.Contains(t, out, "7500 remaining")
	assert.Contains(t, out, "10000 tokens = $50.00")

	_, quit, err = runSlash(l, slashCommand{name: "quit"})
	require.NoError(t, err)
	assert.True(t, quit)

	_, _, err = runSlash(l, slashCommand{name: "dance"})
	assert.ErrorIs(t, err, errUnknownCommand)
}

func TestPrintResult(t *testing.T) {
	l := testLedger(false)
	res := l.Submit(context.Background(), "hello there")

	var out bytes.Buffer
	printResult(&out, l, res)
	assert.Contains(t, out.String(), "Mock response")
	assert.Contains(t, out.String(), "[MEDIUM]")
	assert.Contains(t, out.String(), "cost 7 tokens")

	out.Reset()
	printResult(&out, l, ledger.Result{Outcome: ledger.OutcomeBusy})
	assert.Contains(t, out.String(), "already in flight")
}

func TestPromptFor(t *testing.T) {
	assert.Equal(t, "[MEDIUM 2500] > ", promptFor(testLedger(false).Snapshot()))
}

func TestVersionCmd(t *testing.T) {
	out, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sentinel dev (none)\n", out)
}

func TestTiersCmd(t *testing.T) {
	out, err := runRoot(t, "tiers")
	require.NoError(t, err)
	for _, want := range []string{"LOW", "MEDIUM", "HEAVY", "0.4x", "2.8x", "Deep Reason"} {
		assert.True(t, strings.Contains(out, want), want)
	}
}

func TestAdviseCmd_RequiresDescription(t *testing.T) {
	_, err := runRoot(t, "advise")
	assert.Error(t, err)
}

func TestAdviseCmd_RejectsMalformedReport(t *testing.T) {
	t.Setenv("SENTINEL_PROVIDER", "mock")
	t.Setenv("SENTINEL_MAX_RETRIES", "0")

	_, err := runRoot(t, "advise", "solar", "farm")
	assert.ErrorIs(t, err, gateway.ErrInvalidReport)
}
