package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/ledger"
)

type chatOptions struct {
	tier    string
	manual  bool
	initial string
}

func newChatCmd(flags *globalFlags) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session with the sentinel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags, opts)
		},
	}
	cmd.Flags().StringVar(&opts.tier, "tier", "", "starting compute tier (LOW, MEDIUM, HEAVY)")
	cmd.Flags().BoolVar(&opts.manual, "manual", false, "disable auto classification")
	cmd.Flags().StringVar(&opts.initial, "initial", "", "request sent as soon as the session starts")
	return cmd
}

func runChat(cmd *cobra.Command, flags *globalFlags, opts *chatOptions) error {
	cfg, log, err := flags.load()
	if err != nil {
		return err
	}
	tier := cfg.Ledger.InitialTier
	if opts.tier != "" {
		if tier, err = economics.ParseTier(opts.tier); err != nil {
			return err
		}
	}
	if opts.manual {
		cfg.Ledger.AutoMode = false
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	a.ledger.StartSession(tier, opts.initial)
	if res, ok := a.dispatchPending(ctx); ok {
		printResult(out, a.ledger, res)
	}
	fmt.Fprintln(out, renderStatus(a.ledger.Snapshot()))

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := chatHistoryPath()
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if historyPath == "" {
			return
		}
		if f, err := os.Create(historyPath); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		input, err := line.Prompt(promptFor(a.ledger.Snapshot()))
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if sc, ok := parseSlash(input); ok {
			msg, quit, err := runSlash(a.ledger, sc)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
				continue
			}
			if quit {
				return nil
			}
			fmt.Fprintln(out, msg)
			continue
		}

		exCtx, cancel := a.exchangeContext(ctx)
		res := a.ledger.Submit(exCtx, input)
		cancel()
		printResult(out, a.ledger, res)
	}
}

func (a *app) dispatchPending(ctx context.Context) (ledger.Result, bool) {
	exCtx, cancel := a.exchangeContext(ctx)
	defer cancel()
	return a.ledger.DispatchPending(exCtx)
}

func (a *app) exchangeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Server.ExchangeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.Server.ExchangeTimeout)
}

func printResult(w io.Writer, l *ledger.Ledger, res ledger.Result) {
	switch res.Outcome {
	case ledger.OutcomeBusy:
		fmt.Fprintln(w, errorStyle.Render("an exchange is already in flight"))
		return
	case ledger.OutcomeNoTokens:
		fmt.Fprintln(w, errorStyle.Render("token budget exhausted, use /replenish N"))
		return
	case ledger.OutcomeEmpty:
		return
	}

	s := l.Snapshot()
	if n := len(s.History); n > 0 {
		fmt.Fprintln(w, renderReply(s.History[n-1]))
	}
	if res.Outcome == ledger.OutcomeCompleted {
		fmt.Fprintln(w, labelStyle.Render(fmt.Sprintf("cost %d tokens, %d remaining", res.Cost, s.TokensRemaining)))
	}
}

func promptFor(s ledger.Snapshot) string {
	return fmt.Sprintf("[%s %d] > ", s.ActiveTier, s.TokensRemaining)
}

func chatHistoryPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "sentinel")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ""
	}
	return filepath.Join(dir, "chat_history")
}
