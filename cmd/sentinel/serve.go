package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ecoai/sentinel/internal/api"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session ledger, metrics and health over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			handler := api.NewHandler(api.Config{
				Ledger:          a.ledger,
				Advisor:         a.advisor,
				Metrics:         a.metrics,
				Health:          a.health,
				ExchangeTimeout: cfg.Server.ExchangeTimeout,
				Logger:          log.With("component", "api"),
			})
			srv := api.NewHTTPServer(cfg.Server.Addr, handler)
			api.PublishSnapshot(a.metrics, a.ledger.Snapshot())

			if cfg.Server.SnapshotSchedule != "" {
				c := cron.New()
				if _, err := c.AddFunc(cfg.Server.SnapshotSchedule, a.digest); err != nil {
					return err
				}
				c.Start()
				defer c.Stop()
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("http server listening", "addr", cfg.Server.Addr, "session_id", a.ledger.ID())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				log.Info("shutting down http server")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// digest refreshes the session gauges and logs a one-line ledger summary.
func (a *app) digest() {
	s := a.ledger.Snapshot()
	api.PublishSnapshot(a.metrics, s)
	a.log.Info("ledger digest",
		"tier", s.ActiveTier,
		"tokens_remaining", s.TokensRemaining,
		"tokens_used", s.Metrics.TokensUsed,
		"water_liters", s.WaterUsedLiters,
		"biodiversity", s.Metrics.Biodiversity,
		"exchanges", len(s.History)/2,
	)
}
