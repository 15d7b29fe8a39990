package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"vocacare-intake-go/internal/dashboard"
	"vocacare-intake-go/internal/pipeline"
	"vocacare-intake-go/internal/webhook"
)

func serveCmd() *cobra.Command {
	var poll bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the poller and the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("poll") {
				cfg.PollOnStart = poll
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := webhook.NewClient(cfg.BaseURL, cfg.HTTPTimeout)
			go func() {
				if err := client.Ping(ctx); err != nil {
					log.WithError(err).WithField("base_url", cfg.BaseURL).Warn("backend not reachable yet; polling will keep trying")
					return
				}
				log.WithField("base_url", cfg.BaseURL).Info("backend reachable")
			}()

			p := pipeline.New(client, pipeline.Options{Interval: cfg.PollInterval, Logger: log})
			board := dashboard.NewBoard()
			p.Subscribe(board)
			p.Subscribe(pipeline.ObserverFunc(func(u pipeline.Update) {
				log.WithFields(logrus.Fields{
					"name":   u.Record.Name.String(),
					"reason": u.Record.Reason.String(),
				}).Info("patient intake updated")
			}))
			if cfg.PollOnStart {
				p.SetEnabled(true)
			}
			defer p.Close()

			addr := fmt.Sprintf(":%s", cfg.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      dashboard.NewHandler(board, p, log),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				log.WithField("addr", addr).Info("listening")
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.WithError(err).Error("server terminated")
					return err
				}
			case <-ctx.Done():
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.WithError(err).Warn("graceful shutdown failed")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&poll, "poll", false, "enable polling at startup (overrides POLL_ON_START)")
	return cmd
}
