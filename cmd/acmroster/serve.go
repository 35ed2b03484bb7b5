package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/mgrist/acm-roster/internal/adapter/driving/http"
	"github.com/mgrist/acm-roster/internal/application"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the roster over HTTP",
		Long: `Logs in, loads the roster and serves the JSON API, the HTML report and
Prometheus metrics on ACMROSTER_LISTEN_ADDR. The roster is refreshed every
ACMROSTER_REFRESH_INTERVAL when set, and on POST /api/v1/refresh.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
}

func (a *app) serve(cmd *cobra.Command) error {
	ctx := cmd.Context()

	// 1. Log in and load the roster (fail fast on bad credentials).
	c, done, err := a.connect(cmd)
	if err != nil {
		return err
	}
	defer done()

	a.logger.Info("config loaded",
		"listen_addr", a.cfg.ListenAddr,
		"base_url", a.cfg.BaseURL,
		"refresh_interval", a.cfg.RefreshInterval,
		"journal", a.cfg.JournalPath != "",
	)

	// 2. Start the refresher.
	refresher := application.NewRefresher(c, a.cfg.RefreshInterval)
	go refresher.Start(ctx)

	// 3. Serve the API.
	handler := httphandler.NewServeMux(httphandler.NewHandler(c, refresher, a.logger), a.logger)

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Manual refreshes wait on the panel.
		WriteTimeout: a.cfg.RequestTimeout*3 + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 4. Wait for shutdown signal or a server failure.
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-serveErr:
		return err
	}

	// 5. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	if err := c.Logout(shutdownCtx); err != nil {
		a.logger.Error("logout error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
