package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/metafields/internal/httpapi"
	"github.com/mesh-intelligence/metafields/internal/metrics"
	"github.com/mesh-intelligence/metafields/pkg/fields"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve field values over HTTP",
		Long: `Serve exposes the read, save and restore operations as a JSON API and
Prometheus metrics on /metrics. It stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	return cmd
}

func (a *app) serve(ctx context.Context) (err error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil && err == nil {
			err = sysError("close store: %w", cerr)
		}
	}()

	collector := metrics.New()
	svc := a.newService(store, fields.WithObserver(collector))
	handler := httpapi.New(svc, a.logger, collector.Handler())

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.Listen, "backend", a.cfg.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return sysError("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return sysError("shutdown: %w", err)
	}
	return nil
}
