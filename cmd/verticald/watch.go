package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verticald/internal/engine"
	"github.com/fyrsmithlabs/verticald/internal/extract"
	"github.com/fyrsmithlabs/verticald/internal/watcher"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		existing  bool
		debounce  time.Duration
		noMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest text and PDF files as they appear in a directory",
		Long: `Watch ingests every .txt and .pdf file written to dir, naming each document
after its file. Prometheus metrics are served on observability.metrics_addr
until the process receives SIGINT or SIGTERM.

Examples:
  verticald watch ./inbox
  verticald watch ./inbox --existing=false --debounce 2s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				zl := a.logger.Underlying()

				handler := func(ctx context.Context, path string) error {
					text, err := extract.File(path, a.cfg.Segmenter.Delimiter)
					if err != nil {
						return err
					}
					report, err := a.engine.Ingest(ctx, text, engine.IngestOptions{DocumentID: watcher.DocumentID(path)})
					if err != nil {
						return err
					}
					if report.State == engine.StateFailed {
						return report.Err
					}
					return nil
				}

				w, err := watcher.New(watcher.Config{
					Dir:             args[0],
					Extensions:      []string{".txt", ".pdf"},
					Debounce:        debounce,
					IncludeExisting: existing,
				}, handler, zl.Named("watcher"))
				if err != nil {
					return err
				}

				var srv *http.Server
				if !noMetrics {
					srv = startMetricsServer(a.cfg.Observability.MetricsAddr, zl)
				}

				fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("watching "+args[0]))
				runErr := w.Run(ctx)

				if srv != nil {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						zl.Warn("metrics server shutdown failed", zap.Error(err))
					}
				}
				if errors.Is(runErr, context.Canceled) {
					return nil
				}
				return runErr
			})
		},
	}

	cmd.Flags().BoolVar(&existing, "existing", true, "ingest files already in the directory")
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period before a written file is ingested")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "do not serve Prometheus metrics")
	return cmd
}

// startMetricsServer serves /metrics in the background. A failure to listen
// is logged; watching continues without exposition.
func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
