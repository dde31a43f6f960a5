package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tender-scraper/metrics"
	"tender-scraper/scheduler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleInterval time.Duration

func init() {
	scheduleCmd.Flags().DurationVar(&scheduleInterval, "interval", 0, "Override the configured interval between runs.")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [--interval <duration>]",
	Short: "Scrapes on a fixed interval until interrupted, optionally serving Prometheus metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if scheduleInterval > 0 {
			cfg.Schedule.Interval = scheduleInterval
		}

		urls, err := candidateURLs(cfg, nil)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.NewMetrics(reg)

		a, err := newApp(ctx, cfg, logger, m)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := scheduler.NewScheduler(func(ctx context.Context) error {
			_, _, err := a.runOnce(ctx, urls)
			return err
		}, cfg.Schedule.Interval, logger.Named("scheduler"))
		if err != nil {
			return err
		}

		if cfg.Schedule.MetricsAddr != "" {
			srv := &http.Server{
				Addr:              cfg.Schedule.MetricsAddr,
				Handler:           statusRouter(reg, s),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				logger.Info("serving metrics", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
		}

		s.Run(ctx)
		return nil
	},
}

// statusRouter serves Prometheus metrics plus liveness and run status.
func statusRouter(reg *prometheus.Registry, s *scheduler.Scheduler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		runs, last := s.Runs()
		resp := struct {
			Runs      int    `json:"runs"`
			LastError string `json:"last_error,omitempty"`
		}{Runs: runs}
		if last != nil {
			resp.LastError = last.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return r
}
