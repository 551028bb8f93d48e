package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"scooby/metrics"
	"scooby/poller"
	"scooby/scheduler"
	"scooby/scrape"
)

const shutdownTimeout = 5 * time.Second

func newWatchCommand() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Submit scrape jobs on the schedules in SCHEDULE_FILE",
		Long: `Run as a daemon that submits a scrape job whenever one of the cron
schedules in SCHEDULE_FILE fires. Task status changes are logged as the
jobs run. With --metrics-addr (or METRICS_ADDR)
Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := current.cfg
			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr
			}

			schedules, err := cfg.LoadSchedules()
			if err != nil {
				return fmt.Errorf("failed to load schedules: %w", err)
			}
			log.Printf("Loaded %d schedules from %s", len(schedules), cfg.ScheduleFile)
			if len(schedules) == 0 {
				return fmt.Errorf("no schedules in %s", cfg.ScheduleFile)
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(reg)
			submitter := scrape.NewSubmitter(current.client, m)

			sched := scheduler.New(submitter, schedules)
			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer sched.Stop()

			// Follow the jobs the schedules create.
			tracker := scheduler.NewTracker()
			tasks := poller.New(current.client, poller.Options{
				View:       poller.ViewTasks,
				Interval:   cfg.Poller.Interval,
				OnSnapshot: tracker.LogSnapshot,
				Metrics:    m,
			})
			tasks.Start(ctx)
			defer tasks.Stop()

			if metricsAddr == "" {
				log.Println("Daemon running. Press Ctrl+C to stop.")
				<-ctx.Done()
				log.Println("Shutting down...")
				return nil
			}
			return serveMetrics(ctx, metricsAddr, reg)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for /metrics, e.g. :9102")
	return cmd
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server error: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
