package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/frmf-pipeline/internal/adapters/schedule"
	"github.com/kirillkom/frmf-pipeline/internal/bootstrap"
	"github.com/kirillkom/frmf-pipeline/internal/config"
	"github.com/kirillkom/frmf-pipeline/internal/observability/logging"
	"github.com/kirillkom/frmf-pipeline/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	resilienceMetrics := metrics.NewResilienceMetrics(workerMetrics.Registry(), "worker")

	app, err := bootstrap.New(ctx, cfg, bootstrap.WithResilienceObserver(resilienceMetrics))
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Pipeline.WithMetrics(workerMetrics)
	handler := newSubmissionHandler(app.Pipeline, workerMetrics, cfg.PipelineTimeout)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "queue_group", cfg.NATSQueueGroup)
		return app.Queue.SubscribeSubmissionStored(gctx, handler.Handle)
	})
	if cfg.SweepEnabled {
		scheduler, err := schedule.NewSweepScheduler(app.SweepUC, cfg.SweepSchedule, schedule.Options{
			Recorder: workerMetrics,
		})
		if err != nil {
			slog.Error("sweep_schedule_invalid", "schedule", cfg.SweepSchedule, "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}
