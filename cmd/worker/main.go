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

	"github.com/kirillkom/archive-assistant/internal/bootstrap"
	"github.com/kirillkom/archive-assistant/internal/config"
	"github.com/kirillkom/archive-assistant/internal/core/domain"
	"github.com/kirillkom/archive-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.WorkerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	go sweepExpiredTokens(ctx, app, logger)

	handler := func(msgCtx context.Context, jobID string) error {
		jobCtx, cancel := context.WithTimeout(msgCtx, cfg.OCRJobDeadline)
		defer cancel()

		app.WorkerMetrics.StartJob()
		started := time.Now()
		err := app.Workflow.Run(jobCtx, jobID)

		status := domain.JobFailed
		if job, lookupErr := app.Jobs.GetByID(msgCtx, jobID); lookupErr == nil {
			status = job.Status
		}
		app.WorkerMetrics.FinishJob("worker", status, time.Since(started))
		if err != nil {
			logger.Error("ingest job failed", "job_id", jobID, "error", err)
			return err
		}
		logger.Info("ingest job finished", "job_id", jobID)
		return nil
	}

	logger.Info("worker consuming", "subject", cfg.NATSSubject)
	if err := app.Queue.SubscribeDocumentUploaded(ctx, handler); err != nil {
		logger.Error("subscription ended", "error", err)
		os.Exit(1)
	}
}

// sweepExpiredTokens prunes long-expired reference tokens once an hour.
// Expiry itself is enforced on resolve; the sweep only keeps the table small.
func sweepExpiredTokens(ctx context.Context, app *bootstrap.App, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := app.Tokens.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("token sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("token sweep", "removed", removed)
			}
		}
	}
}
