package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
)

type runMetrics interface {
	StartRun()
	FinishRun(duration time.Duration, err error)
	ObserveQueueLag(lag time.Duration)
}

// submissionHandler runs the pipeline for one queued submission under a
// bounded timeout.
type submissionHandler struct {
	pipeline ports.PipelineRunner
	metrics  runMetrics
	timeout  time.Duration
	now      func() time.Time
}

func newSubmissionHandler(pipeline ports.PipelineRunner, metrics runMetrics, timeout time.Duration) *submissionHandler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &submissionHandler{
		pipeline: pipeline,
		metrics:  metrics,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (h *submissionHandler) Handle(ctx context.Context, ref domain.SubmissionRef) error {
	if queuedAt, err := time.Parse(time.RFC3339Nano, ref.Timestamp); err == nil && h.metrics != nil {
		h.metrics.ObserveQueueLag(h.now().Sub(queuedAt))
	}

	processCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if h.metrics != nil {
		h.metrics.StartRun()
	}
	start := time.Now()
	enrichedKey, err := h.pipeline.Process(processCtx, ref.Key)
	if h.metrics != nil {
		h.metrics.FinishRun(time.Since(start), err)
	}
	if err != nil {
		return err
	}

	slog.Info("submission_enriched",
		"request_id", ref.RequestID,
		"raw_key", ref.Key,
		"enriched_key", enrichedKey,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
