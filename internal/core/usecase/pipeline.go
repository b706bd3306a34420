package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
)

const (
	StepClassify    = "classify"
	StepDeduplicate = "deduplicate"
	StepWorkaround  = "workaround"
	StepPersist     = "persist"
)

// EnrichmentPipeline runs the enrichment steps for one stored submission
// and writes exactly one enriched record.
type EnrichmentPipeline struct {
	raw        ports.ObjectStore
	enriched   ports.ObjectStore
	classifier ports.Classifier
	dedup      ports.DuplicateDetector
	workaround ports.WorkaroundSuggester
	encoder    ports.RecordEncoder

	tracker     ports.RequestTracker
	metrics     ports.PipelineMetrics
	stepTimeout time.Duration
}

func NewEnrichmentPipeline(
	raw ports.ObjectStore,
	enriched ports.ObjectStore,
	classifier ports.Classifier,
	dedup ports.DuplicateDetector,
	workaround ports.WorkaroundSuggester,
	encoder ports.RecordEncoder,
	stepTimeout time.Duration,
) *EnrichmentPipeline {
	return &EnrichmentPipeline{
		raw:         raw,
		enriched:    enriched,
		classifier:  classifier,
		dedup:       dedup,
		workaround:  workaround,
		encoder:     encoder,
		stepTimeout: stepTimeout,
	}
}

func (uc *EnrichmentPipeline) WithTracker(tracker ports.RequestTracker) *EnrichmentPipeline {
	uc.tracker = tracker
	return uc
}

func (uc *EnrichmentPipeline) WithMetrics(metrics ports.PipelineMetrics) *EnrichmentPipeline {
	uc.metrics = metrics
	return uc
}

// Process enriches the submission stored under rawKey and returns the key
// of the enriched record. Only a failure to read the submission or to write
// the record is returned; enrichment failures degrade to defaults.
func (uc *EnrichmentPipeline) Process(ctx context.Context, rawKey string) (string, error) {
	sub, err := uc.loadSubmission(ctx, rawKey)
	if err != nil {
		uc.markFailed(ctx, domain.IDFromKey(rawKey), err)
		return "", err
	}
	uc.markProcessing(ctx, sub.ID)

	req := sub.Request()

	cls := runStep(ctx, uc, StepClassify, sub.ID, domain.ClassificationResult{},
		func(stepCtx context.Context) (domain.ClassificationResult, error) {
			return uc.classifier.Classify(stepCtx, sub)
		})

	dup := runStep(ctx, uc, StepDeduplicate, sub.ID, domain.DefaultDuplicateResult(""),
		func(stepCtx context.Context) (domain.DuplicateResult, error) {
			return uc.dedup.Detect(stepCtx, sub.ID, req.Title.String(), req.Description.String())
		})

	wa := runStep(ctx, uc, StepWorkaround, sub.ID, domain.DefaultWorkaroundResult(),
		func(stepCtx context.Context) (domain.WorkaroundResult, error) {
			return uc.workaround.Suggest(stepCtx, sub, cls)
		})

	rec := Flatten(sub, cls, dup, wa)

	enrichedKey, err := uc.persist(ctx, rawKey, rec)
	if err != nil {
		uc.markFailed(ctx, sub.ID, err)
		return "", err
	}

	uc.markEnriched(ctx, sub.ID, enrichedKey, rec)
	slog.Info("pipeline_completed",
		"request_id", sub.ID,
		"raw_key", rawKey,
		"enriched_key", enrichedKey,
		"is_duplicate", rec.IsDuplicate,
		"ai_category", rec.AICategory,
	)
	return enrichedKey, nil
}

func (uc *EnrichmentPipeline) loadSubmission(ctx context.Context, rawKey string) (domain.Submission, error) {
	raw, err := uc.raw.Get(ctx, rawKey)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("read submission %s: %w", rawKey, err)
	}
	sub, err := domain.DecodeSubmission(raw)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("read submission %s: %w", rawKey, err)
	}
	if sub.ID == "" {
		sub.ID = domain.IDFromKey(rawKey)
	}
	return sub, nil
}

func (uc *EnrichmentPipeline) persist(ctx context.Context, rawKey string, rec domain.EnrichedRecord) (string, error) {
	start := time.Now()
	key := domain.EnrichedKey(rawKey, uc.encoder.Extension())

	payload, err := uc.encoder.Encode(rec)
	if err != nil {
		uc.observe(StepPersist, time.Since(start), err)
		return "", fmt.Errorf("encode enriched record: %w", err)
	}
	err = uc.enriched.Put(ctx, key, payload, uc.encoder.ContentType())
	uc.observe(StepPersist, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("write enriched record %s: %w", key, err)
	}
	return key, nil
}

// runStep executes one best-effort enrichment step under the step timeout.
// Any error, including a timeout, yields fallback.
func runStep[T any](
	ctx context.Context,
	uc *EnrichmentPipeline,
	step, requestID string,
	fallback T,
	fn func(context.Context) (T, error),
) T {
	stepCtx, cancel := uc.stepContext(ctx)
	defer cancel()

	start := time.Now()
	out, err := fn(stepCtx)
	uc.observe(step, time.Since(start), err)
	if err != nil {
		slog.Warn("pipeline_step_failed", "step", step, "request_id", requestID, "error", err)
		return fallback
	}
	return out
}

func (uc *EnrichmentPipeline) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.stepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.stepTimeout)
}

func (uc *EnrichmentPipeline) observe(step string, duration time.Duration, err error) {
	if uc.metrics != nil {
		uc.metrics.ObserveStep(step, duration, err)
	}
}

func (uc *EnrichmentPipeline) markProcessing(ctx context.Context, id string) {
	if uc.tracker == nil {
		return
	}
	if err := uc.tracker.MarkProcessing(ctx, id); err != nil {
		slog.Warn("tracking_update_failed", "request_id", id, "status", domain.RequestProcessing, "error", err)
	}
}

func (uc *EnrichmentPipeline) markEnriched(ctx context.Context, id, enrichedKey string, rec domain.EnrichedRecord) {
	if uc.tracker == nil {
		return
	}
	if err := uc.tracker.MarkEnriched(ctx, id, enrichedKey, rec); err != nil {
		slog.Warn("tracking_update_failed", "request_id", id, "status", domain.RequestEnriched, "error", err)
	}
}

func (uc *EnrichmentPipeline) markFailed(ctx context.Context, id string, processErr error) {
	if uc.tracker == nil || processErr == nil {
		return
	}
	if err := uc.tracker.MarkFailed(ctx, id, processErr.Error()); err != nil {
		slog.Warn("tracking_update_failed", "request_id", id, "status", domain.RequestFailed, "error", err)
	}
}
