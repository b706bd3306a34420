package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
)

const defaultSweepConcurrency = 8

// SweepUseCase re-drives submissions in a date partition that have no
// enriched record yet. Triggers are fire-and-forget; a submission swept
// twice before its record appears is processed twice.
type SweepUseCase struct {
	raw         ports.ObjectStore
	enriched    ports.ObjectStore
	trigger     ports.PipelineTrigger
	extension   string
	concurrency int
	now         func() time.Time
}

func NewSweepUseCase(
	raw ports.ObjectStore,
	enriched ports.ObjectStore,
	trigger ports.PipelineTrigger,
	extension string,
	concurrency int,
) *SweepUseCase {
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	return &SweepUseCase{
		raw:         raw,
		enriched:    enriched,
		trigger:     trigger,
		extension:   extension,
		concurrency: concurrency,
		now:         time.Now,
	}
}

func (uc *SweepUseCase) Sweep(ctx context.Context, day time.Time) (ports.SweepResult, error) {
	result := ports.SweepResult{Prefix: domain.PartitionPrefix(day)}

	keys, err := uc.raw.List(ctx, result.Prefix, 0)
	if err != nil {
		return result, fmt.Errorf("list raw partition %s: %w", result.Prefix, err)
	}
	result.Listed = len(keys)

	var triggered, already, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for _, key := range keys {
		if !domain.IsSubmissionKey(key) {
			slog.Debug("sweep_key_ignored", "key", key)
			continue
		}
		g.Go(func() error {
			switch uc.sweepKey(gctx, key) {
			case sweepTriggered:
				triggered.Add(1)
			case sweepAlreadyProcessed:
				already.Add(1)
			case sweepSkipped:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Triggered = int(triggered.Load())
	result.AlreadyProcessed = int(already.Load())
	result.Skipped = int(skipped.Load())

	slog.Debug("sweep_partition_scanned",
		"prefix", result.Prefix,
		"listed", result.Listed,
		"already_processed", result.AlreadyProcessed,
		"processed_count", result.Triggered,
		"skipped", result.Skipped,
	)
	return result, nil
}

type sweepOutcome int

const (
	sweepTriggered sweepOutcome = iota
	sweepAlreadyProcessed
	sweepSkipped
)

func (uc *SweepUseCase) sweepKey(ctx context.Context, key string) sweepOutcome {
	enrichedKey := domain.EnrichedKey(key, uc.extension)
	exists, err := uc.enriched.Head(ctx, enrichedKey)
	if err != nil {
		// An unknown state is handled as not processed.
		slog.Warn("sweep_head_failed", "key", enrichedKey, "error", err)
		exists = false
	}
	if exists {
		slog.Debug("sweep_already_processed", "key", key)
		return sweepAlreadyProcessed
	}

	ref := domain.SubmissionRef{
		RequestID: domain.IDFromKey(key),
		Bucket:    uc.raw.Bucket(),
		Key:       key,
		Timestamp: uc.now().UTC().Format(timestampLayout),
	}
	if err := uc.trigger.TriggerPipeline(ctx, ref); err != nil {
		slog.Warn("sweep_trigger_failed", "key", key, "error", err)
		return sweepSkipped
	}
	slog.Info("sweep_triggered", "key", key, "request_id", ref.RequestID)
	return sweepTriggered
}
