package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
)

const (
	DefaultIngestionSource = "api_gateway"
	timestampLayout        = "2006-01-02T15:04:05.000000Z07:00"
)

type IngestSubmissionUseCase struct {
	store   ports.ObjectStore
	queue   ports.SubmissionQueue
	tracker ports.RequestTracker
	source  string
	now     func() time.Time
}

func NewIngestSubmissionUseCase(
	store ports.ObjectStore,
	queue ports.SubmissionQueue,
	source string,
) *IngestSubmissionUseCase {
	if source == "" {
		source = DefaultIngestionSource
	}
	return &IngestSubmissionUseCase{
		store:  store,
		queue:  queue,
		source: source,
		now:    time.Now,
	}
}

func (uc *IngestSubmissionUseCase) WithTracker(tracker ports.RequestTracker) *IngestSubmissionUseCase {
	uc.tracker = tracker
	return uc
}

// Submit stores the request body as a new submission and announces it on
// the queue. Only the store write can fail the call: a lost queue message
// is recovered by the batch sweep.
func (uc *IngestSubmissionUseCase) Submit(ctx context.Context, body []byte) (*ports.IngestReceipt, error) {
	featureRequest, err := normalizeFeatureRequest(body)
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	sub := domain.Submission{
		ID:              uuid.NewString(),
		Timestamp:       now.Format(timestampLayout),
		IngestionSource: uc.source,
		FeatureRequest:  featureRequest,
	}
	key := domain.RawKey(now, sub.ID)

	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}
	if err := uc.store.Put(ctx, key, payload, domain.SubmissionMimeType); err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}
	slog.Info("submission_ingested", "request_id", sub.ID, "key", key, "bucket", uc.store.Bucket())

	uc.track(ctx, sub, key, now)

	ref := domain.SubmissionRef{
		RequestID: sub.ID,
		Bucket:    uc.store.Bucket(),
		Key:       key,
		Timestamp: sub.Timestamp,
	}
	if uc.queue != nil {
		if err := uc.queue.PublishSubmissionStored(ctx, ref); err != nil {
			slog.Warn("submission_publish_failed", "request_id", sub.ID, "key", key, "error", err)
		}
	}

	return &ports.IngestReceipt{Submission: sub, Key: key}, nil
}

func (uc *IngestSubmissionUseCase) track(ctx context.Context, sub domain.Submission, key string, now time.Time) {
	if uc.tracker == nil {
		return
	}
	err := uc.tracker.Create(ctx, &domain.TrackedRequest{
		ID:        sub.ID,
		Title:     sub.Request().Title.String(),
		RawKey:    key,
		Status:    domain.RequestSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		slog.Warn("tracking_create_failed", "request_id", sub.ID, "error", err)
	}
}

// normalizeFeatureRequest accepts a JSON object body and returns it in
// compact form.
func normalizeFeatureRequest(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse feature request", errors.New("body must be a json object"))
	}
	if !json.Valid(trimmed) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse feature request", errors.New("malformed json"))
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse feature request", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
