package ports

import (
	"context"
	"time"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

// ObjectStore is a flat key/blob store addressed by hierarchical keys.
// Get returns an error of kind domain.ErrNotFound for missing keys. List
// returns keys in lexical order; maxKeys <= 0 means no limit.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Head(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string, maxKeys int) ([]string, error)
	Bucket() string
}

// Completer sends a prompt to the hosted model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Classifier is the classification enrichment step.
type Classifier interface {
	Classify(ctx context.Context, sub domain.Submission) (domain.ClassificationResult, error)
}

// DuplicateDetector is the deduplication enrichment step.
type DuplicateDetector interface {
	Detect(ctx context.Context, id, title, description string) (domain.DuplicateResult, error)
}

// WorkaroundSuggester is the workaround enrichment step.
type WorkaroundSuggester interface {
	Suggest(ctx context.Context, sub domain.Submission, cls domain.ClassificationResult) (domain.WorkaroundResult, error)
}

// RecordEncoder serializes an enriched record into its columnar format.
type RecordEncoder interface {
	Encode(rec domain.EnrichedRecord) ([]byte, error)
	ContentType() string
	Extension() string
}

// SubmissionQueue publishes/consumes stored-submission events.
type SubmissionQueue interface {
	PublishSubmissionStored(ctx context.Context, ref domain.SubmissionRef) error
	SubscribeSubmissionStored(ctx context.Context, handler func(context.Context, domain.SubmissionRef) error) error
}

// PipelineTrigger starts a pipeline run without waiting for it.
// Delivery is at-least-once.
type PipelineTrigger interface {
	TriggerPipeline(ctx context.Context, ref domain.SubmissionRef) error
}

// RequestTracker persists per-submission processing status.
type RequestTracker interface {
	Create(ctx context.Context, req *domain.TrackedRequest) error
	MarkProcessing(ctx context.Context, id string) error
	MarkEnriched(ctx context.Context, id, enrichedKey string, rec domain.EnrichedRecord) error
	MarkFailed(ctx context.Context, id string, errMessage string) error
	GetByID(ctx context.Context, id string) (*domain.TrackedRequest, error)
}

// PipelineMetrics observes enrichment step outcomes.
type PipelineMetrics interface {
	ObserveStep(step string, duration time.Duration, err error)
}
