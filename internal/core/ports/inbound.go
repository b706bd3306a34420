package ports

import (
	"context"
	"time"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

// IngestReceipt is what the ingress hands back to the submitter.
type IngestReceipt struct {
	Submission domain.Submission
	Key        string
}

// SubmissionIngestor is the inbound contract for storing a new submission.
type SubmissionIngestor interface {
	Submit(ctx context.Context, body []byte) (*IngestReceipt, error)
}

// PipelineRunner is the inbound contract for enriching one stored submission.
type PipelineRunner interface {
	Process(ctx context.Context, rawKey string) (string, error)
}

// SweepResult summarizes one batch sweep over a date partition.
type SweepResult struct {
	Prefix           string `json:"prefix"`
	Listed           int    `json:"listed"`
	AlreadyProcessed int    `json:"already_processed"`
	Triggered        int    `json:"processed_count"`
	Skipped          int    `json:"skipped"`
}

// Sweeper is the inbound contract for re-driving unprocessed submissions.
type Sweeper interface {
	Sweep(ctx context.Context, day time.Time) (SweepResult, error)
}

// RequestReader is the inbound read model for submission status.
type RequestReader interface {
	GetByID(ctx context.Context, id string) (*domain.TrackedRequest, error)
}
