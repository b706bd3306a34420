package domain

import "time"

type RequestStatus string

const (
	RequestSubmitted  RequestStatus = "submitted"
	RequestProcessing RequestStatus = "processing"
	RequestEnriched   RequestStatus = "enriched"
	RequestFailed     RequestStatus = "failed"
)

// TrackedRequest is the status view of one submission, served to the
// submitter. It is a convenience index; the object store stays the source
// of truth.
type TrackedRequest struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	RawKey      string        `json:"raw_key"`
	EnrichedKey string        `json:"enriched_key,omitempty"`
	Status      RequestStatus `json:"status"`
	AICategory  string        `json:"ai_category,omitempty"`
	AIEffort    string        `json:"ai_effort,omitempty"`
	IsDuplicate bool          `json:"is_duplicate"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
