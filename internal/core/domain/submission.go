package domain

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	SubmissionExtension = ".json"
	SubmissionMimeType  = "application/json"
)

// Submission is the raw feature request as stored at ingress. It is never
// mutated after the first write.
type Submission struct {
	ID              string          `json:"id"`
	Timestamp       string          `json:"timestamp"`
	IngestionSource string          `json:"ingestion_source"`
	FeatureRequest  json.RawMessage `json:"feature_request"`
}

// FeatureRequest is the typed view over Submission.FeatureRequest. Unknown
// keys stay in the raw message only.
type FeatureRequest struct {
	Title                   FlexString `json:"title"`
	Description             FlexString `json:"description"`
	Priority                FlexString `json:"priority"`
	Category                FlexString `json:"category"`
	LegalDisclaimerAccepted FlexBool   `json:"legal_disclaimer_accepted"`
}

// Request decodes the nested feature request field by field. A field with an
// unusable value is left empty without affecting its siblings; a missing or
// non-object payload yields the zero value.
func (s Submission) Request() FeatureRequest {
	var req FeatureRequest
	if len(s.FeatureRequest) == 0 {
		return req
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(s.FeatureRequest, &fields); err != nil {
		return req
	}

	decodeField(fields, "title", &req.Title)
	decodeField(fields, "description", &req.Description)
	decodeField(fields, "priority", &req.Priority)
	decodeField(fields, "category", &req.Category)
	decodeField(fields, "legal_disclaimer_accepted", &req.LegalDisclaimerAccepted)
	return req
}

func decodeField[T any](fields map[string]json.RawMessage, name string, out *T) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*out = v
}

// DecodeSubmission parses a stored submission object.
func DecodeSubmission(raw []byte) (Submission, error) {
	var sub Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return Submission{}, WrapError(ErrInvalidInput, "decode submission", err)
	}
	return sub, nil
}

// SubmissionRef points at a stored submission. It is the queue message body
// and the payload of a pipeline trigger.
type SubmissionRef struct {
	RequestID string `json:"request_id"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Timestamp string `json:"timestamp"`
}

// PartitionPrefix returns the date partition for t in UTC, e.g.
// "year=2026/month=10/day=19/".
func PartitionPrefix(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("year=%04d/month=%02d/day=%02d/", t.Year(), int(t.Month()), t.Day())
}

func RawKey(t time.Time, id string) string {
	return PartitionPrefix(t) + id + SubmissionExtension
}

func IsSubmissionKey(key string) bool {
	return strings.HasSuffix(key, SubmissionExtension)
}

// EnrichedKey derives the output key for a raw submission key by swapping
// the extension.
func EnrichedKey(rawKey, extension string) string {
	return strings.TrimSuffix(rawKey, SubmissionExtension) + extension
}

// IDFromKey returns the submission id encoded in the last path segment.
func IDFromKey(key string) string {
	base := path.Base(key)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
