package usecase

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

// Flatten projects a submission and its enrichment results into the fixed
// column set. It has no side effects and always fills every column.
func Flatten(
	sub domain.Submission,
	cls domain.ClassificationResult,
	dup domain.DuplicateResult,
	wa domain.WorkaroundResult,
) domain.EnrichedRecord {
	req := sub.Request()

	forecastStatus := strings.TrimSpace(cls.ForecastStatus)
	if forecastStatus == "" {
		forecastStatus = domain.DefaultForecastStatus
	}

	similarID := dup.MostSimilarRequestID
	if similarID == "" && len(dup.SimilarRequests) > 0 {
		similarID = dup.SimilarRequests[0]
	}

	return domain.EnrichedRecord{
		ID:                      sub.ID,
		Timestamp:               sub.Timestamp,
		IngestionSource:         sub.IngestionSource,
		FeatureRequestRaw:       rawFeatureRequest(sub.FeatureRequest),
		Title:                   req.Title.String(),
		Description:             req.Description.String(),
		Priority:                req.Priority.String(),
		Category:                req.Category.String(),
		AICategory:              cls.Category,
		AIPriority:              cls.Priority,
		AIComplexity:            cls.Complexity,
		AIEffort:                cls.EstimatedEffort,
		AITags:                  encodeTags(cls.Tags),
		ForecastStatus:          forecastStatus,
		ForecastTimeline:        cls.ForecastTimeline,
		ForecastConfidence:      cls.ForecastConfidence,
		ServiceTeam:             cls.ServiceTeam,
		CustomerVisible:         true,
		LegalDisclaimerAccepted: bool(req.LegalDisclaimerAccepted),
		IsDuplicate:             dup.IsDuplicate,
		DuplicateConfidence:     dup.Confidence,
		SimilarRequestID:        similarID,
		WorkaroundAvailable:     wa.Available,
		WorkaroundText:          wa.Text,
		WorkaroundConfidence:    wa.Confidence,
	}
}

func rawFeatureRequest(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
