package usecase

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

// decodeInferenceJSON parses the JSON object embedded in a model reply.
// Anything that is not a JSON object is reported as ErrMalformedResponse.
func decodeInferenceJSON(text string, out any) error {
	candidate := extractJSONObject(text)
	if !strings.HasPrefix(candidate, "{") {
		return domain.WrapError(domain.ErrMalformedResponse, "decode inference json", errors.New("no json object in response"))
	}
	if err := json.Unmarshal([]byte(candidate), out); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, "decode inference json", err)
	}
	return nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func clampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
