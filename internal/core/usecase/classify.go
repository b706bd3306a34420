package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
)

type ClassifyUseCase struct {
	completer ports.Completer
	maxTokens int
}

func NewClassifyUseCase(completer ports.Completer, maxTokens int) *ClassifyUseCase {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ClassifyUseCase{completer: completer, maxTokens: maxTokens}
}

type classificationPayload struct {
	Category           domain.FlexString `json:"category"`
	Priority           domain.FlexString `json:"priority"`
	Complexity         domain.FlexString `json:"complexity"`
	EstimatedEffort    domain.FlexString `json:"estimated_effort"`
	Tags               json.RawMessage   `json:"tags"`
	ForecastStatus     domain.FlexString `json:"forecast_status"`
	ForecastTimeline   domain.FlexString `json:"forecast_timeline"`
	ForecastConfidence domain.FlexFloat  `json:"forecast_confidence"`
	ServiceTeam        domain.FlexString `json:"service_team"`
}

func (uc *ClassifyUseCase) Classify(ctx context.Context, sub domain.Submission) (domain.ClassificationResult, error) {
	req := sub.Request()
	if strings.TrimSpace(req.Title.String()) == "" && strings.TrimSpace(req.Description.String()) == "" {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrInvalidInput, "classify", errors.New("empty title and description"))
	}

	text, err := uc.completer.Complete(ctx, buildClassificationPrompt(req), uc.maxTokens)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("classification completion: %w", err)
	}
	return parseClassification(text)
}

func parseClassification(text string) (domain.ClassificationResult, error) {
	var payload classificationPayload
	if err := decodeInferenceJSON(text, &payload); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("parse classification: %w", err)
	}
	return domain.ClassificationResult{
		Category:           strings.TrimSpace(payload.Category.String()),
		Priority:           strings.TrimSpace(payload.Priority.String()),
		Complexity:         strings.TrimSpace(payload.Complexity.String()),
		EstimatedEffort:    strings.TrimSpace(payload.EstimatedEffort.String()),
		Tags:               parseTags(payload.Tags),
		ForecastStatus:     strings.TrimSpace(payload.ForecastStatus.String()),
		ForecastTimeline:   strings.TrimSpace(payload.ForecastTimeline.String()),
		ForecastConfidence: clampConfidence(float64(payload.ForecastConfidence)),
		ServiceTeam:        strings.TrimSpace(payload.ServiceTeam.String()),
	}, nil
}

// parseTags accepts either a JSON array of scalars or a comma separated
// string and drops blanks.
func parseTags(raw json.RawMessage) []string {
	tags := []string{}
	if len(raw) == 0 {
		return tags
	}

	var list []domain.FlexString
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, tag := range list {
			if v := strings.TrimSpace(tag.String()); v != "" {
				tags = append(tags, v)
			}
		}
		return tags
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		for _, tag := range strings.Split(joined, ",") {
			if v := strings.TrimSpace(tag); v != "" {
				tags = append(tags, v)
			}
		}
	}
	return tags
}
