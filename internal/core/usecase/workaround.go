package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
)

type WorkaroundUseCase struct {
	completer ports.Completer
	maxTokens int
}

func NewWorkaroundUseCase(completer ports.Completer, maxTokens int) *WorkaroundUseCase {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &WorkaroundUseCase{completer: completer, maxTokens: maxTokens}
}

type workaroundPayload struct {
	Available  domain.FlexBool   `json:"workaround_available"`
	Text       domain.FlexString `json:"workaround_text"`
	Confidence domain.FlexFloat  `json:"workaround_confidence"`
}

func (uc *WorkaroundUseCase) Suggest(
	ctx context.Context,
	sub domain.Submission,
	cls domain.ClassificationResult,
) (domain.WorkaroundResult, error) {
	req := sub.Request()
	if strings.TrimSpace(req.Title.String()) == "" && strings.TrimSpace(req.Description.String()) == "" {
		return domain.DefaultWorkaroundResult(), nil
	}

	text, err := uc.completer.Complete(ctx, buildWorkaroundPrompt(req, cls), uc.maxTokens)
	if err != nil {
		return domain.DefaultWorkaroundResult(), fmt.Errorf("workaround completion: %w", err)
	}
	return parseWorkaround(text)
}

func parseWorkaround(text string) (domain.WorkaroundResult, error) {
	var payload workaroundPayload
	if err := decodeInferenceJSON(text, &payload); err != nil {
		return domain.DefaultWorkaroundResult(), fmt.Errorf("parse workaround: %w", err)
	}

	result := domain.WorkaroundResult{
		Available:  bool(payload.Available),
		Text:       strings.TrimSpace(payload.Text.String()),
		Confidence: clampConfidence(float64(payload.Confidence)),
	}
	if result.Text == "" {
		result.Available = false
	}
	if !result.Available {
		result.Text = ""
		result.Confidence = 0
	}
	return result, nil
}
