package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

const maxPromptField = 4000

func buildClassificationPrompt(req domain.FeatureRequest) string {
	return fmt.Sprintf(`You are a product operations analyst. Classify the feature request below and forecast its delivery.
Return strict JSON object with keys:
category (string), priority (one of: low, medium, high, critical), complexity (one of: low, medium, high),
estimated_effort (number of engineering days), tags (array of strings),
forecast_status (one of: submitted, under_review, planned, in_progress, not_planned),
forecast_timeline (string, for example "Q3 2026"), forecast_confidence (number from 0 to 1),
service_team (string, the team that would own the work).
No markdown, no extra keys.

Feature request:
Title: %s
Description: %s
Submitted priority: %s
Submitted category: %s
`,
		clip(req.Title.String()),
		clip(req.Description.String()),
		clip(req.Priority.String()),
		clip(req.Category.String()),
	)
}

func buildWorkaroundPrompt(req domain.FeatureRequest, cls domain.ClassificationResult) string {
	tags := "none"
	if len(cls.Tags) > 0 {
		tags = strings.Join(cls.Tags, ", ")
	}
	return fmt.Sprintf(`You are a solutions architect. A customer asked for the feature below, which does not exist yet.
Suggest a workaround the customer can apply today with existing services, if a credible one exists.
Return strict JSON object with keys:
workaround_available (boolean), workaround_text (string, empty when no workaround exists),
workaround_confidence (number from 0 to 1).
No markdown, no extra keys. Do not invent services or APIs.

Feature request:
Title: %s
Description: %s
Category: %s
Priority: %s

Classification:
Category: %s
Complexity: %s
Service team: %s
Tags: %s
`,
		clip(req.Title.String()),
		clip(req.Description.String()),
		clip(req.Category.String()),
		clip(req.Priority.String()),
		cls.Category,
		cls.Complexity,
		cls.ServiceTeam,
		tags,
	)
}

// buildDuplicatePrompt renders the comparison prompt for one new request
// against the candidate set. Output depends only on its arguments.
func buildDuplicatePrompt(policy domain.DuplicatePolicy, title, description string, candidates []domain.Candidate) string {
	existing := make([]string, 0, len(candidates))
	for _, c := range candidates {
		existing = append(existing, fmt.Sprintf("ID: %s\nTitle: %s\nDescription: %s\n---", c.ID, clip(c.Title), clip(c.Description)))
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(policy.Preamble))
	b.WriteString("\n\nNEW REQUEST:\n")
	fmt.Fprintf(&b, "Title: %s\nDescription: %s\n\n", clip(title), clip(description))
	b.WriteString("EXISTING REQUESTS:\n")
	b.WriteString(strings.Join(existing, "\n"))
	b.WriteString("\n\n")

	b.WriteString(strings.TrimSpace(policy.CriteriaHeading))
	b.WriteString("\n")
	for i, criterion := range policy.Criteria {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(criterion))
	}

	if len(policy.Rules) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(policy.RulesHeading))
		b.WriteString("\n")
		for _, rule := range policy.Rules {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(rule))
		}
	}

	if len(policy.NonDuplicates) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(policy.NonDuplicateHeading))
		b.WriteString("\n")
		for _, example := range policy.NonDuplicates {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(example))
		}
	}

	reasoningHint := strings.TrimSpace(policy.ReasoningHint)
	if reasoningHint == "" {
		reasoningHint = "specific explanation citing exact similarities or differences"
	}
	fmt.Fprintf(&b, `
Respond with JSON only:
{
    "is_duplicate": true/false,
    "confidence": 0.0-1.0,
    "most_similar_request_id": "id or null",
    "reasoning": %q
}
`, reasoningHint)

	if closing := strings.TrimSpace(policy.Closing); closing != "" {
		b.WriteString("\n")
		b.WriteString(closing)
		b.WriteString("\n")
	}
	return b.String()
}

func clip(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxPromptField {
		return text
	}
	cut := maxPromptField
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
