package usecase

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

func TestFlattenFillsEveryColumnWithDefaults(t *testing.T) {
	rec := Flatten(domain.Submission{ID: "abc"}, domain.ClassificationResult{}, domain.DefaultDuplicateResult(""), domain.DefaultWorkaroundResult())

	encoded, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	var columns map[string]any
	if err := json.Unmarshal(encoded, &columns); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if len(columns) != len(domain.EnrichedColumns) {
		t.Fatalf("expected %d columns, got %d", len(domain.EnrichedColumns), len(columns))
	}
	for _, name := range domain.EnrichedColumns {
		if _, ok := columns[name]; !ok {
			t.Fatalf("missing column %q", name)
		}
	}

	if rec.ForecastStatus != "submitted" {
		t.Fatalf("expected forecast status submitted, got %q", rec.ForecastStatus)
	}
	if rec.AITags != "[]" {
		t.Fatalf("expected empty tags array, got %q", rec.AITags)
	}
	if rec.FeatureRequestRaw != "{}" {
		t.Fatalf("expected empty raw object, got %q", rec.FeatureRequestRaw)
	}
	if !rec.CustomerVisible {
		t.Fatalf("expected customer visible by default")
	}
	if rec.IsDuplicate || rec.DuplicateConfidence != 0 || rec.SimilarRequestID != "" {
		t.Fatalf("expected not-duplicate defaults, got %+v", rec)
	}
	if rec.WorkaroundAvailable || rec.WorkaroundText != "" {
		t.Fatalf("expected no workaround, got %+v", rec)
	}
}

func TestFlattenCopiesInputsAndResults(t *testing.T) {
	sub := domain.Submission{
		ID:              "req-1",
		Timestamp:       "2026-10-19T09:00:00.000000Z",
		IngestionSource: "api_gateway",
		FeatureRequest: json.RawMessage(`{
			"title": "Batch IoT uploads",
			"description": "Buffer sensor data",
			"priority": "high",
			"category": "iot",
			"legal_disclaimer_accepted": true,
			"extra": {"a": 1}
		}`),
	}
	cls := domain.ClassificationResult{
		Category:           "IoT",
		Priority:           "high",
		Complexity:         "medium",
		EstimatedEffort:    "8",
		Tags:               []string{"iot", "batching"},
		ForecastStatus:     "planned",
		ForecastTimeline:   "Q1 2027",
		ForecastConfidence: 0.6,
		ServiceTeam:        "iot-core",
	}
	dup := domain.DuplicateResult{IsDuplicate: true, Confidence: 0.9, SimilarRequests: []string{"req-0"}}
	wa := domain.WorkaroundResult{Available: true, Text: "Use a rule", Confidence: 0.4}

	rec := Flatten(sub, cls, dup, wa)

	if rec.FeatureRequestRaw != `{"title":"Batch IoT uploads","description":"Buffer sensor data","priority":"high","category":"iot","legal_disclaimer_accepted":true,"extra":{"a":1}}` {
		t.Fatalf("unexpected raw column %s", rec.FeatureRequestRaw)
	}
	if rec.Title != "Batch IoT uploads" || rec.Category != "iot" || !rec.LegalDisclaimerAccepted {
		t.Fatalf("unexpected input columns %+v", rec)
	}
	if rec.AITags != `["iot","batching"]` {
		t.Fatalf("unexpected tags %s", rec.AITags)
	}
	if rec.ForecastStatus != "planned" || rec.ServiceTeam != "iot-core" {
		t.Fatalf("unexpected forecast columns %+v", rec)
	}
	if rec.SimilarRequestID != "req-0" {
		t.Fatalf("expected similar id from similar requests, got %q", rec.SimilarRequestID)
	}
	if !rec.WorkaroundAvailable || rec.WorkaroundText != "Use a rule" {
		t.Fatalf("unexpected workaround columns %+v", rec)
	}
}

func TestFlattenIsDeterministic(t *testing.T) {
	sub := domain.Submission{ID: "x", FeatureRequest: json.RawMessage(`{"title":"t","description":"d"}`)}
	cls := domain.ClassificationResult{Tags: []string{"a"}}

	first, _ := json.Marshal(Flatten(sub, cls, domain.DefaultDuplicateResult(""), domain.DefaultWorkaroundResult()))
	second, _ := json.Marshal(Flatten(sub, cls, domain.DefaultDuplicateResult(""), domain.DefaultWorkaroundResult()))
	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical records:\n%s\n%s", first, second)
	}
}

func TestFlattenKeepsInputColumnsWhenOneFieldIsUnusable(t *testing.T) {
	for _, raw := range []string{
		`{"title":"Add IoT sensor batching","description":"Batch readings","legal_disclaimer_accepted":"yes"}`,
		`{"title":"Add IoT sensor batching","description":"Batch readings","category":{"name":"IoT"}}`,
	} {
		sub := domain.Submission{ID: "req-9", FeatureRequest: json.RawMessage(raw)}
		rec := Flatten(sub, domain.ClassificationResult{}, domain.DefaultDuplicateResult(""), domain.DefaultWorkaroundResult())
		if rec.Title != "Add IoT sensor batching" || rec.Description != "Batch readings" {
			t.Fatalf("%s: expected title and description columns, got %q / %q", raw, rec.Title, rec.Description)
		}
		if rec.FeatureRequestRaw != raw {
			t.Fatalf("%s: expected raw column to keep the payload, got %s", raw, rec.FeatureRequestRaw)
		}
	}
}
