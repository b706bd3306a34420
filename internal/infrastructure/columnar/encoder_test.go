package columnar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

func sampleRecord() domain.EnrichedRecord {
	return domain.EnrichedRecord{
		ID:                      "req-1",
		Timestamp:               "2026-10-19T09:30:00.000000Z",
		IngestionSource:         "api_gateway",
		FeatureRequestRaw:       `{"title":"Batch IoT uploads"}`,
		Title:                   "Batch IoT uploads",
		Description:             "Buffer sensor data",
		Priority:                "high",
		Category:                "iot",
		AICategory:              "IoT",
		AIPriority:              "high",
		AIComplexity:            "medium",
		AIEffort:                "8",
		AITags:                  `["iot"]`,
		ForecastStatus:          "planned",
		ForecastTimeline:        "Q1 2027",
		ForecastConfidence:      0.6,
		ServiceTeam:             "iot-core",
		CustomerVisible:         true,
		LegalDisclaimerAccepted: true,
		IsDuplicate:             false,
		DuplicateConfidence:     0.1,
		SimilarRequestID:        "",
		WorkaroundAvailable:     true,
		WorkaroundText:          "Use IoT rules",
		WorkaroundConfidence:    0.4,
	}
}

func TestEncodeDecodeSingleRow(t *testing.T) {
	rec := sampleRecord()

	data, err := NewEncoder().Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) < 8 || string(data[:4]) != "PAR1" || string(data[len(data)-4:]) != "PAR1" {
		t.Fatalf("expected parquet magic bytes")
	}

	rows, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if rows[0] != rec {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", rec, rows[0])
	}
}

func TestColumnsFollowRecordSchema(t *testing.T) {
	data, err := NewEncoder().Encode(domain.EnrichedRecord{ID: "x", ForecastStatus: "submitted", CustomerVisible: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	columns, err := Columns(data)
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	if len(columns) != len(domain.EnrichedColumns) {
		t.Fatalf("expected %d columns, got %d: %v", len(domain.EnrichedColumns), len(columns), columns)
	}
	for i, name := range domain.EnrichedColumns {
		if columns[i] != name {
			t.Fatalf("column %d: expected %q, got %q", i, name, columns[i])
		}
	}
}

func TestDecodeFile(t *testing.T) {
	data, err := NewEncoder().Encode(sampleRecord())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "req-1.parquet")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := DecodeFile(path)
	if err != nil || len(rows) != 1 || rows[0].ID != "req-1" {
		t.Fatalf("unexpected decode result %v %v", rows, err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not parquet")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
