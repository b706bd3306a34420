package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

type triggerFake struct {
	mu   sync.Mutex
	refs []domain.SubmissionRef
	fail map[string]bool
}

func (f *triggerFake) TriggerPipeline(_ context.Context, ref domain.SubmissionRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[ref.Key] {
		return errors.New("publish failed")
	}
	f.refs = append(f.refs, ref)
	return nil
}

func (f *triggerFake) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.refs))
	for _, ref := range f.refs {
		keys = append(keys, ref.Key)
	}
	sort.Strings(keys)
	return keys
}

func TestSweepTriggersOnlyUnprocessedSubmissions(t *testing.T) {
	raw := newMemStore("raw")
	keyA := raw.putSubmission(t, "a", "A", "a")
	keyB := raw.putSubmission(t, "b", "B", "b")
	keyC := raw.putSubmission(t, "c", "C", "c")
	raw.objects["year=2026/month=10/day=19/readme.txt"] = []byte("x")

	enriched := newMemStore("enriched")
	enriched.objects[domain.EnrichedKey(keyB, ".parquet")] = []byte("done")

	trigger := &triggerFake{}
	got, err := NewSweepUseCase(raw, enriched, trigger, ".parquet", 2).Sweep(context.Background(), testDay)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got.Triggered != 2 || got.AlreadyProcessed != 1 || got.Skipped != 0 {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.Listed != 4 || got.Prefix != "year=2026/month=10/day=19/" {
		t.Fatalf("unexpected listing %+v", got)
	}
	keys := trigger.keys()
	if len(keys) != 2 || keys[0] != keyA || keys[1] != keyC {
		t.Fatalf("expected triggers for a and c, got %v", keys)
	}
	for _, ref := range trigger.refs {
		if ref.Bucket != "raw" || ref.RequestID == "" || ref.Timestamp == "" {
			t.Fatalf("incomplete trigger payload %+v", ref)
		}
	}
}

func TestSweepTreatsHeadFailureAsUnprocessed(t *testing.T) {
	raw := newMemStore("raw")
	raw.putSubmission(t, "a", "A", "a")
	enriched := newMemStore("enriched")
	enriched.headErr = errors.New("forbidden")

	trigger := &triggerFake{}
	got, err := NewSweepUseCase(raw, enriched, trigger, ".parquet", 0).Sweep(context.Background(), testDay)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got.Triggered != 1 {
		t.Fatalf("expected head failure to trigger, got %+v", got)
	}
}

func TestSweepCountsFailedTriggersAsSkipped(t *testing.T) {
	raw := newMemStore("raw")
	keyA := raw.putSubmission(t, "a", "A", "a")
	raw.putSubmission(t, "b", "B", "b")

	trigger := &triggerFake{fail: map[string]bool{keyA: true}}
	got, err := NewSweepUseCase(raw, newMemStore("enriched"), trigger, ".parquet", 4).Sweep(context.Background(), testDay)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got.Triggered != 1 || got.Skipped != 1 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestSweepEmptyPartition(t *testing.T) {
	got, err := NewSweepUseCase(newMemStore("raw"), newMemStore("enriched"), &triggerFake{}, ".parquet", 4).Sweep(context.Background(), testDay)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got.Triggered != 0 || got.Listed != 0 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestSweepReturnsListFailure(t *testing.T) {
	raw := newMemStore("raw")
	raw.listErr = errors.New("no such bucket")

	if _, err := NewSweepUseCase(raw, newMemStore("enriched"), &triggerFake{}, ".parquet", 4).Sweep(context.Background(), testDay); err == nil {
		t.Fatalf("expected list failure")
	}
}

func TestSweepLeavesTheCompletionLineToTheScheduler(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	defer slog.SetDefault(previous)

	raw := newMemStore("raw")
	raw.putSubmission(t, "a", "A", "a")
	if _, err := NewSweepUseCase(raw, newMemStore("enriched"), &triggerFake{}, ".parquet", 1).Sweep(context.Background(), testDay); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if strings.Contains(buf.String(), "sweep_completed") {
		t.Fatalf("expected no info-level completion line from the use case, got %s", buf.String())
	}
}
