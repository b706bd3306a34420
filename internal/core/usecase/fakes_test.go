package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

var testDay = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testDay }

type memStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	puts    []string

	getErr  error
	putErr  error
	headErr error
	listErr error
}

func newMemStore(bucket string) *memStore {
	return &memStore{bucket: bucket, objects: map[string][]byte{}}
}

func (s *memStore) Bucket() string { return s.bucket }

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), data...)
	s.puts = append(s.puts, key)
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get", fmt.Errorf("key=%s", key))
	}
	return data, nil
}

func (s *memStore) Head(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headErr != nil {
		return false, s.headErr
	}
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStore) List(_ context.Context, prefix string, maxKeys int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if maxKeys > 0 && len(keys) > maxKeys {
		keys = keys[:maxKeys]
	}
	return keys, nil
}

func (s *memStore) putSubmission(t *testing.T, id, title, description string) string {
	t.Helper()
	request, err := json.Marshal(map[string]any{
		"title":       title,
		"description": description,
		"priority":    "high",
		"category":    "platform",
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	payload, err := json.Marshal(domain.Submission{
		ID:              id,
		Timestamp:       "2026-10-19T09:00:00.000000Z",
		IngestionSource: "api_gateway",
		FeatureRequest:  request,
	})
	if err != nil {
		t.Fatalf("marshal submission: %v", err)
	}
	key := domain.RawKey(testDay, id)
	s.objects[key] = payload
	return key
}

type completerFake struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
	block     bool
}

func (f *completerFake) Complete(ctx context.Context, prompt string, _ int) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	call := len(f.prompts) - 1
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no response configured")
	}
	if call >= len(f.responses) {
		call = len(f.responses) - 1
	}
	return f.responses[call], nil
}

func (f *completerFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type trackerCall struct {
	status domain.RequestStatus
	id     string
	detail string
}

type trackerFake struct {
	mu    sync.Mutex
	calls []trackerCall
	err   error
}

func (f *trackerFake) record(status domain.RequestStatus, id, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, trackerCall{status: status, id: id, detail: detail})
	return f.err
}

func (f *trackerFake) Create(_ context.Context, req *domain.TrackedRequest) error {
	return f.record(req.Status, req.ID, req.RawKey)
}

func (f *trackerFake) MarkProcessing(_ context.Context, id string) error {
	return f.record(domain.RequestProcessing, id, "")
}

func (f *trackerFake) MarkEnriched(_ context.Context, id, enrichedKey string, _ domain.EnrichedRecord) error {
	return f.record(domain.RequestEnriched, id, enrichedKey)
}

func (f *trackerFake) MarkFailed(_ context.Context, id string, errMessage string) error {
	return f.record(domain.RequestFailed, id, errMessage)
}

func (f *trackerFake) GetByID(context.Context, string) (*domain.TrackedRequest, error) {
	return nil, errors.New("not implemented")
}

type jsonEncoderFake struct {
	err error
}

func (f jsonEncoderFake) Encode(rec domain.EnrichedRecord) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.Marshal(rec)
}

func (jsonEncoderFake) ContentType() string { return "application/octet-stream" }
func (jsonEncoderFake) Extension() string   { return ".parquet" }
