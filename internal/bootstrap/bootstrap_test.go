package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/frmf-pipeline/internal/config"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/llm/ollama"
)

func TestNewObjectStoresLocalFS(t *testing.T) {
	cfg := config.Config{
		StorageBackend: config.StorageLocalFS,
		StoragePath:    t.TempDir(),
		RawBucket:      "raw",
		EnrichedBucket: "enriched",
	}

	raw, enriched, err := newObjectStores(context.Background(), cfg, options{})
	if err != nil {
		t.Fatalf("new object stores: %v", err)
	}
	if raw.Bucket() != "raw" || enriched.Bucket() != "enriched" {
		t.Fatalf("unexpected buckets: %q %q", raw.Bucket(), enriched.Bucket())
	}

	ctx := context.Background()
	if err := raw.Put(ctx, "year=2026/month=10/day=19/a.json", []byte(`{}`), "application/json"); err != nil {
		t.Fatalf("put raw: %v", err)
	}
	found, err := enriched.Head(ctx, "year=2026/month=10/day=19/a.json")
	if err != nil {
		t.Fatalf("head enriched: %v", err)
	}
	if found {
		t.Fatalf("raw and enriched stores must not share a bucket")
	}
}

func TestNewObjectStoresRejectsUnknownBackend(t *testing.T) {
	_, _, err := newObjectStores(context.Background(), config.Config{StorageBackend: "gcs"}, options{})
	if err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestNewCompleterSelectsProvider(t *testing.T) {
	cfg := config.Config{
		InferenceProvider: config.InferenceOllama,
		OllamaURL:         "http://localhost:11434",
		OllamaGenModel:    "llama3.1:8b",
	}
	completer, err := newCompleter(context.Background(), cfg, options{})
	if err != nil {
		t.Fatalf("ollama completer: %v", err)
	}
	if _, ok := completer.(*ollama.Client); !ok {
		t.Fatalf("expected ollama client, got %T", completer)
	}

	cfg.InferenceProvider = config.InferenceAnthropic
	if _, err := newCompleter(context.Background(), cfg, options{}); err == nil {
		t.Fatalf("expected error when anthropic api key is missing")
	}

	cfg.AnthropicAPIKey = "test-key"
	cfg.AnthropicModel = "claude-3-haiku-20240307"
	completer, err = newCompleter(context.Background(), cfg, options{})
	if err != nil {
		t.Fatalf("anthropic completer: %v", err)
	}
	if _, ok := completer.(*anthropic.Client); !ok {
		t.Fatalf("expected anthropic client, got %T", completer)
	}

	cfg.InferenceProvider = "openai"
	if _, err := newCompleter(context.Background(), cfg, options{}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestLoadPolicy(t *testing.T) {
	policy, err := loadPolicy(config.Config{})
	if err != nil {
		t.Fatalf("default policy: %v", err)
	}
	if len(policy.Criteria) == 0 {
		t.Fatalf("expected default policy criteria")
	}

	path := filepath.Join(t.TempDir(), "policy.yaml")
	raw := []byte("preamble: Compare the requests.\ncriteria:\n  - Same feature\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	policy, err = loadPolicy(config.Config{DedupPolicyPath: path})
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if len(policy.Criteria) != 1 {
		t.Fatalf("expected 1 criterion, got %d", len(policy.Criteria))
	}

	if _, err := loadPolicy(config.Config{DedupPolicyPath: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatalf("expected error for missing policy file")
	}
}
