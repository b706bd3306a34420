package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/kirillkom/frmf-pipeline/internal/config"
	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
	"github.com/kirillkom/frmf-pipeline/internal/core/usecase"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/columnar"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/queue/nats"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/storage/s3store"
)

type App struct {
	Config config.Config

	Queue         *nats.Queue
	RawStore      ports.ObjectStore
	EnrichedStore ports.ObjectStore
	Requests      ports.RequestReader

	IngestUC ports.SubmissionIngestor
	Pipeline *usecase.EnrichmentPipeline
	SweepUC  ports.Sweeper

	closeFn func()
}

type Option func(*options)

type options struct {
	observer resilience.Observer
}

// WithResilienceObserver reports retries and breaker changes of every
// external call the app makes.
func WithResilienceObserver(observer resilience.Observer) Option {
	return func(o *options) { o.observer = observer }
}

func (o options) executor(cfg config.Config) *resilience.Executor {
	executor := resilience.NewExecutor(cfg.Resilience)
	if o.observer != nil {
		executor.WithObserver(o.observer)
	}
	return executor
}

// New wires every adapter the services share. Request tracking is
// optional; when it is disabled Requests is nil.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	raw, enriched, err := newObjectStores(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ClientName:         "frmf-pipeline",
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: o.executor(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	completer, err := newCompleter(ctx, cfg, o)
	if err != nil {
		queue.Close()
		return nil, err
	}

	policy, err := loadPolicy(cfg)
	if err != nil {
		queue.Close()
		return nil, err
	}

	var (
		db      *sql.DB
		tracker *postgres.RequestTracker
	)
	if cfg.TrackingEnabled {
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			queue.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		tracker = postgres.NewRequestTracker(db)
		if err := tracker.EnsureSchema(ctx); err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	encoder := columnar.NewEncoder()
	classifier := usecase.NewClassifyUseCase(completer, cfg.InferenceMaxTokens)
	workaround := usecase.NewWorkaroundUseCase(completer, cfg.InferenceMaxTokens)
	dedup := usecase.NewDuplicateComparator(raw, completer, usecase.DuplicateComparatorOptions{
		Policy:         policy,
		ListLimit:      cfg.DedupListLimit,
		CandidateLimit: cfg.DedupCandidateLimit,
		MaxTokens:      cfg.InferenceMaxTokens,
	})

	ingestUC := usecase.NewIngestSubmissionUseCase(raw, queue, cfg.IngestionSource)
	pipeline := usecase.NewEnrichmentPipeline(raw, enriched, classifier, dedup, workaround, encoder, cfg.StepTimeout)
	sweepUC := usecase.NewSweepUseCase(raw, enriched, queue, encoder.Extension(), cfg.SweepConcurrency)

	app := &App{
		Config:        cfg,
		Queue:         queue,
		RawStore:      raw,
		EnrichedStore: enriched,
		IngestUC:      ingestUC,
		Pipeline:      pipeline,
		SweepUC:       sweepUC,
		closeFn: func() {
			queue.Close()
			if db != nil {
				_ = db.Close()
			}
		},
	}
	if tracker != nil {
		ingestUC.WithTracker(tracker)
		pipeline.WithTracker(tracker)
		app.Requests = tracker
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// NewSweeper wires only what a Batch Sweep needs: both stores and the
// queue used as pipeline trigger. The returned func closes the queue.
func NewSweeper(ctx context.Context, cfg config.Config) (ports.Sweeper, func(), error) {
	raw, enriched, err := newObjectStores(ctx, cfg, options{})
	if err != nil {
		return nil, nil, err
	}
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ClientName:         "frmfctl",
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: resilience.NewExecutor(cfg.Resilience),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init message queue: %w", err)
	}
	sweeper := usecase.NewSweepUseCase(raw, enriched, queue, columnar.Extension, cfg.SweepConcurrency)
	return sweeper, queue.Close, nil
}

// NewObjectStores opens the raw and enriched stores without the queue or
// database, for tools that only read records.
func NewObjectStores(ctx context.Context, cfg config.Config) (ports.ObjectStore, ports.ObjectStore, error) {
	return newObjectStores(ctx, cfg, options{})
}

func newObjectStores(ctx context.Context, cfg config.Config, o options) (ports.ObjectStore, ports.ObjectStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case config.StorageLocalFS, "":
		raw, err := localfs.New(cfg.StoragePath, cfg.RawBucket)
		if err != nil {
			return nil, nil, fmt.Errorf("init raw storage: %w", err)
		}
		enriched, err := localfs.New(cfg.StoragePath, cfg.EnrichedBucket)
		if err != nil {
			return nil, nil, fmt.Errorf("init enriched storage: %w", err)
		}
		return raw, enriched, nil
	case config.StorageS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3store.NewClient(awsCfg, s3store.ClientOptions{
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		executor := o.executor(cfg)
		return s3store.New(client, cfg.RawBucket, executor), s3store.New(client, cfg.EnrichedBucket, executor), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newCompleter(ctx context.Context, cfg config.Config, o options) (ports.Completer, error) {
	executor := o.executor(cfg)

	switch strings.ToLower(strings.TrimSpace(cfg.InferenceProvider)) {
	case config.InferenceOllama, "":
		return ollama.NewWithExecutor(cfg.OllamaURL, cfg.OllamaGenModel, executor), nil
	case config.InferenceAnthropic:
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for inference provider %q", config.InferenceAnthropic)
		}
		return anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, executor), nil
	case config.InferenceBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return anthropic.NewBedrock(awsCfg, cfg.BedrockModel, executor), nil
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.InferenceProvider)
	}
}

func loadPolicy(cfg config.Config) (domain.DuplicatePolicy, error) {
	policy, err := config.LoadDuplicatePolicy(cfg.DedupPolicyPath)
	if err != nil {
		return domain.DuplicatePolicy{}, fmt.Errorf("load duplicate policy: %w", err)
	}
	return policy, nil
}
