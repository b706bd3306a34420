package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
)

const (
	defaultMaxTokens      = 1000
	defaultListLimit      = 20
	defaultCandidateLimit = 10
	candidateFetchWorkers = 4
)

const (
	reasonMissingFields   = "Missing title or description"
	reasonNoCandidates    = "No previous requests to compare against"
	reasonMalformedAnswer = "Duplicate analysis returned an unreadable answer"
)

type DuplicateComparatorOptions struct {
	Policy         domain.DuplicatePolicy
	ListLimit      int
	CandidateLimit int
	MaxTokens      int
	Now            func() time.Time
}

// DuplicateComparator compares a new submission against recent submissions
// from the same day partition using the configured policy.
type DuplicateComparator struct {
	store     ports.ObjectStore
	completer ports.Completer
	policy    domain.DuplicatePolicy

	listLimit      int
	candidateLimit int
	maxTokens      int
	now            func() time.Time
}

func NewDuplicateComparator(store ports.ObjectStore, completer ports.Completer, opts DuplicateComparatorOptions) *DuplicateComparator {
	c := &DuplicateComparator{
		store:          store,
		completer:      completer,
		policy:         opts.Policy,
		listLimit:      opts.ListLimit,
		candidateLimit: opts.CandidateLimit,
		maxTokens:      opts.MaxTokens,
		now:            opts.Now,
	}
	if c.listLimit <= 0 {
		c.listLimit = defaultListLimit
	}
	if c.candidateLimit <= 0 {
		c.candidateLimit = defaultCandidateLimit
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Detect never fails on a malformed model answer: it falls back to the
// not-duplicate default. A failed inference call is returned as an error
// alongside that default.
func (c *DuplicateComparator) Detect(ctx context.Context, id, title, description string) (domain.DuplicateResult, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" {
		return domain.DefaultDuplicateResult(reasonMissingFields), nil
	}

	candidates, err := c.Candidates(ctx, id)
	if err != nil {
		slog.Warn("duplicate_candidates_unavailable", "request_id", id, "error", err)
		return domain.DefaultDuplicateResult(reasonNoCandidates), nil
	}
	if len(candidates) == 0 {
		return domain.DefaultDuplicateResult(reasonNoCandidates), nil
	}

	prompt := buildDuplicatePrompt(c.policy, title, description, candidates)
	text, err := c.completer.Complete(ctx, prompt, c.maxTokens)
	if err != nil {
		return domain.DefaultDuplicateResult(""), fmt.Errorf("duplicate comparison completion: %w", err)
	}

	result, err := parseDuplicateResult(text)
	if err != nil {
		slog.Warn("duplicate_answer_unparseable", "request_id", id, "error", err)
		return domain.DefaultDuplicateResult(reasonMalformedAnswer), nil
	}
	return result, nil
}

// Candidates lists the current day partition and loads the most recent
// submissions other than id that carry both a title and a description.
func (c *DuplicateComparator) Candidates(ctx context.Context, id string) ([]domain.Candidate, error) {
	keys, err := c.store.List(ctx, domain.PartitionPrefix(c.now()), c.listLimit)
	if err != nil {
		return nil, fmt.Errorf("list partition: %w", err)
	}
	if len(keys) > c.candidateLimit {
		keys = keys[len(keys)-c.candidateLimit:]
	}

	selected := make([]string, 0, len(keys))
	for _, key := range keys {
		if !domain.IsSubmissionKey(key) || domain.IDFromKey(key) == id {
			continue
		}
		selected = append(selected, key)
	}

	loaded := make([]*domain.Candidate, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(candidateFetchWorkers)
	for i, key := range selected {
		g.Go(func() error {
			candidate, err := c.loadCandidate(gctx, key)
			if err != nil {
				slog.Debug("duplicate_candidate_skipped", "key", key, "error", err)
				return nil
			}
			loaded[i] = candidate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(loaded))
	for _, candidate := range loaded {
		if candidate == nil || candidate.ID == id {
			continue
		}
		candidates = append(candidates, *candidate)
	}
	return candidates, nil
}

func (c *DuplicateComparator) loadCandidate(ctx context.Context, key string) (*domain.Candidate, error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read candidate: %w", err)
	}
	sub, err := domain.DecodeSubmission(raw)
	if err != nil {
		return nil, err
	}

	req := sub.Request()
	title := strings.TrimSpace(req.Title.String())
	description := strings.TrimSpace(req.Description.String())
	if title == "" || description == "" {
		return nil, fmt.Errorf("candidate %s lacks title or description", key)
	}

	candidateID := sub.ID
	if candidateID == "" {
		candidateID = domain.IDFromKey(key)
	}
	return &domain.Candidate{ID: candidateID, Title: title, Description: description}, nil
}

type duplicatePayload struct {
	IsDuplicate          *domain.FlexBool   `json:"is_duplicate"`
	Confidence           *domain.FlexFloat  `json:"confidence"`
	MostSimilarRequestID *domain.FlexString `json:"most_similar_request_id"`
	Reasoning            *domain.FlexString `json:"reasoning"`
}

func parseDuplicateResult(text string) (domain.DuplicateResult, error) {
	var payload duplicatePayload
	if err := decodeInferenceJSON(text, &payload); err != nil {
		return domain.DuplicateResult{}, err
	}
	if payload.IsDuplicate == nil {
		return domain.DuplicateResult{}, domain.WrapError(domain.ErrMalformedResponse, "parse duplicate result", fmt.Errorf("missing is_duplicate"))
	}

	result := domain.DuplicateResult{
		IsDuplicate:     bool(*payload.IsDuplicate),
		SimilarRequests: []string{},
	}
	if payload.Confidence != nil {
		result.Confidence = clampConfidence(float64(*payload.Confidence))
	}
	if payload.Reasoning != nil {
		result.Reasoning = strings.TrimSpace(payload.Reasoning.String())
	}
	if payload.MostSimilarRequestID != nil {
		if similar := normalizeRequestID(payload.MostSimilarRequestID.String()); similar != "" {
			result.MostSimilarRequestID = similar
			result.SimilarRequests = []string{similar}
		}
	}
	return result, nil
}

func normalizeRequestID(id string) string {
	id = strings.TrimSpace(id)
	switch strings.ToLower(id) {
	case "", "null", "none", "n/a":
		return ""
	}
	return id
}
