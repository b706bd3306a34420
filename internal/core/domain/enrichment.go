package domain

const DefaultForecastStatus = "submitted"

// ClassificationResult is the output of the classification step. The zero
// value stands for "classification unavailable".
type ClassificationResult struct {
	Category           string   `json:"category"`
	Priority           string   `json:"priority"`
	Complexity         string   `json:"complexity"`
	EstimatedEffort    string   `json:"estimated_effort"`
	Tags               []string `json:"tags"`
	ForecastStatus     string   `json:"forecast_status"`
	ForecastTimeline   string   `json:"forecast_timeline"`
	ForecastConfidence float64  `json:"forecast_confidence"`
	ServiceTeam        string   `json:"service_team"`
}

// DuplicateResult is the output of the deduplication step.
type DuplicateResult struct {
	IsDuplicate          bool     `json:"is_duplicate"`
	Confidence           float64  `json:"confidence"`
	MostSimilarRequestID string   `json:"most_similar_request_id,omitempty"`
	SimilarRequests      []string `json:"similar_requests"`
	Reasoning            string   `json:"reasoning,omitempty"`
}

// DefaultDuplicateResult is the not-duplicate answer used for short circuits
// and for every recovered failure.
func DefaultDuplicateResult(reason string) DuplicateResult {
	return DuplicateResult{
		IsDuplicate:     false,
		Confidence:      0,
		SimilarRequests: []string{},
		Reasoning:       reason,
	}
}

// WorkaroundResult is the output of the workaround step.
type WorkaroundResult struct {
	Available  bool    `json:"workaround_available"`
	Text       string  `json:"workaround_text"`
	Confidence float64 `json:"workaround_confidence"`
}

func DefaultWorkaroundResult() WorkaroundResult {
	return WorkaroundResult{}
}

// Candidate is a prior submission considered during duplicate comparison.
type Candidate struct {
	ID          string
	Title       string
	Description string
}

// DuplicatePolicy is the configurable part of the duplicate comparison
// prompt.
type DuplicatePolicy struct {
	Name                string   `yaml:"name"`
	Preamble            string   `yaml:"preamble"`
	CriteriaHeading     string   `yaml:"criteria_heading"`
	Criteria            []string `yaml:"criteria"`
	RulesHeading        string   `yaml:"rules_heading"`
	Rules               []string `yaml:"rules"`
	NonDuplicateHeading string   `yaml:"non_duplicate_heading"`
	NonDuplicates       []string `yaml:"non_duplicate_examples"`
	ReasoningHint       string   `yaml:"reasoning_hint"`
	Closing             string   `yaml:"closing"`
}
