package domain

// EnrichedRecord is the flat, fixed-schema projection of a submission and its
// enrichment results. Every field is always populated; missing enrichment
// leaves the documented default in place.
type EnrichedRecord struct {
	ID                      string  `json:"id" parquet:"id"`
	Timestamp               string  `json:"timestamp" parquet:"timestamp"`
	IngestionSource         string  `json:"ingestion_source" parquet:"ingestion_source"`
	FeatureRequestRaw       string  `json:"feature_request_raw" parquet:"feature_request_raw"`
	Title                   string  `json:"title" parquet:"title"`
	Description             string  `json:"description" parquet:"description"`
	Priority                string  `json:"priority" parquet:"priority"`
	Category                string  `json:"category" parquet:"category"`
	AICategory              string  `json:"ai_category" parquet:"ai_category"`
	AIPriority              string  `json:"ai_priority" parquet:"ai_priority"`
	AIComplexity            string  `json:"ai_complexity" parquet:"ai_complexity"`
	AIEffort                string  `json:"ai_effort" parquet:"ai_effort"`
	AITags                  string  `json:"ai_tags" parquet:"ai_tags"`
	ForecastStatus          string  `json:"forecast_status" parquet:"forecast_status"`
	ForecastTimeline        string  `json:"forecast_timeline" parquet:"forecast_timeline"`
	ForecastConfidence      float64 `json:"forecast_confidence" parquet:"forecast_confidence"`
	ServiceTeam             string  `json:"service_team" parquet:"service_team"`
	CustomerVisible         bool    `json:"customer_visible" parquet:"customer_visible"`
	LegalDisclaimerAccepted bool    `json:"legal_disclaimer_accepted" parquet:"legal_disclaimer_accepted"`
	IsDuplicate             bool    `json:"is_duplicate" parquet:"is_duplicate"`
	DuplicateConfidence     float64 `json:"duplicate_confidence" parquet:"duplicate_confidence"`
	SimilarRequestID        string  `json:"similar_request_id" parquet:"similar_request_id"`
	WorkaroundAvailable     bool    `json:"workaround_available" parquet:"workaround_available"`
	WorkaroundText          string  `json:"workaround_text" parquet:"workaround_text"`
	WorkaroundConfidence    float64 `json:"workaround_confidence" parquet:"workaround_confidence"`
}

// EnrichedColumns lists the persisted column names in schema order.
var EnrichedColumns = []string{
	"id",
	"timestamp",
	"ingestion_source",
	"feature_request_raw",
	"title",
	"description",
	"priority",
	"category",
	"ai_category",
	"ai_priority",
	"ai_complexity",
	"ai_effort",
	"ai_tags",
	"forecast_status",
	"forecast_timeline",
	"forecast_confidence",
	"service_team",
	"customer_visible",
	"legal_disclaimer_accepted",
	"is_duplicate",
	"duplicate_confidence",
	"similar_request_id",
	"workaround_available",
	"workaround_text",
	"workaround_confidence",
}
