package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/cors"

	"github.com/kirillkom/frmf-pipeline/internal/config"
	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
	"github.com/kirillkom/frmf-pipeline/internal/observability/metrics"
)

const maxSubmissionBytes = 1 << 20

const (
	receiptMessage   = "Feature Request Submitted Successfully!"
	receiptStatus    = "Your request has been submitted and will be processed by our AI system for classification and forecasting."
	receiptNextSteps = `You will receive AI-generated analysis including implementation timeline estimates within 5 minutes. Check the "Track My Requests" tab to view updates.`
)

type Router struct {
	cfg      config.Config
	ingest   ports.SubmissionIngestor
	requests ports.RequestReader
	metrics  *metrics.HTTPServerMetrics
}

// NewRouter builds the ingress router. requests may be nil when tracking is
// disabled.
func NewRouter(cfg config.Config, ingest ports.SubmissionIngestor, requests ports.RequestReader) *Router {
	return &Router{
		cfg:      cfg,
		ingest:   ingest,
		requests: requests,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

type submissionReceipt struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	NextSteps string `json:"next_steps"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /data", rt.submitFeatureRequest)
	mux.HandleFunc("OPTIONS /data", rt.preflight)
	mux.HandleFunc("GET /v1/requests/{request_id}", rt.getRequestByID)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var onReject rejectFunc
	if rt.metrics != nil {
		onReject = rt.metrics.RecordRejected
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, onReject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return corsPolicy().Handler(handler)
}

func corsPolicy() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Authorization", "X-Amz-Date", "X-Api-Key", requestIDHeader},
		ExposedHeaders:       []string{requestIDHeader},
		OptionsSuccessStatus: http.StatusOK,
	})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// preflight answers bare OPTIONS requests that carry no CORS preflight
// headers; real preflights are answered by the CORS middleware.
func (rt *Router) preflight(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.WriteHeader(http.StatusOK)
}

func (rt *Router) submitFeatureRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
	if err == nil {
		var receipt *ports.IngestReceipt
		receipt, err = rt.ingest.Submit(r.Context(), body)
		if err == nil {
			rt.recordSubmission(nil)
			writeJSON(w, http.StatusOK, submissionReceipt{
				Message:   receiptMessage,
				RequestID: receipt.Submission.ID,
				Status:    receiptStatus,
				NextSteps: receiptNextSteps,
			})
			return
		}
	}

	rt.recordSubmission(err)
	slog.Error("ingest_failed",
		"request_id", requestIDFromContext(r.Context()),
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "Internal server error",
		Message: "Failed to process request",
	})
}

func (rt *Router) recordSubmission(err error) {
	if rt.metrics != nil {
		rt.metrics.RecordSubmission(err)
	}
}

func (rt *Router) getRequestByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("request_id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request id is required"})
		return
	}
	if rt.requests == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "request tracking is disabled"})
		return
	}

	tracked, err := rt.requests.GetByID(r.Context(), id)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			slog.Error("request_lookup_failed",
				"request_id", requestIDFromContext(r.Context()),
				"submission_id", id,
				"error", err,
			)
			message = "Internal server error"
		}
		writeJSON(w, status, errorResponse{Error: message})
		return
	}
	writeJSON(w, http.StatusOK, tracked)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
