package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func TestRateLimitRejectsOverBurstWith429(t *testing.T) {
	var reasons []string
	handler := rateLimitMiddleware(okHandler(http.StatusOK), 1, 2, func(reason string) {
		reasons = append(reasons, reason)
	})

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for range 3 {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/data", nil))
		codes = append(codes, last.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected burst of two then 429, got %v", codes)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After on throttled response")
	}
	var body errorResponse
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil || body.Error == "" {
		t.Fatalf("expected JSON error body, got %q (%v)", last.Body.String(), err)
	}
	if len(reasons) != 1 || reasons[0] != rejectRateLimited {
		t.Fatalf("expected a single %q rejection, got %v", rejectRateLimited, reasons)
	}
}

func TestTrafficControlDisabledWithZeroLimits(t *testing.T) {
	handler := backpressureMiddleware(rateLimitMiddleware(okHandler(http.StatusNoContent), 0, 0, nil), 0, 0)

	for i := range 5 {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/data", nil))
		if res.Code != http.StatusNoContent {
			t.Fatalf("request %d expected 204, got %d", i, res.Code)
		}
	}
}

func TestBackpressureShedsLoadWhenSlotsAreBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan int, 1)

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	})
	var reasons []string
	handler := backpressureMiddleware(slow, 1, 10*time.Millisecond, func(reason string) {
		reasons = append(reasons, reason)
	})

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/data", nil))
		firstDone <- res.Code
	}()
	<-entered

	shed := httptest.NewRecorder()
	handler.ServeHTTP(shed, httptest.NewRequest(http.MethodPost, "/data", nil))
	if shed.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the only slot is held, got %d", shed.Code)
	}
	if shed.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", shed.Header().Get("Retry-After"))
	}
	if len(reasons) != 1 || reasons[0] != rejectBackpressure {
		t.Fatalf("expected a single %q rejection, got %v", rejectBackpressure, reasons)
	}

	close(release)
	select {
	case code := <-firstDone:
		if code != http.StatusOK {
			t.Fatalf("held request expected 200, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("held request never completed")
	}
}
