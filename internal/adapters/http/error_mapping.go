package httpadapter

import (
	"net/http"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

// mapErrorToHTTPStatus translates domain error kinds. A malformed inference
// response is an upstream fault, so it surfaces as 502 rather than 500.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
