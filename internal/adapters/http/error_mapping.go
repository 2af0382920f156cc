package httpadapter

import (
	"net/http"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDuplicateRequest):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrJobNotFound), domain.IsKind(err, domain.ErrReferenceNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrReferenceExpired):
		return http.StatusGone
	case domain.IsKind(err, domain.ErrTerminalState):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
