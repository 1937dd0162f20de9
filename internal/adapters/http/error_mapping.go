package httpadapter

import (
	"net/http"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsIndexUnavailable(err):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsAnswerFormat(err), domain.IsKind(err, domain.ErrGeneration):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrConversationStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
