package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
)

// errorResponse - конверт ошибок в формате GraphQL: {"errors":[{"message","extensions":{"code"}}]}.
type errorResponse struct {
	Errors gqlerror.List `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	gqlErr := &gqlerror.Error{
		Message:    err.Error(),
		Extensions: map[string]interface{}{"code": code},
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		gqlErr.Extensions["requestId"] = reqID
	}
	writeJSON(w, status, errorResponse{Errors: gqlerror.List{gqlErr}})
}

// writeServiceError переводит категорию ошибки сервиса в HTTP-статус.
// Внутренние ошибки логируются, клиенту уходит обобщенное сообщение.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "BAD_USER_INPUT", err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err)
	case errors.Is(err, domain.ErrPermission):
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err)
	default:
		code := "INTERNAL_SERVER_ERROR"
		if errors.Is(err, domain.ErrConsistency) {
			code = "CONSISTENCY_VIOLATION"
		}
		s.logger.ErrorContext(r.Context(), "request_failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, r, http.StatusInternalServerError, code, errors.New("internal error"))
	}
}
