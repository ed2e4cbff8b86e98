package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mindcare/booking-core/internal/logging"
	"github.com/mindcare/booking-core/internal/service"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, r.logger)
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, message string, details map[string]string) {
	r.writeJSON(ctx, w, status, errorResponse{Error: message, Details: details})
}

// handleServiceError переводит ошибки сервисов в HTTP-ответ.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		vErr *service.ValidationError
		cErr *service.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: vErr.Fields})
	case errors.As(err, &cErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: cErr.Message, Reason: cErr.Reason})
	case errors.Is(err, service.ErrUnauthenticated):
		r.writeError(ctx, w, http.StatusUnauthorized, "authentication required", nil)
	case errors.Is(err, service.ErrForbidden):
		r.writeError(ctx, w, http.StatusForbidden, "permission denied", nil)
	case errors.Is(err, service.ErrNotFound):
		r.writeError(ctx, w, http.StatusNotFound, "not found", nil)
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "kind", service.ErrorKind(err), "error", err)
		r.writeError(ctx, w, http.StatusInternalServerError, "internal error", nil)
	}
}
