package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	apierrors "co2forecast/internal/errors"
	"co2forecast/internal/validation"
	v1 "co2forecast/pkg/contracts/api/v1"
)

// ClientLogHandler writes browser-side log lines into the server log.
type ClientLogHandler struct {
	validator *validation.Validator
	logger    *slog.Logger
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger) *ClientLogHandler {
	return &ClientLogHandler{
		validator: validation.New(),
		logger:    logger.With(slog.String("handler", "client_log")),
	}
}

// Handle processes POST /api/client-logs. Unknown levels are logged as info.
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req v1.ClientLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}
	if fieldErrs, err := h.validator.Struct(req); err != nil || len(fieldErrs) > 0 {
		apierrors.WriteError(w, apierrors.NewValidationErrors(fieldErrs))
		return
	}

	var level slog.Level
	switch strings.ToLower(req.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	attrs := []slog.Attr{slog.String("client_source", req.Source)}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}
	h.logger.LogAttrs(r.Context(), level, req.Message, attrs...)

	w.WriteHeader(http.StatusNoContent)
}
