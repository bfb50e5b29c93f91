package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	apierrors "co2forecast/internal/errors"
	"co2forecast/internal/middleware"
	ws "co2forecast/internal/websocket"
)

// WebSocketHandler upgrades GET /ws?workspace={id} and attaches the
// connection to the hub.
type WebSocketHandler struct {
	hub          *ws.Hub
	service      ForecastService
	upgrader     websocket.Upgrader
	options      ws.Options
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewWebSocketHandler creates the handler. Cross-origin upgrades are only
// accepted from allowedOrigins ("*" allows any).
func NewWebSocketHandler(hub *ws.Hub, service ForecastService, allowedOrigins []string, bufferSize int, options ws.Options, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:          hub,
		service:      service,
		options:      options,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  bufferSize,
		WriteBufferSize: bufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, allowedOrigins)
		},
	}
	return h
}

// ServeHTTP handles GET /ws
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace")
	if workspaceID == "" {
		h.errorHandler.HandleError(w, r, apierrors.InvalidParameter("workspace", errMissingParam))
		return
	}
	if _, err := h.service.Regions(r.Context(), workspaceID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", middleware.GetRealIP(r)))
		return
	}

	if !ws.ServeWS(h.hub, conn, workspaceID, middleware.GetRequestID(r.Context()), h.options, h.logger) {
		h.logger.WarnContext(r.Context(), "websocket hub stopped, connection closed")
	}
}

// originAllowed accepts requests without an Origin header, same-host
// origins and configured origins.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
