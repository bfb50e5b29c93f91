package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"co2forecast/internal/shared/testutil"
)

func TestClientLogHandler_Handle(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLevel  slog.Level
		wantMsg    string
	}{
		{
			name:       "info entry",
			body:       `{"level":"info","message":"chart rendered","data":{"region":"Europe"},"source":"chart"}`,
			wantStatus: http.StatusNoContent,
			wantLevel:  slog.LevelInfo,
			wantMsg:    "chart rendered",
		},
		{
			name:       "error entry",
			body:       `{"level":"error","message":"upload failed"}`,
			wantStatus: http.StatusNoContent,
			wantLevel:  slog.LevelError,
			wantMsg:    "upload failed",
		},
		{
			name:       "warning alias",
			body:       `{"level":"WARNING","message":"socket closed"}`,
			wantStatus: http.StatusNoContent,
			wantLevel:  slog.LevelWarn,
			wantMsg:    "socket closed",
		},
		{
			name:       "unknown level logs as info",
			body:       `{"level":"trace","message":"grid edited"}`,
			wantStatus: http.StatusNoContent,
			wantLevel:  slog.LevelInfo,
			wantMsg:    "grid edited",
		},
		{
			name:       "invalid json",
			body:       `{"level":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing message",
			body:       `{"level":"info"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewClientLogHandler(logger)

			req := httptest.NewRequest(http.MethodPost, "/api/client-logs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			handler.Handle(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMsg != "" {
				testutil.AssertLogContains(t, logs, tt.wantLevel, tt.wantMsg)
			} else {
				assert.Equal(t, 0, logs.Count())
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestClientLogHandler_RecordsSource(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewClientLogHandler(logger)

	req := httptest.NewRequest(http.MethodPost, "/api/client-logs",
		strings.NewReader(`{"level":"debug","message":"ws connected","source":"websocket"}`))
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	testutil.AssertLogAttr(t, logs, "client_source", "websocket")
	testutil.AssertLogAttr(t, logs, "handler", "client_log")
}
