package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "co2forecast/internal/errors"
	"co2forecast/internal/session"
	"co2forecast/internal/shared/testutil"
	ws "co2forecast/internal/websocket"
	v1 "co2forecast/pkg/contracts/api/v1"
	"co2forecast/pkg/contracts/events"
)

func newWebSocketServer(t *testing.T, origins []string) (*httptest.Server, *ws.Hub) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	hub := ws.NewHub(logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	svc := &MockForecastService{}
	svc.On("Regions", "ws-1").Return(v1.RegionsResponse{WorkspaceID: "ws-1"}, nil)
	svc.On("Regions", "missing").Return(v1.RegionsResponse{}, session.ErrWorkspaceNotFound)

	handler := NewWebSocketHandler(hub, svc, origins, 1024, ws.DefaultOptions(), logger,
		apierrors.NewErrorHandler(logger, false))
	server := httptest.NewServer(handler)

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
	})
	return server, hub
}

func wsURL(server *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/" + query
}

func TestWebSocketHandler_Connect(t *testing.T) {
	server, hub := newWebSocketServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "?workspace=ws-1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var welcome events.Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, events.TypeConnection, welcome.Type)
	assert.Equal(t, "ws-1", welcome.WorkspaceID)
	assert.Equal(t, 1, hub.WorkspaceClientCount("ws-1"))
}

func TestWebSocketHandler_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		origin     string
		wantStatus int
	}{
		{name: "missing workspace", query: "", wantStatus: http.StatusBadRequest},
		{name: "unknown workspace", query: "?workspace=missing", wantStatus: http.StatusNotFound},
		{name: "foreign origin", query: "?workspace=ws-1", origin: "http://evil.example", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, hub := newWebSocketServer(t, []string{"http://app.example"})

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, tt.query), header)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, 0, hub.ClientCount())
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{name: "no origin", want: true},
		{name: "same host", origin: "http://localhost:8080", want: true},
		{name: "configured", origin: "http://app.example", allowed: []string{"http://app.example"}, want: true},
		{name: "wildcard", origin: "http://other.example", allowed: []string{"*"}, want: true},
		{name: "foreign", origin: "http://other.example", allowed: []string{"http://app.example"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://localhost:8080/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originAllowed(req, tt.allowed))
		})
	}
}
