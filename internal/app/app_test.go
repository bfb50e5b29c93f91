package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2forecast/internal/config"
	"co2forecast/internal/shared/testutil"
	v1 "co2forecast/pkg/contracts/api/v1"
	"co2forecast/pkg/contracts/domain"
	"co2forecast/pkg/contracts/events"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Security.RateLimit.Enabled = false
	cfg.Upload.SweepInterval = 0
	return cfg
}

// startApp serves the application on a random port until the test ends.
func startApp(t *testing.T, cfg *config.Config) (*Application, string) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	a, err := New(cfg, logger)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("application did not stop")
		}
	})
	return a, "http://" + ln.Addr().String()
}

func uploadWorkbook(t *testing.T, baseURL string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "emissions.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(baseURL+"/api/uploads", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestApplication_UploadAndForecast(t *testing.T) {
	_, baseURL := startApp(t, testConfig(t))

	resp := uploadWorkbook(t, baseURL, testutil.DefaultWorkbook().Bytes(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var upload v1.UploadResponse
	decodeJSON(t, resp, &upload)
	assert.Equal(t, []string{"Africa", "Europe"}, upload.Regions)

	base := baseURL + "/api/uploads/" + upload.WorkspaceID

	resp, err := http.Get(base + "/regions/Europe/forecast")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view domain.ForecastView
	decodeJSON(t, resp, &view)

	assert.Equal(t, "CO₂ Emission Forecast for Europe", view.Title)
	require.Len(t, view.Forecast, 5)
	assert.Equal(t, 2026, view.Forecast[0].Year)
	assert.InDelta(t, 170.0, view.Forecast[0].CO2, 1e-6)
	assert.Equal(t, 2030, view.Forecast[4].Year)
	assert.InDelta(t, 210.0, view.Forecast[4].CO2, 1e-6)
	assert.Len(t, view.Historical, 6)

	t.Run("chart png", func(t *testing.T) {
		resp, err := http.Get(base + "/regions/Europe/chart.png")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="co2_chart.png"`, resp.Header.Get("Content-Disposition"))
		assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))
	})

	t.Run("chart pdf", func(t *testing.T) {
		resp, err := http.Get(base + "/regions/Europe/chart.pdf")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
	})

	t.Run("forecast table", func(t *testing.T) {
		resp, err := http.Get(base + "/regions/Europe/tables/forecast.csv")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "Year,CO2 (Mt)")
		assert.Contains(t, string(body), "\n2026,")
	})

	t.Run("edited history", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPut, base+"/regions/Europe/history",
			strings.NewReader(`{"rows":[{"year":2020,"co2_mt":10},{"year":2021,"co2_mt":20}]}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var edited domain.ForecastView
		decodeJSON(t, resp, &edited)
		assert.InDelta(t, 70.0, edited.Forecast[0].CO2, 1e-6)

		req, err = http.NewRequest(http.MethodDelete, base+"/regions/Europe/history", nil)
		require.NoError(t, err)
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		var reset domain.ForecastView
		decodeJSON(t, resp, &reset)
		assert.InDelta(t, 170.0, reset.Forecast[0].CO2, 1e-6)
	})
}

func TestApplication_Errors(t *testing.T) {
	_, baseURL := startApp(t, testConfig(t))

	tests := []struct {
		name       string
		do         func() *http.Response
		wantStatus int
		wantType   string
	}{
		{
			name: "format mismatch",
			do: func() *http.Response {
				wb := testutil.DefaultWorkbook()
				wb.Sheet = "Sheet1"
				return uploadWorkbook(t, baseURL, wb.Bytes(t))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "/errors/upload/format-mismatch",
		},
		{
			name: "unknown workspace",
			do: func() *http.Response {
				resp, err := http.Get(baseURL + "/api/uploads/missing/regions")
				require.NoError(t, err)
				return resp
			},
			wantStatus: http.StatusNotFound,
			wantType:   "/errors/workspace/not-found",
		},
		{
			name: "unknown route",
			do: func() *http.Response {
				resp, err := http.Get(baseURL + "/api/nothing")
				require.NoError(t, err)
				return resp
			},
			wantStatus: http.StatusNotFound,
			wantType:   "/errors/not-found",
		},
		{
			name: "method not allowed",
			do: func() *http.Response {
				resp, err := http.Post(baseURL+"/api/version", "application/json", nil)
				require.NoError(t, err)
				return resp
			},
			wantStatus: http.StatusMethodNotAllowed,
			wantType:   "/errors/bad-request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.do()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

			var problem map[string]interface{}
			decodeJSON(t, resp, &problem)
			assert.Equal(t, tt.wantType, problem["type"])
		})
	}
}

func TestApplication_OperationalEndpoints(t *testing.T) {
	_, baseURL := startApp(t, testConfig(t))

	for _, path := range []string{"/", "/api/health", "/api/health/live", "/api/health/ready", "/api/version", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(baseURL + path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		})
	}

	resp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestApplication_RateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 2}
	_, baseURL := startApp(t, cfg)

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(baseURL + "/api/health/live")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			assert.Equal(t, "1", resp.Header.Get("Retry-After"))
		}
	}
	assert.True(t, limited)
}

func TestApplication_WebSocketNotifications(t *testing.T) {
	a, baseURL := startApp(t, testConfig(t))

	resp := uploadWorkbook(t, baseURL, testutil.DefaultWorkbook().Bytes(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var upload v1.UploadResponse
	decodeJSON(t, resp, &upload)

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws?workspace=" + upload.WorkspaceID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg events.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.TypeConnection, msg.Type)
	require.Eventually(t, func() bool {
		return a.WebSocketHub.WorkspaceClientCount(upload.WorkspaceID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodPut,
		baseURL+"/api/uploads/"+upload.WorkspaceID+"/regions/Africa/history",
		strings.NewReader(`{"rows":[{"year":2020,"co2_mt":10}]}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.TypeForecastFailed, msg.Type)
	assert.Equal(t, upload.WorkspaceID, msg.WorkspaceID)

	req, err = http.NewRequest(http.MethodDelete, baseURL+"/api/uploads/"+upload.WorkspaceID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.TypeWorkspaceClosed, msg.Type)
}

func TestApplication_Addr(t *testing.T) {
	a := &Application{Config: config.Default()}
	assert.Equal(t, "http://localhost:8080", a.Addr())

	a.Config.Server.Host = "10.0.0.5"
	a.Config.Server.Port = 9000
	assert.Equal(t, "http://10.0.0.5:9000", a.Addr())
}
