package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2forecast/internal/dataprocessing"
	"co2forecast/internal/exporter"
	"co2forecast/internal/forecast"
	"co2forecast/internal/session"
	"co2forecast/internal/shared/testutil"
	"co2forecast/internal/validation"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
		wantDetail string
	}{
		{
			name:       "format mismatch hides cause",
			err:        fmt.Errorf("%w: %w", dataprocessing.ErrFormatMismatch, dataprocessing.ErrSheetNotFound),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeFormatMismatch,
			wantCode:   CodeFormatMismatch,
			wantDetail: dataprocessing.FormatMismatchMessage,
		},
		{
			name:       "workspace not found",
			err:        fmt.Errorf("%w: abc", session.ErrWorkspaceNotFound),
			wantStatus: http.StatusNotFound,
			wantType:   TypeWorkspaceNotFound,
			wantCode:   CodeWorkspaceNotFound,
		},
		{
			name:       "region not found",
			err:        fmt.Errorf("%w: %q", session.ErrRegionNotFound, "Mars"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeRegionNotFound,
			wantCode:   CodeRegionNotFound,
		},
		{
			name:       "insufficient data",
			err:        fmt.Errorf("forecast Europe: %w", forecast.ErrInsufficientData),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeForecastUnavailable,
			wantCode:   CodeForecastUnavailable,
		},
		{
			name:       "degenerate fit",
			err:        forecast.ErrDegenerateFit,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeForecastUnavailable,
			wantCode:   CodeForecastUnavailable,
		},
		{
			name:       "unsupported chart format",
			err:        fmt.Errorf("%w: %q", exporter.ErrUnsupportedFormat, "svg"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeBadRequest,
			wantCode:   CodeInvalidParameter,
		},
		{
			name:       "api error",
			err:        ErrMissingFile,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "validation errors",
			err:        NewValidationErrors([]validation.FieldError{{Field: "rows[0].year", Message: "year must be less than 2025"}}),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantCode:   CodeValidationFailed,
		},
		{
			name:       "context cancelled",
			err:        context.Canceled,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/api/uploads/abc/regions", nil)
			rec := httptest.NewRecorder()
			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/uploads/abc/regions", body["instance"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
			assert.NotContains(t, body, "stack")
		})
	}
}

func TestErrorHandler_HandleErrorNil(t *testing.T) {
	h := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, rec.Body.Len())
}

func TestErrorHandler_LogsCause(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	err := fmt.Errorf("%w: %w", dataprocessing.ErrFormatMismatch, dataprocessing.ErrMissingColumn)
	h.HandleError(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/uploads", nil), err)

	testutil.AssertLogContains(t, logs, slog.LevelWarn, "request failed")
	assert.True(t, logs.ContainsAttr("error", err.Error()))
}

func TestErrorHandler_StackOnlyForServerErrors(t *testing.T) {
	h := NewErrorHandler(nil, true)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))
	assert.Contains(t, decodeProblem(t, rec), "stack")

	rec = httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), session.ErrWorkspaceNotFound)
	assert.NotContains(t, decodeProblem(t, rec), "stack")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewErrorHandler(nil, false)
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	RecoveryMiddleware(h)(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body, "panic")
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/api/uploads", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "PATCH")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "/x").
		WithExtension("trace_id", "req-1").
		WithExtension("status", 999)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "req-1", body["trace_id"])
	assert.Equal(t, float64(404), body["status"], "standard members win over extensions")
	assert.NotContains(t, body, "detail")
}
