package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"co2forecast/internal/config"
	"co2forecast/internal/shared/testutil"
)

func TestServeMainApp(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := ServeMainApp(50<<20, logger)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, config.AppName)
	assert.Contains(t, body, `data-max-upload="52428800"`)
	assert.Contains(t, body, `data-first-year="2026"`)
	assert.Contains(t, body, `data-last-year="2030"`)
}
