package http

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"co2forecast/internal/config"
	"co2forecast/internal/forecast"
	"co2forecast/pkg/contracts"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// pageData is rendered into the index template.
type pageData struct {
	AppName        string
	Version        string
	MaxUploadBytes int64
	MaxUploadMB    int64
	FirstYear      int
	LastYear       int
	HistoryBefore  int
}

// ServeMainApp serves the single-page UI.
func ServeMainApp(maxUploadBytes int64, logger *slog.Logger) http.HandlerFunc {
	data := pageData{
		AppName:        config.AppName,
		Version:        contracts.Version,
		MaxUploadBytes: maxUploadBytes,
		MaxUploadMB:    maxUploadBytes >> 20,
		FirstYear:      forecast.FirstYear,
		LastYear:       forecast.LastYear,
		HistoryBefore:  forecast.HistoryBefore,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := indexTemplate.Execute(&buf, data); err != nil {
			logger.ErrorContext(r.Context(), "failed to render page", slog.String("error", err.Error()))
			http.Error(w, "Error rendering page", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(buf.Bytes())
	}
}
