package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "co2forecast/internal/errors"
	"co2forecast/internal/exporter"
	"co2forecast/internal/middleware"
	v1 "co2forecast/pkg/contracts/api/v1"
)

// uploadMemory is the part of a multipart upload kept in memory; the rest
// spills to temporary files.
const uploadMemory = 8 << 20

// ForecastHandler serves the upload, history, forecast and export endpoints.
type ForecastHandler struct {
	service      ForecastService
	decoder      *middleware.RequestDecoder
	errorHandler *apierrors.ErrorHandler
	maxUpload    int64
	logger       *slog.Logger
}

// NewForecastHandler creates a forecast handler. maxUpload caps the upload
// body in bytes.
func NewForecastHandler(service ForecastService, maxUpload int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ForecastHandler {
	return &ForecastHandler{
		service:      service,
		decoder:      middleware.NewRequestDecoder(logger, errorHandler),
		errorHandler: errorHandler,
		maxUpload:    maxUpload,
		logger:       logger.With(slog.String("component", "forecast_handler")),
	}
}

// Routes returns the routes mounted under /api/uploads.
func (h *ForecastHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(
		middleware.MaxBodySize(h.maxUpload),
		middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data"),
	).Post("/", h.Upload)

	r.Route("/{id}", func(r chi.Router) {
		r.Delete("/", h.Delete)
		r.Get("/regions", h.Regions)

		r.Route("/regions/{region}", func(r chi.Router) {
			r.Get("/history", h.History)
			r.With(
				middleware.MaxBodySize(1<<20),
				middleware.ContentTypeValidator(h.errorHandler, "application/json"),
			).Put("/history", h.UpdateHistory)
			r.Delete("/history", h.ResetHistory)
			r.Get("/forecast", h.Forecast)
			r.Get("/chart.{format}", h.Chart)
			r.Get("/tables/{kind}.csv", h.Table)
		})
	})

	return r
}

// Upload handles POST /api/uploads
func (h *ForecastHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrMissingFile)
		return
	}
	defer file.Close()

	h.logger.InfoContext(r.Context(), "workbook received",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
		slog.String("request_id", middleware.GetRequestID(r.Context())))

	resp, err := h.service.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// Regions handles GET /api/uploads/{id}/regions
func (h *ForecastHandler) Regions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Regions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// History handles GET /api/uploads/{id}/regions/{region}/history
func (h *ForecastHandler) History(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.History(r.Context(), chi.URLParam(r, "id"), regionParam(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// UpdateHistory handles PUT /api/uploads/{id}/regions/{region}/history
func (h *ForecastHandler) UpdateHistory(w http.ResponseWriter, r *http.Request) {
	var req v1.HistoryUpdateRequest
	if !h.decoder.Decode(w, r, &req) {
		return
	}

	view, err := h.service.UpdateHistory(r.Context(), chi.URLParam(r, "id"), regionParam(r), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// ResetHistory handles DELETE /api/uploads/{id}/regions/{region}/history
func (h *ForecastHandler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ResetHistory(r.Context(), chi.URLParam(r, "id"), regionParam(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// Forecast handles GET /api/uploads/{id}/regions/{region}/forecast
func (h *ForecastHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Forecast(r.Context(), chi.URLParam(r, "id"), regionParam(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// Chart handles GET /api/uploads/{id}/regions/{region}/chart.{format}.
// The chart downloads as an attachment unless ?inline=1 is given.
func (h *ForecastHandler) Chart(w http.ResponseWriter, r *http.Request) {
	format, err := exporter.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.Chart(r.Context(), chi.URLParam(r, "id"), regionParam(r), format, &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	disposition := "attachment"
	if inline, _ := strconv.ParseBool(r.URL.Query().Get("inline")); inline {
		disposition = "inline"
	}
	writeFile(w, format.ContentType(), disposition, format.Filename(), buf.Bytes())
}

// Table handles GET /api/uploads/{id}/regions/{region}/tables/{kind}.csv
func (h *ForecastHandler) Table(w http.ResponseWriter, r *http.Request) {
	kind, err := exporter.ParseTableKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.Table(r.Context(), chi.URLParam(r, "id"), regionParam(r), kind, &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeFile(w, "text/csv; charset=utf-8", "attachment", fmt.Sprintf("co2_%s.csv", kind), buf.Bytes())
}

// Delete handles DELETE /api/uploads/{id}
func (h *ForecastHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// regionParam returns the decoded region path segment. Region names may
// contain spaces and other escaped characters.
func regionParam(r *http.Request) string {
	region := chi.URLParam(r, "region")
	if decoded, err := url.PathUnescape(region); err == nil {
		return decoded
	}
	return region
}

func writeFile(w http.ResponseWriter, contentType, disposition, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
