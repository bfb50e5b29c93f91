package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"co2forecast/internal/dataprocessing"
	"co2forecast/internal/exporter"
	"co2forecast/internal/forecast"
	"co2forecast/internal/session"
)

// Common error types following RFC 7807
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeServiceDown     = "/errors/service-unavailable"
	TypeTimeout         = "/errors/timeout"
	TypePayloadTooLarge = "/errors/payload-too-large"
	TypeBadRequest      = "/errors/bad-request"
)

// Domain-specific error types
const (
	TypeFormatMismatch      = "/errors/upload/format-mismatch"
	TypeWorkspaceNotFound   = "/errors/workspace/not-found"
	TypeRegionNotFound      = "/errors/region/not-found"
	TypeForecastUnavailable = "/errors/forecast/unavailable"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem.WithExtension("trace_id", reqID)
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details.
// Domain sentinels are matched with errors.Is; the causes of a format
// mismatch stay in the logs and never reach the response.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	switch {
	case errors.Is(err, dataprocessing.ErrFormatMismatch):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeFormatMismatch,
			"Format Mismatch",
			dataprocessing.FormatMismatchMessage,
			r.URL.Path,
		).WithExtension("error_code", CodeFormatMismatch)

	case errors.Is(err, session.ErrWorkspaceNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeWorkspaceNotFound,
			"Workspace Not Found",
			"The upload session does not exist or has expired. Please upload the file again.",
			r.URL.Path,
		).WithExtension("error_code", CodeWorkspaceNotFound)

	case errors.Is(err, session.ErrRegionNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeRegionNotFound,
			"Region Not Found",
			err.Error(),
			r.URL.Path,
		).WithExtension("error_code", CodeRegionNotFound)

	case errors.Is(err, forecast.ErrInsufficientData),
		errors.Is(err, forecast.ErrDegenerateFit),
		errors.Is(err, forecast.ErrInvalidValue),
		errors.Is(err, exporter.ErrEmptyChart):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeForecastUnavailable,
			"Forecast Unavailable",
			fmt.Sprintf("No forecast can be produced for this region: %v", err),
			r.URL.Path,
		).WithExtension("error_code", CodeForecastUnavailable)

	case errors.Is(err, exporter.ErrUnsupportedFormat),
		errors.Is(err, exporter.ErrUnknownTable):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeBadRequest,
			"Bad Request",
			err.Error(),
			r.URL.Path,
		).WithExtension("error_code", CodeInvalidParameter)

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request",
			r.URL.Path,
		)
	}
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeValidationFailed:
		problemType = TypeValidation
	case CodeInvalidRequest, CodeInvalidParameter:
		problemType = TypeBadRequest
	case CodeNotFound:
		problemType = TypeNotFound
	case CodeWorkspaceNotFound:
		problemType = TypeWorkspaceNotFound
	case CodeRegionNotFound:
		problemType = TypeRegionNotFound
	case CodeFormatMismatch:
		problemType = TypeFormatMismatch
	case CodeForecastUnavailable:
		problemType = TypeForecastUnavailable
	case CodePayloadTooLarge:
		problemType = TypePayloadTooLarge
	case CodeRateLimitExceeded:
		problemType = TypeRateLimit
	case CodeServiceUnavailable:
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeBadRequest,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
