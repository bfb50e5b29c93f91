package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	apierrors "co2forecast/internal/errors"
	"co2forecast/internal/validation"
)

// RequestDecoder decodes JSON bodies and validates them with struct tags.
type RequestDecoder struct {
	validator    *validation.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewRequestDecoder creates a decoder sharing one validator instance.
func NewRequestDecoder(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *RequestDecoder {
	return &RequestDecoder{
		validator:    validation.New(),
		logger:       logger.With(slog.String("component", "request_decoder")),
		errorHandler: errorHandler,
	}
}

// Decode reads r's body into dst and validates it. On failure the error
// response has already been written and false is returned.
func (d *RequestDecoder) Decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			d.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
		case errors.Is(err, io.EOF):
			d.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(errors.New("request body is empty")))
		default:
			d.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		}
		return false
	}

	fieldErrs, err := d.validator.Struct(dst)
	if err != nil {
		d.logger.ErrorContext(r.Context(), "validator failed",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		d.errorHandler.HandleError(w, r, err)
		return false
	}
	if len(fieldErrs) > 0 {
		d.errorHandler.HandleError(w, r, apierrors.NewValidationErrors(fieldErrs))
		return false
	}
	return true
}

// ContentTypeValidator rejects bodies whose Content-Type is not one of
// contentTypes. GET, HEAD and DELETE pass through.
func ContentTypeValidator(errorHandler *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				errorHandler.HandleError(w, r, apierrors.New(
					http.StatusBadRequest,
					apierrors.CodeInvalidRequest,
					"Content-Type header is required",
				))
				return
			}

			for _, allowed := range contentTypes {
				if strings.HasPrefix(strings.ToLower(contentType), allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				apierrors.CodeInvalidRequest,
				"Unsupported content type",
				map[string]interface{}{
					"content_type": contentType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}
