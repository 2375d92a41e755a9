// Package api holds the XS2A wire envelope shared by all handlers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"xs2a/internal/domain"
)

// ErrorResponse is the body of every failed XS2A call.
type ErrorResponse struct {
	TppMessages []domain.TppMessage `json:"tppMessages"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes the holder's messages with the holder's HTTP status.
func WriteError(w http.ResponseWriter, e *domain.ErrorHolder) {
	status := e.Type().Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, ErrorResponse{TppMessages: e.Messages()})
}

// FormatError writes a 400 FORMAT_ERROR for the service.
func FormatError(w http.ResponseWriter, service domain.ServiceType, text string) {
	WriteError(w, domain.NewError(service, domain.CodeFormatError, text))
}

// ValidationError writes one FORMAT_ERROR message per invalid field.
func ValidationError(w http.ResponseWriter, service domain.ServiceType, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		FormatError(w, service, err.Error())
		return
	}
	msgs := make([]domain.TppMessage, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, domain.TppMessage{
			Code: domain.CodeFormatError,
			Text: formatValidationError(e),
			Path: e.Field(),
		})
	}
	WriteError(w, domain.NewErrorHolder(domain.ErrorType{Service: service, Status: http.StatusBadRequest}, msgs...))
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "numeric":
		return "Must be numeric"
	default:
		return "Invalid value"
	}
}

// Validate is a shared validator instance
var Validate = validator.New()

// DecodeAndValidate decodes JSON and validates the result. An empty body is
// allowed and validates the zero value.
func DecodeAndValidate(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return Validate.Struct(v)
}

// ServiceFromPath classifies a request path by XS2A service.
func ServiceFromPath(path string) domain.ServiceType {
	switch {
	case strings.Contains(path, "/consents/confirmation-of-funds"):
		return domain.ServicePIIS
	case strings.Contains(path, "/consents"):
		return domain.ServiceAIS
	case strings.Contains(path, "/signing-baskets"):
		return domain.ServiceSB
	default:
		return domain.ServicePIS
	}
}
