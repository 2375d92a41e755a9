package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"xs2a/internal/common/api"
	"xs2a/internal/domain"
	"xs2a/internal/scaapproach"
)

// Context keys
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	PsuKey       contextKey = "psu"
)

// Request headers
const (
	HeaderRequestID          = "X-Request-ID"
	HeaderPsuID              = "PSU-ID"
	HeaderPsuIDType          = "PSU-ID-Type"
	HeaderPsuCorporateID     = "PSU-Corporate-ID"
	HeaderPsuCorporateIDType = "PSU-Corporate-ID-Type"
	HeaderPsuIPAddress       = "PSU-IP-Address"
	HeaderRedirectPreferred  = "TPP-Redirect-Preferred"
	HeaderDecoupledPreferred = "TPP-Decoupled-Preferred"
	HeaderExplicitPreferred  = "TPP-Explicit-Authorisation-Preferred"
)

// GetRequestID retrieves the X-Request-ID from context
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// GetPsu retrieves the PSU identification from context
func GetPsu(ctx context.Context) domain.PsuIdData {
	if v, ok := ctx.Value(PsuKey).(domain.PsuIdData); ok {
		return v
	}
	return domain.PsuIdData{}
}

// RequestID keeps the TPP's X-Request-ID or assigns a UUID, and echoes it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PsuData extracts the PSU identification headers.
func PsuData(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		psu := domain.PsuIdData{
			ID:              r.Header.Get(HeaderPsuID),
			IDType:          r.Header.Get(HeaderPsuIDType),
			CorporateID:     r.Header.Get(HeaderPsuCorporateID),
			CorporateIDType: r.Header.Get(HeaderPsuCorporateIDType),
			IPAddress:       r.Header.Get(HeaderPsuIPAddress),
		}
		ctx := context.WithValue(r.Context(), PsuKey, psu)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TppPreferences reads the TPP-*-Preferred headers. An unparsable value is a
// format error rather than a silent default.
func TppPreferences(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p scaapproach.Preferences
		for header, dst := range map[string]**bool{
			HeaderRedirectPreferred:  &p.Redirect,
			HeaderDecoupledPreferred: &p.Decoupled,
			HeaderExplicitPreferred:  &p.Explicit,
		} {
			v := r.Header.Get(header)
			if v == "" {
				continue
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				api.WriteError(w, domain.NewErrorHolder(
					domain.ErrorType{Service: serviceOf(r), Status: http.StatusBadRequest},
					domain.TppMessage{Code: domain.CodeFormatError, Text: "invalid boolean", Path: header},
				))
				return
			}
			*dst = &b
		}
		next.ServeHTTP(w, r.WithContext(scaapproach.WithPreferences(r.Context(), p)))
	})
}

// Logger creates a structured logging middleware
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", GetRequestID(r.Context()),
					"user_agent", r.UserAgent(),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Recoverer recovers from panics and logs them
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
						"path", r.URL.Path,
						"method", r.Method,
						"request_id", GetRequestID(r.Context()),
					)
					api.WriteError(w, domain.NewError(serviceOf(r), domain.CodeInternalServerError, "An unexpected error occurred"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// serviceOf guesses the service from the path so error types stay meaningful
// before routing.
func serviceOf(r *http.Request) domain.ServiceType {
	return api.ServiceFromPath(r.URL.Path)
}
