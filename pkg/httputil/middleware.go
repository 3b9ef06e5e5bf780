package httputil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/classledger/classledger-backend/pkg/actor"
	"github.com/classledger/classledger-backend/pkg/logger"
	"github.com/classledger/classledger-backend/pkg/tenant"
)

type contextKey string

const (
	// RequestIDKey carries the per-request correlation id
	RequestIDKey contextKey = "request_id"
)

// RequestID middleware adds a request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			var actorID string
			if a := actor.FromContext(r.Context()); a != nil {
				actorID = a.ID
			}

			log.Info().
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", duration).
				Str("actor_id", actorID).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer middleware recovers from panics
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("panic", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// IdentityMiddleware extracts the school (tenant) and actor context from
// headers set by the API gateway after it has verified the session, and
// attaches both to the request context. This subsystem trusts them
// unconditionally.
//
// Headers expected:
//   - X-School-ID: school UUID (the tenant key)
//   - X-Actor-ID: acting user UUID
//   - X-Actor-Role: role name (admin, accountant, clerk, ...)
//
// Missing school context returns 403 (fail-fast) - it is what prevents
// cross-tenant data access. Exception: /health is allowed for monitoring.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		schoolID := r.Header.Get("X-School-ID")
		actorID := r.Header.Get("X-Actor-ID")
		actorRole := r.Header.Get("X-Actor-Role")

		if schoolID == "" || actorID == "" {
			http.Error(w, `{"error":"missing identity context"}`, http.StatusForbidden)
			return
		}

		ctx := tenant.WithSchoolID(r.Context(), schoolID)
		ctx = actor.WithActor(ctx, &actor.Actor{
			ID:       actorID,
			Role:     actorRole,
			SchoolID: schoolID,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
