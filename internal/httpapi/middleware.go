// Package httpapi exposes the supervisor's daemon fleet and invitation flow
// over a token-guarded HTTP control API.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sentineld/sentineld/internal/apperrors"
	"github.com/sentineld/sentineld/internal/logfields"
)

// chain wraps a handler with request logging and panic recovery, the same
// middleware shape applied to every route registered on the mux.
func chain(logger *slog.Logger, adapter *apperrors.HTTPAdapter, next http.Handler) http.Handler {
	return loggingMiddleware(logger, recoveryMiddleware(logger, adapter, next))
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("control api request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.HTTPStatus(wrapped.statusCode),
			slog.Duration("duration", time.Since(start)),
			logfields.RemoteAddr(r.RemoteAddr))
	})
}

func recoveryMiddleware(logger *slog.Logger, adapter *apperrors.HTTPAdapter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("control api handler panic", "error", rec, "path", r.URL.Path, "method", r.Method)
				adapter.WriteError(w, r, apperrors.New(apperrors.CategoryInternal, "internal server error").
					WithContext("path", r.URL.Path).Build())
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the response status code for logging.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

const bearerHeaderName = "X-API-KEY"

func bearerToken(r *http.Request) string {
	if v := r.Header.Get(bearerHeaderName); v != "" {
		return v
	}
	return r.Header.Get("Authorization")
}
