package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tugsousa/fundfolio/src/logger"
)

// RequestLogMiddleware tags each request with an id and logs method, path
// and duration at debug level.
func RequestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.L.Debug("Request handled",
			"requestId", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"durationMs", time.Since(start).Milliseconds())
	})
}
