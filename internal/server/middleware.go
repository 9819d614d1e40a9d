package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"archmap/pkg/errors"
)

type contextKey string

const loggerKey contextKey = "logger"

// requestID assigns each request a UUID, echoed in X-Request-ID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		logger := s.logger.With("request_id", id)
		ctx := context.WithValue(r.Context(), loggerKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logRequests logs one line per completed request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		requestLogger(r).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start))
	})
}

// requireAPIKey enforces X-API-Key when an API key hash is configured.
// The comparison is constant-time over the key's SHA-256.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.cfg.Server.APIKeySHA256
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}

		sum := sha256.Sum256([]byte(r.Header.Get("X-API-Key")))
		got := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			w.Header().Set("WWW-Authenticate", "ApiKey")
			var resp errorResponse
			resp.Error.Code = string(errors.ErrCodeUnauthorized)
			resp.Error.Message = "invalid or missing API key"
			writeJSON(w, http.StatusUnauthorized, &resp)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger returns the request-scoped logger.
func requestLogger(r *http.Request) *log.Logger {
	if logger, ok := r.Context().Value(loggerKey).(*log.Logger); ok {
		return logger
	}
	return log.Default()
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
