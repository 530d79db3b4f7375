package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/binarykitchen/noodlenotify/internal/metrics"
	"github.com/binarykitchen/noodlenotify/internal/signing"
)

// SignatureMiddleware rejects requests whose body is not signed with secret.
// The body is buffered and handed on unchanged.
func SignatureMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get(signing.SignatureHeader)
			rawTS := r.Header.Get(signing.TimestampHeader)
			if signature == "" || rawTS == "" {
				metrics.PublishRejected.WithLabelValues("unsigned").Inc()
				writeError(w, http.StatusUnauthorized, "missing signature headers")
				return
			}

			timestamp, err := strconv.ParseInt(rawTS, 10, 64)
			if err != nil {
				metrics.PublishRejected.WithLabelValues("bad_signature").Inc()
				writeError(w, http.StatusUnauthorized, "invalid timestamp")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
			if err != nil {
				metrics.PublishRejected.WithLabelValues("too_large").Inc()
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			if !signing.Verify(secret, body, timestamp, signature) {
				metrics.PublishRejected.WithLabelValues("bad_signature").Inc()
				writeError(w, http.StatusUnauthorized, "invalid signature")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func LoggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
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

// Flush keeps push streams working behind the logging wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
