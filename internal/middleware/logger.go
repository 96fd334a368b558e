// Package middleware holds the HTTP middleware shared by every route.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Logger writes one access log entry per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		entry := log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"bytes":    sw.bytes,
			"duration": time.Since(start).Round(time.Millisecond).String(),
		})
		if id := chimw.GetReqID(r.Context()); id != "" {
			entry = entry.WithField("request_id", id)
		}
		switch {
		case sw.status >= 500:
			entry.Error("request")
		case sw.status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	})
}
