package middleware

import (
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithFields(log.Fields{
					"panic": rec,
					"path":  r.URL.Path,
				}).Errorf("PANIC: %s", debug.Stack())
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
