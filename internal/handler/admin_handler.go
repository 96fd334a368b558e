package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/uwamba/edms/internal/db"
)

type AdminHandler struct {
	store   db.Store
	backend string
}

// NewAdminHandler reports on store; backend names it ("oxidb" or "sqlite").
func NewAdminHandler(store db.Store, backend string) *AdminHandler {
	return &AdminHandler{store: store, backend: backend}
}

func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	start := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unavailable",
			"backend": h.backend,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"backend":   h.backend,
		"latencyMs": time.Since(start).Milliseconds(),
	})
}
