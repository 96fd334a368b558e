package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/approval"
	"github.com/uwamba/edms/internal/auth"
	"github.com/uwamba/edms/internal/formengine"
	"github.com/uwamba/edms/internal/service"
)

// maxUpload bounds multipart bodies held in memory.
const maxUpload = 12 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxUpload)).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ValidationResponse is the 422 body: every failing path with its messages.
type ValidationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func writeValidation(w http.ResponseWriter, verrs formengine.ValidationErrors) {
	body := ValidationResponse{Message: "The given data was invalid.", Errors: make(map[string][]string, len(verrs))}
	for path, msg := range verrs {
		body.Errors[path] = []string{msg}
	}
	writeJSON(w, http.StatusUnprocessableEntity, body)
}

// writeServiceError maps an error from the service layer to a status code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if verrs, ok := formengine.AsValidationErrors(err); ok {
		writeValidation(w, verrs)
		return
	}
	var schemaErr *formengine.SchemaError
	var denied *approval.DeniedError
	switch {
	case errors.As(err, &schemaErr), errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &denied):
		writeError(w, http.StatusForbidden, denied.Reason)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound), errors.Is(err, approval.ErrStepNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, approval.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// user returns the caller's claims. The auth middleware guarantees them on
// protected routes.
func user(r *http.Request) *auth.Claims {
	if c := auth.GetUser(r.Context()); c != nil {
		return c
	}
	return &auth.Claims{}
}

func paging(r *http.Request) (skip, limit int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	return skip, limit
}
