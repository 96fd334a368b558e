package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/uwamba/edms/internal/formengine"
	"github.com/uwamba/edms/internal/service"
)

type SubmissionHandler struct {
	subSvc *service.SubmissionService
	docSvc *service.DocumentService
}

func NewSubmissionHandler(subSvc *service.SubmissionService, docSvc *service.DocumentService) *SubmissionHandler {
	return &SubmissionHandler{subSvc: subSvc, docSvc: docSvc}
}

func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	skip, limit := paging(r)
	subs, total, err := h.subSvc.List(r.Context(), formID, skip, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": subs,
		"total":       total,
		"skip":        skip,
		"limit":       limit,
	})
}

// Create accepts the flattened field_<id> payload as multipart or as a
// urlencoded form.
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")

	var (
		values url.Values
		files  map[string][]*formengine.File
	)
	err := r.ParseMultipartForm(maxUpload)
	switch {
	case err == nil:
		values, files, err = formengine.FromMultipart(r.MultipartForm)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		values = r.PostForm
	default:
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	sub, err := h.subSvc.Create(r.Context(), formID, values, files, user(r).UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subId")
	sub, err := h.subSvc.Get(r.Context(), subID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	docs, err := h.docSvc.ListBySubmission(r.Context(), subID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submission": sub,
		"documents":  docs,
	})
}

func (h *SubmissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subId")
	if err := h.subSvc.Delete(r.Context(), subID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": subID})
}
