package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uwamba/edms/internal/service"
)

type FormHandler struct {
	svc *service.FormService
}

func NewFormHandler(svc *service.FormService) *FormHandler {
	return &FormHandler{svc: svc}
}

func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	forms, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.FormInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	form, err := h.svc.Create(r.Context(), user(r).UserID, &in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	form, err := h.svc.Get(r.Context(), chi.URLParam(r, "formId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (h *FormHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.FormInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	form, err := h.svc.Update(r.Context(), chi.URLParam(r, "formId"), &in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (h *FormHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "formId")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
