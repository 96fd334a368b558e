package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uwamba/edms/internal/approval"
	"github.com/uwamba/edms/internal/service"
)

type ApprovalHandler struct {
	svc *service.ApprovalService
}

func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// DecisionRequest is the body of approve and reject calls.
type DecisionRequest struct {
	StepID  string `json:"approval_step_id"`
	Comment string `json:"comment,omitempty"`
}

func (h *ApprovalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.ProcessInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	proc, err := h.svc.Create(r.Context(), user(r).UserID, &in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, proc)
}

func (h *ApprovalHandler) ForForm(w http.ResponseWriter, r *http.Request) {
	proc, err := h.svc.ForForm(r.Context(), chi.URLParam(r, "formId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proc)
}

func (h *ApprovalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.Approve)
}

func (h *ApprovalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.Reject)
}

type decideFunc func(ctx context.Context, stepID string, actor approval.Actor, comment string) (*approval.Process, error)

func (h *ApprovalHandler) decide(w http.ResponseWriter, r *http.Request, fn decideFunc) {
	var req DecisionRequest
	if err := readJSON(r, &req); err != nil || req.StepID == "" {
		writeError(w, http.StatusBadRequest, "approval_step_id is required")
		return
	}
	claims := user(r)
	actor := approval.Actor{ID: claims.UserID, Roles: claims.Roles()}
	proc, err := fn(r.Context(), req.StepID, actor, req.Comment)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proc)
}
