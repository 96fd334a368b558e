package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/approval"
	"github.com/uwamba/edms/internal/models"
	"github.com/uwamba/edms/internal/repository"
)

// ApprovalService persists approval processes and runs their transitions
// through approval.Process. Transitions are serialized so two approvers
// cannot both pass the predecessor check on stale state.
type ApprovalService struct {
	repo  *repository.ApprovalRepo
	forms *FormService
	mu    sync.Mutex
}

func NewApprovalService(repo *repository.ApprovalRepo, forms *FormService) *ApprovalService {
	return &ApprovalService{repo: repo, forms: forms}
}

// StepInput describes one step of a new process.
type StepInput struct {
	ID           string `json:"id,omitempty"`
	StepNumber   int    `json:"step_number"`
	ApproverRole string `json:"approver_role"`
}

// ProcessInput is the body of a create request.
type ProcessInput struct {
	FormID      string      `json:"form_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Steps       []StepInput `json:"steps"`
}

// Create attaches a new process to a form. Step numbering problems come
// back as *formengine.SchemaError.
func (s *ApprovalService) Create(ctx context.Context, createdBy string, in *ProcessInput) (*approval.Process, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.FormID == "" || in.Name == "" {
		return nil, invalid("form_id and name are required")
	}
	if len(in.Steps) == 0 {
		return nil, invalid("at least one step is required")
	}
	if _, err := s.forms.Get(ctx, in.FormID); err != nil {
		return nil, err
	}

	steps := make([]*approval.Step, 0, len(in.Steps))
	for _, st := range in.Steps {
		id := st.ID
		if id == "" {
			id = uuid.NewString()
		}
		steps = append(steps, &approval.Step{ID: id, StepNumber: st.StepNumber, ApproverRole: st.ApproverRole})
	}
	proc, err := approval.NewProcess("", in.FormID, in.Name, steps)
	if err != nil {
		return nil, err
	}
	proc.Description = in.Description

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.repo.FindByFormID(ctx, in.FormID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflict("form already has an approval process")
	}
	ts := now()
	stored := &models.ApprovalProcess{
		FormID:      proc.FormID,
		Name:        proc.Name,
		Description: proc.Description,
		Steps:       proc.Steps,
		CreatedBy:   createdBy,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	id, err := s.repo.Create(ctx, stored)
	if err != nil {
		return nil, storeError(err, "approval process")
	}
	proc.ID = id
	return proc, nil
}

// ForForm returns the process attached to a form.
func (s *ApprovalService) ForForm(ctx context.Context, formID string) (*approval.Process, error) {
	stored, err := s.repo.FindByFormID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, notFound("approval process")
	}
	return stored.Process(), nil
}

func (s *ApprovalService) Approve(ctx context.Context, stepID string, actor approval.Actor, comment string) (*approval.Process, error) {
	return s.decide(ctx, stepID, actor, comment, true)
}

func (s *ApprovalService) Reject(ctx context.Context, stepID string, actor approval.Actor, comment string) (*approval.Process, error) {
	return s.decide(ctx, stepID, actor, comment, false)
}

func (s *ApprovalService) decide(ctx context.Context, stepID string, actor approval.Actor, comment string, approve bool) (*approval.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.findByStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	proc := stored.Process()
	at := nowFunc().UTC()
	if approve {
		err = proc.Approve(stepID, actor, comment, at)
	} else {
		err = proc.Reject(stepID, actor, comment, at)
	}
	if err != nil {
		return nil, err
	}
	stored.Steps = proc.Steps
	stored.UpdatedAt = at.Format(timeLayout)
	if err := s.repo.UpdateSteps(ctx, stored); err != nil {
		return nil, storeError(err, "approval process")
	}
	log.WithFields(log.Fields{
		"process": stored.ID,
		"step":    stepID,
		"actor":   actor.ID,
		"approve": approve,
	}).Info("approval step decided")
	return proc, nil
}

func (s *ApprovalService) findByStep(ctx context.Context, stepID string) (*models.ApprovalProcess, error) {
	procs, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range procs {
		if _, ok := procs[i].Process().Step(stepID); ok {
			return &procs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", approval.ErrStepNotFound, stepID)
}
