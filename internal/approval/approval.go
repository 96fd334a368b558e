// Package approval enforces ordered sign-off on form submissions: each step
// is decided by an actor holding the step's role, and only after the step
// before it has been approved.
package approval

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/uwamba/edms/internal/formengine"
)

// Status is the state of one step.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

var (
	ErrStepNotFound      = errors.New("approval: step not found")
	ErrInvalidTransition = errors.New("approval: step already decided")
	ErrApprovalDenied    = errors.New("approval: denied")
)

// DeniedError explains why an actor may not decide a step.
type DeniedError struct {
	StepID string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("approval: step %s denied: %s", e.StepID, e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrApprovalDenied }

// Step is one ordered gate of a process.
type Step struct {
	ID           string     `json:"id"`
	StepNumber   int        `json:"step_number"`
	ApproverRole string     `json:"approver_role"`
	Status       Status     `json:"status"`
	Comment      string     `json:"comment,omitempty"`
	DecidedBy    string     `json:"decided_by,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}

// Process is the ordered list of steps attached to a form.
type Process struct {
	ID          string  `json:"id"`
	FormID      string  `json:"form_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Steps       []*Step `json:"steps"`
}

// Actor is whoever attempts a transition. Roles holds stable role IDs such
// as a job title ID or "user:<id>".
type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) hasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NewProcess orders steps by number and checks that they run 1..n without
// gaps. Steps without a status start pending.
func NewProcess(id, formID, name string, steps []*Step) (*Process, error) {
	sorted := make([]*Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StepNumber < sorted[j].StepNumber })
	for i, st := range sorted {
		if st == nil {
			return nil, &formengine.SchemaError{Reason: "approval process has a nil step"}
		}
		if st.StepNumber != i+1 {
			return nil, &formengine.SchemaError{
				Reason: fmt.Sprintf("approval steps must be numbered 1..%d, found %d at position %d", len(sorted), st.StepNumber, i+1),
			}
		}
		if st.ApproverRole == "" {
			return nil, &formengine.SchemaError{Reason: fmt.Sprintf("approval step %d has no approver role", st.StepNumber)}
		}
		if st.Status == "" {
			st.Status = StatusPending
		}
	}
	return &Process{ID: id, FormID: formID, Name: name, Steps: sorted}, nil
}

func (p *Process) step(id string) *Step {
	for _, st := range p.Steps {
		if st.ID == id {
			return st
		}
	}
	return nil
}

func (p *Process) numbered(n int) *Step {
	for _, st := range p.Steps {
		if st.StepNumber == n {
			return st
		}
	}
	return nil
}

// Step returns the step with the given ID.
func (p *Process) Step(id string) (*Step, bool) {
	st := p.step(id)
	return st, st != nil
}

// Check reports whether actor may decide step id now, without changing
// anything.
func (p *Process) Check(id string, actor Actor) error {
	st := p.step(id)
	if st == nil {
		return fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	if st.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, st.Status)
	}
	if st.StepNumber > 1 {
		prev := p.numbered(st.StepNumber - 1)
		if prev == nil || prev.Status != StatusApproved {
			return &DeniedError{StepID: id, Reason: fmt.Sprintf("step %d is not approved yet", st.StepNumber-1)}
		}
	}
	if !actor.hasRole(st.ApproverRole) {
		return &DeniedError{StepID: id, Reason: "actor does not hold role " + st.ApproverRole}
	}
	return nil
}

// Approve moves step id to approved.
func (p *Process) Approve(id string, actor Actor, comment string, at time.Time) error {
	return p.decide(id, actor, comment, at, StatusApproved)
}

// Reject moves step id to rejected. Later steps are left as they are.
func (p *Process) Reject(id string, actor Actor, comment string, at time.Time) error {
	return p.decide(id, actor, comment, at, StatusRejected)
}

func (p *Process) decide(id string, actor Actor, comment string, at time.Time, to Status) error {
	if err := p.Check(id, actor); err != nil {
		return err
	}
	st := p.step(id)
	at = at.UTC()
	st.Status = to
	st.Comment = comment
	st.DecidedBy = actor.ID
	st.DecidedAt = &at
	return nil
}

// Next returns the first step still awaiting a decision, if the process can
// still move forward.
func (p *Process) Next() (*Step, bool) {
	for _, st := range p.Steps {
		switch st.Status {
		case StatusApproved:
			continue
		case StatusPending:
			return st, true
		}
		return nil, false
	}
	return nil, false
}

// Completed reports whether every step is approved.
func (p *Process) Completed() bool {
	for _, st := range p.Steps {
		if st.Status != StatusApproved {
			return false
		}
	}
	return len(p.Steps) > 0
}

// Outcome summarizes the process: rejected if any step was rejected,
// approved once all are, pending otherwise.
func (p *Process) Outcome() Status {
	for _, st := range p.Steps {
		if st.Status == StatusRejected {
			return StatusRejected
		}
	}
	if p.Completed() {
		return StatusApproved
	}
	return StatusPending
}

// Clone returns a deep copy.
func (p *Process) Clone() *Process {
	out := *p
	out.Steps = make([]*Step, len(p.Steps))
	for i, st := range p.Steps {
		cp := *st
		if st.DecidedAt != nil {
			at := *st.DecidedAt
			cp.DecidedAt = &at
		}
		out.Steps[i] = &cp
	}
	return &out
}
