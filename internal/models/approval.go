package models

import "github.com/uwamba/edms/internal/approval"

// ApprovalProcess is the stored form of an approval.Process. Steps are kept
// inline so a transition is a single document update.
type ApprovalProcess struct {
	ID          string           `json:"id,omitempty"`
	FormID      string           `json:"formId"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Steps       []*approval.Step `json:"steps"`
	CreatedBy   string           `json:"createdBy,omitempty"`
	CreatedAt   string           `json:"createdAt"`
	UpdatedAt   string           `json:"updatedAt"`
}

// Process returns the state machine view. It shares the step pointers.
func (a *ApprovalProcess) Process() *approval.Process {
	return &approval.Process{
		ID:          a.ID,
		FormID:      a.FormID,
		Name:        a.Name,
		Description: a.Description,
		Steps:       a.Steps,
	}
}
