package models

import "github.com/uwamba/edms/internal/formengine"

// Form is a stored form definition. Fields keep the engine's schema shape so
// the same JSON compiles on the server and in the client.
type Form struct {
	ID          string              `json:"id,omitempty"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Fields      []*formengine.Field `json:"fields"`
	CreatedBy   string              `json:"createdBy,omitempty"`
	CreatedAt   string              `json:"createdAt"`
	UpdatedAt   string              `json:"updatedAt"`
}

// Definition returns the engine view of the form.
func (f *Form) Definition() *formengine.Form {
	return &formengine.Form{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Fields:      f.Fields,
	}
}
