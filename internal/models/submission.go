package models

// Submission is one accepted answer set. Data is keyed by field path; file
// answers hold FileRef values pointing at stored documents.
type Submission struct {
	ID        string         `json:"id,omitempty"`
	FormID    string         `json:"formId"`
	Data      map[string]any `json:"data"`
	Files     []string       `json:"files,omitempty"` // document IDs
	CreatedBy string         `json:"createdBy"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
}

// FileRef replaces an uploaded file inside Submission.Data.
type FileRef struct {
	DocumentID  string `json:"documentId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
