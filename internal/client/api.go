package client

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/uwamba/edms/internal/approval"
	"github.com/uwamba/edms/internal/formengine"
	"github.com/uwamba/edms/internal/models"
)

// LoginResult is the token and profile returned by a login.
type LoginResult struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.doJSON(ctx, "login", http.MethodPost, "/token-login",
		map[string]string{"email": email, "password": password}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Me(ctx context.Context) (*models.UserResponse, error) {
	var u models.UserResponse
	if err := c.doJSON(ctx, "me", http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Actor describes the authenticated user the way the server authorizes
// approval decisions: role, job title and the user's own ID.
func (c *Client) Actor(ctx context.Context) (approval.Actor, error) {
	u, err := c.Me(ctx)
	if err != nil {
		return approval.Actor{}, err
	}
	roles := make([]string, 0, 3)
	if u.Role != "" {
		roles = append(roles, u.Role)
	}
	if u.JobTitleID != "" {
		roles = append(roles, u.JobTitleID)
	}
	return approval.Actor{ID: u.ID, Roles: append(roles, "user:"+u.ID)}, nil
}

// LoadForm fetches a form definition and compiles it. A definition that does
// not compile is reported as the *formengine.SchemaError.
func (c *Client) LoadForm(ctx context.Context, id string) (*formengine.Schema, error) {
	var form formengine.Form
	if err := c.doJSON(ctx, "load form", http.MethodGet, "/forms/"+url.PathEscape(id), nil, &form); err != nil {
		return nil, err
	}
	return formengine.Compile(&form)
}

// Submit posts a flattened payload as multipart.
func (c *Client) Submit(ctx context.Context, formID string, payload *formengine.Payload) (*models.Submission, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := payload.WriteMultipart(mw); err != nil {
		return nil, &TransportError{Op: "submit", Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &TransportError{Op: "submit", Err: err}
	}
	var sub models.Submission
	err := c.do(ctx, "submit", http.MethodPost, "/form/"+url.PathEscape(formID)+"/submissions",
		mw.FormDataContentType(), buf.Bytes(), &sub)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// SubmitStore validates the answers locally and submits them only when they
// pass. Local failures come back as formengine.ValidationErrors.
func (c *Client) SubmitStore(ctx context.Context, formID string, store *formengine.Store) (*models.Submission, error) {
	payload, err := store.Submission()
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, formID, payload)
}

// ApprovalProcess fetches the form's process. Steps come back ordered by
// number; a process whose numbers do not run 1..n is a *formengine.SchemaError.
func (c *Client) ApprovalProcess(ctx context.Context, formID string) (*approval.Process, error) {
	var proc approval.Process
	path := "/forms/" + url.PathEscape(formID) + "/approval-process"
	if err := c.doJSON(ctx, "approval process", http.MethodGet, path, nil, &proc); err != nil {
		return nil, err
	}
	out, err := approval.NewProcess(proc.ID, proc.FormID, proc.Name, proc.Steps)
	if err != nil {
		return nil, err
	}
	out.Description = proc.Description
	return out, nil
}

// Approve checks the transition against proc, asks the server to perform
// it, then applies it to proc. proc is untouched on any failure.
func (c *Client) Approve(ctx context.Context, proc *approval.Process, stepID string, actor approval.Actor, comment string) error {
	return c.decide(ctx, "approve", proc, stepID, actor, comment)
}

// Reject is Approve's counterpart.
func (c *Client) Reject(ctx context.Context, proc *approval.Process, stepID string, actor approval.Actor, comment string) error {
	return c.decide(ctx, "reject", proc, stepID, actor, comment)
}

func (c *Client) decide(ctx context.Context, verb string, proc *approval.Process, stepID string, actor approval.Actor, comment string) error {
	if err := proc.Check(stepID, actor); err != nil {
		return err
	}
	var server approval.Process
	body := map[string]string{"approval_step_id": stepID, "comment": comment}
	if err := c.doJSON(ctx, verb, http.MethodPost, "/approval-step/"+verb, body, &server); err != nil {
		return err
	}
	at := time.Now().UTC()
	if st, ok := server.Step(stepID); ok && st.DecidedAt != nil {
		at = *st.DecidedAt
	}
	if verb == "approve" {
		return proc.Approve(stepID, actor, comment, at)
	}
	return proc.Reject(stepID, actor, comment, at)
}
