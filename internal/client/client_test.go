package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/uwamba/edms/internal/approval"
	"github.com/uwamba/edms/internal/client"
	"github.com/uwamba/edms/internal/db"
	"github.com/uwamba/edms/internal/formengine"
	"github.com/uwamba/edms/internal/server"
)

const (
	adminEmail = "admin@edms.test"
	adminPass  = "secret"
)

const expenseForm = `{
  "title": "Expense claim",
  "fields": [
    {"id": 1, "label": "Category", "type": "select", "required": true, "options": ["Travel", "Meals"]},
    {"id": 2, "label": "Amount", "type": "number", "required": true,
     "validations": [{"type": "min", "value": 1}]},
    {"id": 3, "label": "Receipt", "type": "file"}
  ]
}`

type env struct {
	api    string
	token  string
	userID string
	c      *client.Client
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store, err := db.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := server.New(store, "sqlite", "client-test-secret")
	if err := srv.Init(ctx, adminEmail, adminPass); err != nil {
		t.Fatalf("init: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	api := ts.URL + "/api"
	anon, err := client.New(api)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	login, err := anon.Login(ctx, adminEmail, adminPass)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	c, err := client.New(api, client.WithAuth(client.StaticToken(login.Token)), client.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return &env{api: api, token: login.Token, userID: login.User.ID, c: c}
}

// post sends a JSON body with the admin token and decodes the reply.
func (e *env) post(t *testing.T, path string, body string, out any) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, e.api+path, bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func (e *env) createForm(t *testing.T) string {
	t.Helper()
	var form struct {
		ID string `json:"id"`
	}
	e.post(t, "/forms", expenseForm, &form)
	return form.ID
}

func TestLoadFormAndSubmit(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	formID := e.createForm(t)

	schema, err := e.c.LoadForm(ctx, formID)
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	store := formengine.NewStore(schema)
	if store, err = store.Set(formengine.Root("1"), "Travel"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if store, err = store.Set(formengine.Root("2"), 42.5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if store, err = store.Set(formengine.Root("3"), formengine.NewFile("r.pdf", "application/pdf", []byte("%PDF"))); err != nil {
		t.Fatalf("set: %v", err)
	}

	sub, err := e.c.SubmitStore(ctx, formID, store)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.ID == "" || sub.Data["1"] != "Travel" || sub.Data["2"] != 42.5 || len(sub.Files) != 1 {
		t.Fatalf("unexpected submission %+v", sub)
	}

	// Local validation stops an invalid store before any request.
	if _, err := e.c.SubmitStore(ctx, formID, formengine.NewStore(schema)); err == nil {
		t.Fatal("expected local validation errors")
	} else if _, ok := formengine.AsValidationErrors(err); !ok {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
}

func TestServerValidationPassesThrough(t *testing.T) {
	e := setup(t)
	formID := e.createForm(t)

	payload := &formengine.Payload{Entries: []formengine.Entry{{Key: "field_2", Value: "0"}}}
	_, err := e.c.Submit(context.Background(), formID, payload)
	var te *client.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", te.StatusCode)
	}
	if got := te.Errors["1"]; len(got) != 1 || got[0] != formengine.MsgRequired {
		t.Fatalf("errors = %v", te.Errors)
	}
	if _, ok := te.ValidationErrors()["2"]; !ok {
		t.Fatalf("expected an error for field 2, got %v", te.Errors)
	}
}

func TestLoadFormNotFound(t *testing.T) {
	e := setup(t)
	_, err := e.c.LoadForm(context.Background(), "999")
	var te *client.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 TransportError, got %v", err)
	}
}

func TestUnauthenticated(t *testing.T) {
	e := setup(t)
	anon, _ := client.New(e.api)
	_, err := anon.ApprovalProcess(context.Background(), "1")
	var te *client.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestApprovalMirroring(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	formID := e.createForm(t)

	var created approval.Process
	e.post(t, "/approval-processes", `{
	  "form_id": "`+formID+`",
	  "name": "Expense sign-off",
	  "steps": [
	    {"id": "lead", "step_number": 1, "approver_role": "admin"},
	    {"id": "cfo", "step_number": 2, "approver_role": "finance"}
	  ]
	}`, &created)

	proc, err := e.c.ApprovalProcess(ctx, formID)
	if err != nil {
		t.Fatalf("approval process: %v", err)
	}
	if len(proc.Steps) != 2 || proc.Steps[0].Status != approval.StatusPending {
		t.Fatalf("unexpected process %+v", proc)
	}

	admin := approval.Actor{ID: e.userID, Roles: []string{"admin", "user:" + e.userID}}

	// Out of order: refused locally, nothing sent.
	if err := e.c.Approve(ctx, proc, "cfo", approval.Actor{ID: "x", Roles: []string{"finance"}}, ""); !errors.Is(err, approval.ErrApprovalDenied) {
		t.Fatalf("expected local denial, got %v", err)
	}

	if err := e.c.Approve(ctx, proc, "lead", admin, "fine"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	lead, _ := proc.Step("lead")
	if lead.Status != approval.StatusApproved || lead.DecidedBy != e.userID {
		t.Fatalf("local mirror not applied: %+v", lead)
	}

	// The local copy believes the caller is finance; the server's token does not.
	pretender := approval.Actor{ID: e.userID, Roles: []string{"finance"}}
	err = e.c.Reject(ctx, proc, "cfo", pretender, "no")
	var te *client.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 from server, got %v", err)
	}
	if cfo, _ := proc.Step("cfo"); cfo.Status != approval.StatusPending {
		t.Fatalf("local state changed after server refusal: %s", cfo.Status)
	}

	remote, err := e.c.ApprovalProcess(ctx, formID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if st, _ := remote.Step("lead"); st.Status != approval.StatusApproved {
		t.Fatalf("server state = %s", st.Status)
	}
}

func TestActorMatchesServerRoles(t *testing.T) {
	e := setup(t)
	actor, err := e.c.Actor(context.Background())
	if err != nil {
		t.Fatalf("actor: %v", err)
	}
	if actor.ID != e.userID {
		t.Fatalf("actor id = %q, want %q", actor.ID, e.userID)
	}
	if len(actor.Roles) != 2 || actor.Roles[0] != "admin" || actor.Roles[1] != "user:"+e.userID {
		t.Fatalf("unexpected roles %v", actor.Roles)
	}
}

func fakeProcess(t *testing.T, body string) *client.Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	c, err := client.New(ts.URL, client.WithAuth(client.StaticToken("t")))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func TestApprovalProcessNormalizesSteps(t *testing.T) {
	ctx := context.Background()
	gap := fakeProcess(t, `{"id": "p", "form_id": "1", "steps": [
	  {"id": "s2", "step_number": 2, "approver_role": "b", "status": "pending"},
	  {"id": "s1", "step_number": 1, "approver_role": "a", "status": "pending"},
	  {"id": "s5", "step_number": 5, "approver_role": "c", "status": "pending"}]}`)
	_, err := gap.ApprovalProcess(ctx, "1")
	var se *formengine.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError for numbering gap, got %v", err)
	}

	unsorted := fakeProcess(t, `{"id": "p", "form_id": "1", "steps": [
	  {"id": "s2", "step_number": 2, "approver_role": "b", "status": "pending"},
	  {"id": "s1", "step_number": 1, "approver_role": "a", "status": "pending"}]}`)
	proc, err := unsorted.ApprovalProcess(ctx, "1")
	if err != nil {
		t.Fatalf("approval process: %v", err)
	}
	if proc.Steps[0].ID != "s1" || proc.Steps[1].ID != "s2" {
		t.Fatalf("steps not ordered by number: %s, %s", proc.Steps[0].ID, proc.Steps[1].ID)
	}
	if err := proc.Check("s1", approval.Actor{ID: "u", Roles: []string{"a"}}); err != nil {
		t.Fatalf("step 1 should be open: %v", err)
	}
	if err := proc.Check("s2", approval.Actor{ID: "u", Roles: []string{"b"}}); !errors.Is(err, approval.ErrApprovalDenied) {
		t.Fatalf("step 2 should wait for step 1, got %v", err)
	}
}
