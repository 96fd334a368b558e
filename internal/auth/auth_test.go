package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/uwamba/edms/internal/auth"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	tok, err := auth.GenerateToken(secret, auth.Identity{UserID: "7", Email: "a@x", Role: "manager", JobTitleID: "jt-3"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := auth.ValidateToken(secret, tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "7" || claims.JobTitleID != "jt-3" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	roles := claims.Roles()
	want := []string{"manager", "jt-3", "user:7"}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v", roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles = %v, want %v", roles, want)
		}
	}
	if _, err := auth.ValidateToken("other", tok); err == nil {
		t.Fatal("expected signature error with wrong secret")
	}
}

func TestPassword(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !auth.CheckPassword("s3cret", hash) || auth.CheckPassword("nope", hash) {
		t.Fatal("password check mismatch")
	}
}

func TestMiddleware(t *testing.T) {
	var seen *auth.Claims
	h := auth.Middleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.GetUser(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no header: status %d", rec.Code)
	}

	tok, _ := auth.GenerateToken(secret, auth.Identity{UserID: "1", Role: "admin"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen == nil || seen.UserID != "1" {
		t.Fatalf("status %d, claims %+v", rec.Code, seen)
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := auth.Middleware(secret)(auth.RequireRole(auth.RoleAdmin)(ok))

	for role, want := range map[string]int{auth.RoleAdmin: http.StatusNoContent, "user": http.StatusForbidden} {
		tok, err := auth.GenerateToken(secret, auth.Identity{UserID: "1", Email: "a@x", Role: role})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/users", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %q: status %d, want %d", role, rec.Code, want)
		}
	}
}
