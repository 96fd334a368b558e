// Package router wires the HTTP API.
package router

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/uwamba/edms/internal/auth"
	"github.com/uwamba/edms/internal/handler"
	mw "github.com/uwamba/edms/internal/middleware"
)

// Handlers groups every handler the router mounts.
type Handlers struct {
	Auth       *handler.AuthHandler
	Users      *handler.UserHandler
	Forms      *handler.FormHandler
	Submission *handler.SubmissionHandler
	Approval   *handler.ApprovalHandler
	Documents  *handler.DocumentHandler
	Search     *handler.SearchHandler
	Dashboard  *handler.DashboardHandler
	Admin      *handler.AdminHandler
}

func New(jwtSecret string, h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/token-login", h.Auth.Login)
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/register", h.Auth.Register)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))

			r.Get("/auth/me", h.Auth.Me)
			r.Get("/dashboard", h.Dashboard.Dashboard)
			r.Get("/admin/health", h.Admin.Health)

			// Users; Update lets non-admins edit their own profile only
			r.Get("/users", h.Users.List)
			r.Get("/users/{userId}", h.Users.Get)
			r.Put("/users/{userId}", h.Users.Update)

			// Forms
			r.Get("/forms", h.Forms.List)
			r.Post("/forms", h.Forms.Create)
			r.Get("/forms/{formId}", h.Forms.Get)
			r.Put("/forms/{formId}", h.Forms.Update)
			r.Delete("/forms/{formId}", h.Forms.Delete)

			// Submissions
			r.Post("/form/{formId}/submissions", h.Submission.Create)
			r.Post("/forms/{formId}/submissions", h.Submission.Create)
			r.Get("/forms/{formId}/submissions", h.Submission.List)
			r.Get("/submissions/{subId}", h.Submission.Get)
			r.Delete("/submissions/{subId}", h.Submission.Delete)

			// Approvals
			r.Get("/forms/{formId}/approval-process", h.Approval.ForForm)
			r.Post("/approval-step/approve", h.Approval.Approve)
			r.Post("/approval-step/reject", h.Approval.Reject)

			// Documents
			r.Get("/documents", h.Documents.List)
			r.Post("/documents", h.Documents.Upload)
			r.Get("/documents/{docId}/download", h.Documents.Download)
			r.Delete("/documents/{docId}", h.Documents.Delete)

			// Search
			r.Post("/search", h.Search.Search)

			// Administration
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))

				r.Post("/users", h.Users.Create)
				r.Delete("/users/{userId}", h.Users.Delete)
				r.Post("/approval-processes", h.Approval.Create)
			})
		})
	})

	return r
}
