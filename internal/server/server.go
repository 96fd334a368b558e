// Package server assembles repositories, services, handlers and the router
// on top of a db.Store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/db"
	"github.com/uwamba/edms/internal/handler"
	"github.com/uwamba/edms/internal/repository"
	"github.com/uwamba/edms/internal/router"
	"github.com/uwamba/edms/internal/service"
)

// Server is the wired application.
type Server struct {
	Handler http.Handler
	Auth    *service.AuthService

	ensure []func(context.Context) error
}

// New wires every layer on store. backend names the store in health output.
func New(store db.Store, backend, jwtSecret string) *Server {
	// Repositories
	userRepo := repository.NewUserRepo(store)
	formRepo := repository.NewFormRepo(store)
	subRepo := repository.NewSubmissionRepo(store)
	docRepo := repository.NewDocumentRepo(store)
	apprRepo := repository.NewApprovalRepo(store)

	// Services
	authSvc := service.NewAuthService(userRepo, jwtSecret)
	userSvc := service.NewUserService(userRepo, authSvc)
	formSvc := service.NewFormService(formRepo)
	docSvc := service.NewDocumentService(docRepo)
	subSvc := service.NewSubmissionService(subRepo, formSvc, docSvc)
	apprSvc := service.NewApprovalService(apprRepo, formSvc)
	searchSvc := service.NewSearchService(subRepo)
	dashSvc := service.NewDashboardService(formSvc, subSvc, docSvc, userSvc, apprSvc)

	// Handlers
	h := &router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Users:      handler.NewUserHandler(userSvc),
		Forms:      handler.NewFormHandler(formSvc),
		Submission: handler.NewSubmissionHandler(subSvc, docSvc),
		Approval:   handler.NewApprovalHandler(apprSvc),
		Documents:  handler.NewDocumentHandler(docSvc),
		Search:     handler.NewSearchHandler(searchSvc),
		Dashboard:  handler.NewDashboardHandler(dashSvc),
		Admin:      handler.NewAdminHandler(store, backend),
	}

	return &Server{
		Handler: router.New(jwtSecret, h),
		Auth:    authSvc,
		ensure: []func(context.Context) error{
			userRepo.EnsureIndexes,
			formRepo.EnsureIndexes,
			docRepo.EnsureIndexes,
			apprRepo.EnsureIndexes,
			subRepo.EnsureIndexes,
		},
	}
}

// Init creates indexes and seeds the admin account. Submission indexes come
// last because they are the slow ones on large collections.
func (s *Server) Init(ctx context.Context, adminEmail, adminPass string) error {
	start := time.Now()
	for _, ensure := range s.ensure {
		if err := ensure(ctx); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
	}
	log.WithField("took", time.Since(start).Round(time.Millisecond).String()).Info("indexes ready")
	if adminEmail == "" {
		return nil
	}
	if err := s.Auth.SeedAdmin(ctx, adminEmail, adminPass); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}
