package service

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/auth"
	"github.com/uwamba/edms/internal/models"
	"github.com/uwamba/edms/internal/repository"
)

type AuthService struct {
	users     *repository.UserRepo
	jwtSecret string
}

func NewAuthService(users *repository.UserRepo, jwtSecret string) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret}
}

type AuthResult struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	user, err := s.create(ctx, &UserInput{Email: email, Password: password, Name: name, Role: "user"})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(s.jwtSecret, auth.Identity{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		JobTitleID: user.JobTitleID,
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user.ToResponse()}, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

// SeedAdmin creates the bootstrap admin account unless it exists.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	existing, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	_, err = s.create(ctx, &UserInput{Email: email, Password: password, Name: "Admin", Role: auth.RoleAdmin})
	if err == nil {
		log.WithField("email", email).Info("seeded admin user")
	}
	return err
}

// UserInput carries the editable user attributes. An empty Password on
// update keeps the current one.
type UserInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	JobTitleID string `json:"jobTitleId"`
}

func (s *AuthService) create(ctx context.Context, in *UserInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" || in.Name == "" {
		return nil, invalid("email, password, and name are required")
	}
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflict("email already registered")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = "user"
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
		JobTitleID:   in.JobTitleID,
		CreatedAt:    now(),
	}
	id, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, storeError(err, "user")
	}
	user.ID = id
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
