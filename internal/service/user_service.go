package service

import (
	"context"

	"github.com/uwamba/edms/internal/auth"
	"github.com/uwamba/edms/internal/models"
	"github.com/uwamba/edms/internal/repository"
)

// UserService manages accounts on behalf of administrators.
type UserService struct {
	users *repository.UserRepo
	auth  *AuthService
}

func NewUserService(users *repository.UserRepo, authSvc *AuthService) *UserService {
	return &UserService{users: users, auth: authSvc}
}

func (s *UserService) List(ctx context.Context) ([]models.UserResponse, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.UserResponse, error) {
	return s.auth.Me(ctx, id)
}

func (s *UserService) Create(ctx context.Context, in *UserInput) (*models.UserResponse, error) {
	user, err := s.auth.create(ctx, in)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// Update changes any attribute of an account, role and job title included.
func (s *UserService) Update(ctx context.Context, id string, in *UserInput) (*models.UserResponse, error) {
	return s.update(ctx, id, in, true)
}

// UpdateProfile is the self-service update. Role and job title decide who may
// approve a step, so they cannot change here.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in *UserInput) (*models.UserResponse, error) {
	return s.update(ctx, id, in, false)
}

func (s *UserService) update(ctx context.Context, id string, in *UserInput, privileged bool) (*models.UserResponse, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user")
	}
	if !privileged {
		if in.Role != "" && in.Role != user.Role {
			return nil, forbidden("role can only be changed by an administrator")
		}
		if in.JobTitleID != "" && in.JobTitleID != user.JobTitleID {
			return nil, forbidden("job title can only be changed by an administrator")
		}
		in.Role, in.JobTitleID = user.Role, user.JobTitleID
	}
	if email := normalizeEmail(in.Email); email != "" && email != user.Email {
		other, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, conflict("email already registered")
		}
		user.Email = email
	}
	if in.Name != "" {
		user.Name = in.Name
	}
	if in.Role != "" {
		user.Role = in.Role
	}
	user.JobTitleID = in.JobTitleID
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.users.Update(ctx, id, user); err != nil {
		return nil, storeError(err, "user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	return storeError(s.users.Delete(ctx, id), "user")
}

func (s *UserService) Count(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}
