package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
)

const minPasswordLength = 8

// CreateUserInput is a reviewer's request to add an account.
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Role     domain.Role // Defaults to user
}

// UserService administers accounts. Every operation except SeedAdmin
// requires the reviewer role.
type UserService struct {
	log        *zap.Logger
	users      repository.UserRepository
	requests   *RequestService
	auth       AuthService
	bcryptCost int
}

func NewUserService(log *zap.Logger, users repository.UserRepository, requests *RequestService, auth AuthService) *UserService {
	return &UserService{
		log:        log,
		users:      users,
		requests:   requests,
		auth:       auth,
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *UserService) List(ctx context.Context, caller domain.Caller) ([]domain.User, error) {
	if err := requireReviewer(caller); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, upstream(s.log, "list users", err)
	}
	return users, nil
}

func (s *UserService) Create(ctx context.Context, caller domain.Caller, in CreateUserInput) (*domain.User, error) {
	if err := requireReviewer(caller); err != nil {
		return nil, err
	}
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	in.Email = strings.TrimSpace(in.Email)

	var v ValidationError
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		v.add("email", "must be a valid email address")
	}
	if len(in.Password) < minPasswordLength {
		v.add("password", "must be at least 8 characters")
	}
	if strings.TrimSpace(in.Name) == "" {
		v.add("name", "is required")
	}
	if !in.Role.Valid() {
		v.add("role", "must be user or admin")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &domain.User{
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         in.Role,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrConflict.New("user with this email already exists")
		}
		return nil, upstream(s.log, "create user", err)
	}
	s.log.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// UpdateRole changes another user's role. Existing tokens of that user stop
// working so the old role cannot be used.
func (s *UserService) UpdateRole(ctx context.Context, caller domain.Caller, id string, role domain.Role) (*domain.User, error) {
	if err := requireReviewer(caller); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, invalidField("role", "must be user or admin")
	}
	if id == caller.UserID && role != caller.Role {
		return nil, invalidField("role", "cannot change your own role")
	}

	cur, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(s.log, "load user", "user", err)
	}
	if cur.Role == role {
		return cur, nil
	}

	user, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, repoErr(s.log, "update role", "user", err)
	}
	if err := s.auth.RevokeUser(ctx, id); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user after deleting each of their requests, objects included.
func (s *UserService) Delete(ctx context.Context, caller domain.Caller, id string) ([]*DeletionReport, error) {
	if err := requireReviewer(caller); err != nil {
		return nil, err
	}
	if id == caller.UserID {
		return nil, invalidField("id", "cannot delete your own account")
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, repoErr(s.log, "load user", "user", err)
	}

	reports, err := s.requests.deleteAllForUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return nil, repoErr(s.log, "delete user", "user", err)
	}
	if err := s.auth.RevokeUser(ctx, id); err != nil {
		return nil, err
	}
	s.log.Info("user deleted", zap.String("user_id", id), zap.Int("requests", len(reports)))
	return reports, nil
}

// SeedAdmin creates the first reviewer account. It does nothing when the
// email is already registered.
func (s *UserService) SeedAdmin(ctx context.Context, email, password, name string) (*domain.User, bool, error) {
	existing, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, upstream(s.log, "load user", err)
	}
	user, err := s.create(ctx, CreateUserInput{Email: email, Password: password, Name: name, Role: domain.RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
