package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/school-support/internal/auth"
	"github.com/spec-kit/school-support/internal/config"
	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/lock"
	"github.com/spec-kit/school-support/internal/repository"
	apperrors "github.com/spec-kit/school-support/pkg/util"
)

// UserService manages accounts on behalf of administrators.
type UserService struct {
	users      repository.UserRepository
	tickets    repository.TicketRepository
	locker     lock.Locker
	logger     *zap.Logger
	bcryptCost int
	defaultPwd string
	adminName  string
}

// UserDependencies encapsulates repositories required for account management.
// Locker must be the one shared with AssignmentService and TicketService.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	TicketRepo repository.TicketRepository
	Locker     lock.Locker
	Logger     *zap.Logger
}

// CreateUserInput describes a new account. Accounts start on the default
// password and must change it at first login.
type CreateUserInput struct {
	Username    string
	DisplayName string
	Role        domain.Role
}

// ImportResult reports a bulk import.
type ImportResult struct {
	Created []domain.User
	Skipped map[string]string
}

// UserListFilters define listing parameters.
type UserListFilters struct {
	Search     string
	Role       *domain.Role
	ActiveOnly bool
	Limit      int
	Offset     int
}

// NewUserService constructs the service.
func NewUserService(cfg config.AuthConfig, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &UserService{
		users:      deps.UserRepo,
		tickets:    deps.TicketRepo,
		locker:     locker,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
		defaultPwd: cfg.DefaultPassword,
		adminName:  domain.NormalizeUsername(cfg.AdminUsername),
	}
}

func requireAdmin(actor domain.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateUser adds an account with the default password.
func (s *UserService) CreateUser(ctx context.Context, actor domain.Actor, input CreateUserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.create(ctx, input)
}

// ImportUsers creates accounts in bulk. Rows that fail validation or collide
// with an existing username are skipped and reported, not fatal.
func (s *UserService) ImportUsers(ctx context.Context, actor domain.Actor, inputs []CreateUserInput) (*ImportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	result := &ImportResult{Created: []domain.User{}, Skipped: map[string]string{}}
	for _, input := range inputs {
		user, err := s.create(ctx, input)
		if err == nil {
			result.Created = append(result.Created, *user)
			continue
		}
		if apperrors.HasCode(err, apperrors.CodePersistenceFailure) || apperrors.HasCode(err, apperrors.CodeInternal) {
			return result, err
		}
		result.Skipped[input.Username] = apperrors.ToDomainError(err).Message
	}
	s.logger.Info("users imported",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (s *UserService) create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	username := domain.NormalizeUsername(input.Username)
	if username == "" {
		return nil, apperrors.NewValidationError("username is required", nil)
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": int(input.Role)})
	}

	hash, err := auth.HashPassword(s.defaultPwd, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}
	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         input.Role,
		FirstLogin:   true,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("username already exists", map[string]any{"username": username})
		}
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("create user: %w", err))
	}
	return user, nil
}

// ListUsers lists accounts with filters.
func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor, filters UserListFilters) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.UserFilter{
		Search:     filters.Search,
		ActiveOnly: filters.ActiveOnly,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}
	if filters.Role != nil {
		repoFilter.Roles = []domain.Role{*filters.Role}
	}
	users, err := s.users.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("list users: %w", err))
	}
	return users, nil
}

// DeactivateUser soft-deletes an account that holds no open tickets.
func (s *UserService) DeactivateUser(ctx context.Context, actor domain.Actor, userID string) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if actor.UserID == userID {
		return nil, apperrors.NewConflict("cannot deactivate own account", nil)
	}

	unlock, err := s.locker.Lock(ctx, userLockKey(userID))
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("lock user %s: %w", userID, err))
	}
	defer unlock()

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	open, err := s.tickets.CountOpenByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("count open tickets: %w", err))
	}
	if open > 0 {
		return nil, apperrors.NewConflict("user still linked to open tickets", map[string]any{"open_tickets": open})
	}

	user.Active = false
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("deactivate user: %w", err))
	}
	s.logger.Info("user deactivated", zap.String("user_id", userID))
	return user, nil
}

// ResetPassword puts an account back on the default password.
func (s *UserService) ResetPassword(ctx context.Context, actor domain.Actor, userID string) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(s.defaultPwd, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	user.FirstLogin = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("reset password: %w", err))
	}
	return user, nil
}

// EnsureDefaultAdmin seeds the administrator account when it is missing.
// It reports whether an account was created.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context) (bool, error) {
	_, err := s.users.GetByUsername(ctx, s.adminName)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, apperrors.NewPersistenceFailure(fmt.Errorf("look up admin: %w", err))
	}
	if _, err := s.create(ctx, CreateUserInput{Username: s.adminName, DisplayName: "Administrator", Role: domain.RoleAdmin}); err != nil {
		return false, err
	}
	s.logger.Info("default admin created", zap.String("username", s.adminName))
	return true, nil
}

func (s *UserService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return user, nil
}
