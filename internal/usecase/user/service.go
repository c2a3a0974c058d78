package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/hash"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/google/uuid"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// CreateRequest - запрос на создание пользователя
type CreateRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Name     string     `json:"name"`
	Role     string     `json:"role"`
	AgencyID *uuid.UUID `json:"agency_id,omitempty"`
}

// UpdateRequest - частичное обновление; пустой пароль не меняет текущий
type UpdateRequest struct {
	Email    *string    `json:"email,omitempty"`
	Password *string    `json:"password,omitempty"`
	Name     *string    `json:"name,omitempty"`
	Role     *string    `json:"role,omitempty"`
	AgencyID *uuid.UUID `json:"agency_id,omitempty"`
	// ClearAgency отвязывает пользователя от агентства
	ClearAgency bool  `json:"clear_agency,omitempty"`
	IsActive    *bool `json:"is_active,omitempty"`
}

// ListQuery - параметры списка пользователей
type ListQuery struct {
	Search string
	Role   string
	Page   int
	Limit  int
}

// Page - страница пользователей
type Page struct {
	Items      []*domain.User `json:"data"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// Service - администрирование пользователей
type Service struct {
	store  repository.Store
	hasher *hash.Hasher
	logger logger.Logger
}

// NewService создает новый экземпляр user Service
func NewService(store repository.Store, hasher *hash.Hasher, log logger.Logger) *Service {
	return &Service{
		store:  store,
		hasher: hasher,
		logger: log,
	}
}

// List возвращает страницу пользователей
func (s *Service) List(ctx context.Context, p domain.Principal, q ListQuery) (*Page, error) {
	if !domain.Authorize(p, domain.ActionUserManage).Allowed {
		return nil, domain.ErrForbidden
	}

	filter := domain.UserFilter{Search: q.Search}
	if q.Role != "" {
		role, err := domain.ParseRole(q.Role)
		if err != nil {
			return nil, err
		}
		filter.Role = role
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	users, total, err := s.store.Repositories().Users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return &Page{
		Items:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// Create создает пользователя с хешированным паролем
func (s *Service) Create(ctx context.Context, p domain.Principal, req CreateRequest) (*domain.User, error) {
	if !domain.Authorize(p, domain.ActionUserManage).Allowed {
		return nil, domain.ErrForbidden
	}

	role := domain.RoleUser
	if req.Role != "" {
		var err error
		if role, err = domain.ParseRole(req.Role); err != nil {
			return nil, err
		}
	}
	if len(req.Password) < hash.MinPasswordLength {
		return nil, domain.InvalidArgument("password must be at least %d characters", hash.MinPasswordLength)
	}

	user := &domain.User{
		Email:    req.Email,
		Name:     req.Name,
		Role:     role,
		AgencyID: req.AgencyID,
		IsActive: true,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = passwordHash

	if err := s.store.Repositories().Users.Create(ctx, user); err != nil {
		if domain.IsDomain(err) {
			return nil, err
		}
		s.logger.Error("Failed to create user", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"by":      p.UserID,
	})

	user.PasswordHash = ""
	return user, nil
}

// Update меняет данные пользователя
func (s *Service) Update(ctx context.Context, p domain.Principal, id uuid.UUID, req UpdateRequest) (*domain.User, error) {
	if !domain.Authorize(p, domain.ActionUserManage).Allowed {
		return nil, domain.ErrForbidden
	}

	repo := s.store.Repositories().Users
	user, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Role != nil {
		if user.Role, err = domain.ParseRole(*req.Role); err != nil {
			return nil, err
		}
	}
	if req.AgencyID != nil {
		user.AgencyID = req.AgencyID
	}
	if req.ClearAgency {
		user.AgencyID = nil
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if req.Password != nil && *req.Password != "" {
		if len(*req.Password) < hash.MinPasswordLength {
			return nil, domain.InvalidArgument("password must be at least %d characters", hash.MinPasswordLength)
		}
		if user.PasswordHash, err = s.hasher.Hash(*req.Password); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	if err := repo.Update(ctx, user); err != nil {
		if domain.IsDomain(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info("User updated", map[string]interface{}{
		"user_id": user.ID,
		"by":      p.UserID,
	})

	// Название агентства могло измениться вместе с привязкой
	updated, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated.PasswordHash = ""
	return updated, nil
}

// Delete удаляет пользователя; удалить собственную учетную запись нельзя
func (s *Service) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if !domain.Authorize(p, domain.ActionUserManage).Allowed {
		return domain.ErrForbidden
	}
	if id == p.UserID {
		return domain.ErrCannotDeleteSelf
	}

	if err := s.store.Repositories().Users.Delete(ctx, id); err != nil {
		if domain.IsDomain(err) {
			return err
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info("User deleted", map[string]interface{}{
		"user_id": id,
		"by":      p.UserID,
	})

	return nil
}

// EnsureAdmin создает администратора, если пользователя с таким email еще нет.
// Используется командой seed; возвращает true, если пользователь создан.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (bool, error) {
	repo := s.store.Repositories().Users
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("failed to check existing user: %w", err)
	}

	system := domain.Principal{Role: domain.RoleAdmin}
	if _, err := s.Create(ctx, system, CreateRequest{
		Email:    email,
		Password: password,
		Name:     name,
		Role:     string(domain.RoleAdmin),
	}); err != nil {
		return false, err
	}
	return true, nil
}
