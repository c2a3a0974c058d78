package http

import (
	"context"
	"net/http"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/usecase/user"
	"github.com/google/uuid"
)

// UserService - администрирование пользователей
type UserService interface {
	List(ctx context.Context, p domain.Principal, q user.ListQuery) (*user.Page, error)
	Create(ctx context.Context, p domain.Principal, req user.CreateRequest) (*domain.User, error)
	Update(ctx context.Context, p domain.Principal, id uuid.UUID, req user.UpdateRequest) (*domain.User, error)
	Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error
}

// UserHandler обрабатывает запросы администрирования пользователей
type UserHandler struct {
	userService UserService
	logger      logger.Logger
}

// NewUserHandler создает новый handler
func NewUserHandler(userService UserService, logger logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// ListUsers возвращает страницу пользователей
// GET /api/v1/users?search=&role=&page=&limit=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		respondServiceError(w, h.logger, err, "list users")
		return
	}
	limit, err := queryInt(r, "limit", user.DefaultPageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "list users")
		return
	}

	result, err := h.userService.List(r.Context(), p, user.ListQuery{
		Search: r.URL.Query().Get("search"),
		Role:   r.URL.Query().Get("role"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "list users")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"data":        result.Items,
		"total":       result.Total,
		"page":        result.Page,
		"limit":       result.Limit,
		"total_pages": result.TotalPages,
	})
}

// CreateUser создает пользователя
// POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req user.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.userService.Create(r.Context(), p, req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create user")
		return
	}

	respondData(w, http.StatusCreated, created)
}

// UpdateUser обновляет пользователя
// PUT /api/v1/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req user.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.userService.Update(r.Context(), p, id, req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update user")
		return
	}

	respondData(w, http.StatusOK, updated)
}

// DeleteUser удаляет пользователя
// DELETE /api/v1/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), p, id); err != nil {
		respondServiceError(w, h.logger, err, "delete user")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User deleted",
	})
}
