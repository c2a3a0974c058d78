package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/frontandrew/attestation/internal/delivery/http/middleware"
	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateTestUser создает тестового пользователя
func CreateTestUser(id uuid.UUID, email string, role domain.UserRole, agencyID *uuid.UUID) *domain.User {
	return &domain.User{
		ID:       id,
		Email:    email,
		Name:     "Test User",
		Role:     role,
		AgencyID: agencyID,
		IsActive: true,
	}
}

// CreateAuthContext создает контекст с claims для тестирования
func CreateAuthContext(t *testing.T, userID uuid.UUID, role domain.UserRole, agencyID *uuid.UUID) context.Context {
	t.Helper()
	return middleware.WithClaims(context.Background(), &jwt.Claims{
		UserID:   userID,
		Email:    "test@example.com",
		Role:     role,
		AgencyID: agencyID,
	})
}

// WithURLParams добавляет параметры chi в запрос
func WithURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertSuccess проверяет успешный ответ API
func AssertSuccess(t *testing.T, response map[string]interface{}) {
	t.Helper()
	success, ok := response["success"].(bool)
	if !ok || !success {
		t.Errorf("Expected success=true, got %v", response)
	}
}

// AssertError проверяет ошибочный ответ API
func AssertError(t *testing.T, response map[string]interface{}) {
	t.Helper()
	success, ok := response["success"].(bool)
	if !ok || success {
		t.Errorf("Expected success=false, got %v", response)
	}
}
