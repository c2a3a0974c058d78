package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/jwt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	tokens := jwt.NewTokenService("test-secret", time.Hour)
	agencyID := uuid.New()
	user := &domain.User{ID: uuid.New(), Email: "agent@example.com", Role: domain.RoleUser, AgencyID: &agencyID}

	token, err := tokens.Generate(user)
	require.NoError(t, err)

	expired, err := jwt.NewTokenService("test-secret", -time.Minute).Generate(user)
	require.NoError(t, err)

	var seen *jwt.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(tokens)(next)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedBody   string
	}{
		{"валидный токен", "Bearer " + token.AccessToken, http.StatusOK, ""},
		{"схема в нижнем регистре", "bearer " + token.AccessToken, http.StatusOK, ""},
		{"нет заголовка", "", http.StatusUnauthorized, "Authorization header required"},
		{"неверный формат", "Token " + token.AccessToken, http.StatusUnauthorized, "Invalid authorization header format"},
		{"мусор вместо токена", "Bearer abc.def.ghi", http.StatusUnauthorized, "Invalid token"},
		{"истекший токен", "Bearer " + expired.AccessToken, http.StatusUnauthorized, "Token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, user.ID, seen.UserID)
				assert.Equal(t, &agencyID, seen.Principal().AgencyID)
				return
			}
			assert.Nil(t, seen)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireRole(domain.RoleAdmin)(next)

	tests := []struct {
		name           string
		claims         *jwt.Claims
		expectedStatus int
	}{
		{"администратор", &jwt.Claims{UserID: uuid.New(), Role: domain.RoleAdmin}, http.StatusNoContent},
		{"сотрудник", &jwt.Claims{UserID: uuid.New(), Role: domain.RoleUser}, http.StatusForbidden},
		{"без claims", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
