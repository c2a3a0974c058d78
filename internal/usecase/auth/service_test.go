package auth

import (
	"context"
	"testing"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/hash"
	"github.com/frontandrew/attestation/internal/pkg/jwt"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T, users ...*domain.User) *Service {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	hasher := hash.New(bcrypt.MinCost)

	for _, u := range users {
		hashed, err := hasher.Hash(u.PasswordHash)
		require.NoError(t, err)
		u.PasswordHash = hashed
		require.NoError(t, store.Repositories().Users.Create(ctx, u))
	}

	return NewService(store.Repositories().Users, hasher, jwt.NewTokenService("auth-test-secret", time.Hour), logger.NewNoop())
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	active := &domain.User{Email: "agent@example.mg", PasswordHash: "secret1", Name: "Rakoto", Role: domain.RoleUser, IsActive: true}
	blocked := &domain.User{Email: "blocked@example.mg", PasswordHash: "secret1", Name: "Rabe", Role: domain.RoleUser}
	svc := newService(t, active, blocked)

	t.Run("успешный вход", func(t *testing.T) {
		resp, err := svc.Login(ctx, &LoginRequest{Email: " Agent@Example.MG ", Password: "secret1"})
		require.NoError(t, err)
		assert.Empty(t, resp.User.PasswordHash)
		assert.NotEmpty(t, resp.AccessToken)
		_, err = time.Parse(time.RFC3339, resp.ExpiresAt)
		assert.NoError(t, err)

		claims, err := svc.ValidateToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, active.ID, claims.UserID)
		assert.Equal(t, domain.RoleUser, claims.Principal().Role)
	})

	tests := []struct {
		name    string
		req     LoginRequest
		wantErr error
	}{
		{"пустые поля", LoginRequest{Email: "", Password: ""}, domain.ErrInvalidArgument},
		{"неизвестный email", LoginRequest{Email: "ghost@example.mg", Password: "secret1"}, domain.ErrInvalidCredentials},
		{"неверный пароль", LoginRequest{Email: "agent@example.mg", Password: "wrong"}, domain.ErrInvalidCredentials},
		{"неактивный пользователь", LoginRequest{Email: "blocked@example.mg", Password: "secret1"}, domain.ErrUserInactive},
		{"неактивный с неверным паролем", LoginRequest{Email: "blocked@example.mg", Password: "wrong"}, domain.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.Login(ctx, &req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_GetUserByID(t *testing.T) {
	user := &domain.User{Email: "agent@example.mg", PasswordHash: "secret1", Name: "Rakoto", Role: domain.RoleUser, IsActive: true}
	svc := newService(t, user)

	got, err := svc.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rakoto", got.Name)
	assert.Empty(t, got.PasswordHash)
}

func TestService_ValidateToken(t *testing.T) {
	svc := newService(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	other := jwt.NewTokenService("another-secret", time.Hour)
	token, err := other.Generate(&domain.User{Email: "a@b.mg", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	expired := jwt.NewTokenService("auth-test-secret", -time.Minute)
	token, err = expired.Generate(&domain.User{Email: "a@b.mg", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}
