package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	agencyID := uuid.New()
	otherID := uuid.New()

	admin := Principal{UserID: uuid.New(), Role: RoleAdmin}
	agent := Principal{UserID: uuid.New(), Role: RoleUser, AgencyID: &agencyID}
	orphan := Principal{UserID: uuid.New(), Role: RoleUser}

	t.Run("администратор без ограничений", func(t *testing.T) {
		for _, action := range []Action{ActionCertificateIssue, ActionStockWrite, ActionUserManage} {
			d := Authorize(admin, action)
			assert.True(t, d.Allowed)
			assert.Nil(t, d.Scope)
			assert.True(t, d.Permits(otherID))
		}
	})

	t.Run("сотрудник ограничен своим агентством", func(t *testing.T) {
		d := Authorize(agent, ActionCertificateRead)
		require.True(t, d.Allowed)
		require.NotNil(t, d.Scope)
		assert.Equal(t, agencyID, *d.Scope)
		assert.True(t, d.Permits(agencyID))
		assert.False(t, d.Permits(otherID))
	})

	t.Run("сотрудник не управляет остатками и пользователями", func(t *testing.T) {
		for _, action := range []Action{ActionStockWrite, ActionAgencyManage, ActionUserManage} {
			d := Authorize(agent, action)
			assert.False(t, d.Allowed, action)
			assert.NotEmpty(t, d.Reason)
		}
	})

	t.Run("сотрудник без агентства", func(t *testing.T) {
		d := Authorize(orphan, ActionCertificateRead)
		assert.False(t, d.Allowed)
		assert.False(t, d.Permits(agencyID))
	})

	t.Run("неизвестная роль", func(t *testing.T) {
		assert.False(t, Authorize(Principal{Role: "GUEST"}, ActionCertificateRead).Allowed)
	})
}
