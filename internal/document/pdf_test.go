package document

import (
	"bytes"
	"testing"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCertificate(number int64) *domain.Certificate {
	return &domain.Certificate{
		ID:            uuid.New(),
		SheetNumber:   number,
		SheetType:     domain.SheetYellow,
		PolicyNumber:  "POL-001",
		Holder:        "Rakoto Jean-Élie",
		Address:       "Lot II A 12, Antananarivo",
		VehicleID:     "1234TBA",
		Brand:         "Peugeot",
		Usage:         "Tourisme",
		Seats:         5,
		EffectiveDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate:    time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		CreatedAt:     time.Date(2024, 12, 20, 9, 30, 0, 0, time.UTC),
	}
}

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer("Assurance Test", "https://attest.example.com/")

	t.Run("одна страница", func(t *testing.T) {
		out, err := r.Render([]*domain.Certificate{testCertificate(1001)})
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	})

	t.Run("несколько аттестатов", func(t *testing.T) {
		single, err := r.Render([]*domain.Certificate{testCertificate(1001)})
		require.NoError(t, err)
		multi, err := r.Render([]*domain.Certificate{testCertificate(1001), testCertificate(1002), testCertificate(1003)})
		require.NoError(t, err)
		assert.Greater(t, len(multi), len(single))
	})

	t.Run("пустой список", func(t *testing.T) {
		_, err := r.Render(nil)
		assert.Error(t, err)
	})
}

func TestRenderer_VerificationURL(t *testing.T) {
	id := uuid.MustParse("6f1c2d9e-8a4b-4c1d-9e2f-0a1b2c3d4e5f")
	r := NewRenderer("Assurance Test", "https://attest.example.com/")

	assert.Equal(t, "https://attest.example.com/verify/6f1c2d9e-8a4b-4c1d-9e2f-0a1b2c3d4e5f", r.VerificationURL(id))
}
