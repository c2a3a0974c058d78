package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCertificateFilter_Matches(t *testing.T) {
	agencyID := uuid.New()
	today := day(2025, 1, 1)

	cert := &Certificate{
		ID:            uuid.New(),
		AgencyID:      agencyID,
		SheetNumber:   4521,
		PolicyNumber:  "POL-778",
		Holder:        "Rakotomalala Jean",
		VehicleID:     "1234TBA",
		Brand:         "Toyota",
		Usage:         "Taxi",
		EffectiveDate: day(2024, 7, 1),
		ExpiryDate:    day(2025, 1, 20),
		CreatedAt:     day(2024, 6, 30).Add(15 * 3600 * 1e9),
	}

	tests := []struct {
		name      string
		predicate Predicate
		want      bool
	}{
		{"своё агентство", AgencyIs{AgencyID: agencyID}, true},
		{"чужое агентство", AgencyIs{AgencyID: uuid.New()}, false},
		{"по списку ID", IDIn{IDs: []uuid.UUID{uuid.New(), cert.ID}}, true},
		{"поиск по страхователю без регистра", TextSearch{Term: "RAKOTO"}, true},
		{"поиск по марке", TextSearch{Term: "toy"}, true},
		{"поиск по номеру бланка", TextSearch{Term: "4521"}, true},
		{"другой номер бланка", TextSearch{Term: "4522"}, false},
		{"пустой поиск", TextSearch{Term: "  "}, true},
		{"истекает скоро", StatusIs{Status: StatusExpiringSoon, Today: today}, true},
		{"действующий включает истекающие", StatusIs{Status: StatusActive, Today: today}, true},
		{"не истек", StatusIs{Status: StatusExpired, Today: today}, false},
		{"истек через месяц", StatusIs{Status: StatusExpired, Today: day(2025, 2, 1)}, true},
		{"окончание в диапазоне", DateBetween{Field: DateExpiry, From: day(2025, 1, 20), To: day(2025, 1, 20)}, true},
		{"начало вне диапазона", DateBetween{Field: DateEffective, From: day(2024, 8, 1), To: day(2024, 12, 31)}, false},
		{"дата создания до конца дня", DateBetween{Field: DateCreated, From: day(2024, 6, 30), To: day(2024, 7, 1).Add(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.predicate.Matches(cert))
		})
	}

	t.Run("предикаты объединяются по AND", func(t *testing.T) {
		var f CertificateFilter
		f.And(AgencyIs{AgencyID: agencyID})
		f.And(TextSearch{Term: "taxi"})
		assert.True(t, f.Matches(cert))

		f.And(StatusIs{Status: StatusExpired, Today: today})
		assert.False(t, f.Matches(cert))
	})
}

func TestParseStatus(t *testing.T) {
	status, ok, err := ParseStatus("expiring_soon")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StatusExpiringSoon, status)

	_, ok, err = ParseStatus("all")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseStatus("LOST")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseSortField(t *testing.T) {
	field, err := ParseSortField("")
	assert.NoError(t, err)
	assert.Equal(t, SortSheetNumber, field)

	field, err = ParseSortField("expiry_date")
	assert.NoError(t, err)
	assert.Equal(t, SortExpiryDate, field)

	_, err = ParseSortField("password_hash")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUserFilter_Matches(t *testing.T) {
	u := &User{Name: "Rabe Hery", Email: "hery@example.com", Role: RoleUser}

	assert.True(t, UserFilter{Search: "HERY"}.Matches(u))
	assert.True(t, UserFilter{Role: RoleUser}.Matches(u))
	assert.False(t, UserFilter{Role: RoleAdmin}.Matches(u))
	assert.False(t, UserFilter{Search: "nobody"}.Matches(u))
}
