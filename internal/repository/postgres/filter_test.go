package postgres

import (
	"testing"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unknownPredicate не поддерживается SQL-сборщиком
type unknownPredicate struct{}

func (unknownPredicate) Matches(*domain.Certificate) bool { return true }

func TestBuildCertificateWhere(t *testing.T) {
	agencyID := uuid.New()
	today := time.Date(2025, 1, 1, 15, 30, 0, 0, time.UTC)
	midnight := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		predicates []domain.Predicate
		wantSQL    string
		wantArgs   []any
	}{
		{
			name:     "без предикатов",
			wantSQL:  "",
			wantArgs: nil,
		},
		{
			name:       "агентство",
			predicates: []domain.Predicate{domain.AgencyIs{AgencyID: agencyID}},
			wantSQL:    " WHERE c.agency_id = $1",
			wantArgs:   []any{agencyID},
		},
		{
			name:       "текстовый поиск",
			predicates: []domain.Predicate{domain.TextSearch{Term: " toyota "}},
			wantSQL: " WHERE (c.policy_number ILIKE $1 OR c.holder ILIKE $1 OR c.vehicle_id ILIKE $1" +
				" OR c.brand ILIKE $1 OR c.usage ILIKE $1)",
			wantArgs: []any{"%toyota%"},
		},
		{
			name:       "числовой поиск добавляет номер бланка",
			predicates: []domain.Predicate{domain.TextSearch{Term: "42"}},
			wantSQL: " WHERE (c.policy_number ILIKE $1 OR c.holder ILIKE $1 OR c.vehicle_id ILIKE $1" +
				" OR c.brand ILIKE $1 OR c.usage ILIKE $1 OR c.sheet_number = $2)",
			wantArgs: []any{"%42%", int64(42)},
		},
		{
			name:       "пустой поиск пропускается",
			predicates: []domain.Predicate{domain.TextSearch{Term: "   "}},
			wantSQL:    "",
			wantArgs:   nil,
		},
		{
			name:       "истекшие",
			predicates: []domain.Predicate{domain.StatusIs{Status: domain.StatusExpired, Today: today}},
			wantSQL:    " WHERE c.expiry_date < $1",
			wantArgs:   []any{midnight},
		},
		{
			name:       "скоро истекают",
			predicates: []domain.Predicate{domain.StatusIs{Status: domain.StatusExpiringSoon, Today: today}},
			wantSQL:    " WHERE c.expiry_date BETWEEN $1 AND $2",
			wantArgs:   []any{midnight, midnight.Add(domain.ExpiringSoonWindow)},
		},
		{
			name: "комбинация через AND",
			predicates: []domain.Predicate{
				domain.AgencyIs{AgencyID: agencyID},
				domain.StatusIs{Status: domain.StatusActive, Today: today},
				domain.DateBetween{Field: domain.DateEffective, From: midnight, To: midnight.AddDate(0, 1, 0)},
			},
			wantSQL:  " WHERE c.agency_id = $1 AND c.expiry_date >= $2 AND c.effective_date BETWEEN $3 AND $4",
			wantArgs: []any{agencyID, midnight, midnight, midnight.AddDate(0, 1, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildCertificateWhere(domain.CertificateFilter{Predicates: tt.predicates})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildCertificateWhere_IDIn(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	sql, args, err := buildCertificateWhere(domain.CertificateFilter{
		Predicates: []domain.Predicate{domain.IDIn{IDs: ids}},
	})
	require.NoError(t, err)
	assert.Equal(t, " WHERE c.id = ANY($1::uuid[])", sql)
	assert.Equal(t, []any{[]string{ids[0].String(), ids[1].String()}}, args)
}

func TestBuildCertificateWhere_Errors(t *testing.T) {
	_, _, err := buildCertificateWhere(domain.CertificateFilter{
		Predicates: []domain.Predicate{unknownPredicate{}},
	})
	assert.Error(t, err)

	_, _, err = buildCertificateWhere(domain.CertificateFilter{
		Predicates: []domain.Predicate{domain.DateBetween{Field: "printed_at"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestBuildOrderBy(t *testing.T) {
	tests := []struct {
		name   string
		filter domain.CertificateFilter
		want   string
	}{
		{"по умолчанию", domain.CertificateFilter{}, " ORDER BY c.sheet_number ASC"},
		{"номер по убыванию", domain.CertificateFilter{SortBy: domain.SortSheetNumber, Desc: true}, " ORDER BY c.sheet_number DESC"},
		{"по окончанию", domain.CertificateFilter{SortBy: domain.SortExpiryDate}, " ORDER BY c.expiry_date ASC, c.sheet_number ASC"},
		{"по страхователю", domain.CertificateFilter{SortBy: domain.SortHolder, Desc: true}, " ORDER BY c.holder DESC, c.sheet_number ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildOrderBy(tt.filter))
		})
	}
}
