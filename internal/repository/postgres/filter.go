package postgres

import (
	"fmt"
	"strings"

	"github.com/frontandrew/attestation/internal/domain"
)

// whereBuilder собирает WHERE из предикатов фильтра с позиционными параметрами
type whereBuilder struct {
	clauses []string
	args    []any
}

func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) add(clause string) {
	b.clauses = append(b.clauses, clause)
}

func (b *whereBuilder) sql() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func dateColumn(field domain.DateField) (string, error) {
	switch field {
	case domain.DateEffective:
		return "c.effective_date", nil
	case domain.DateExpiry:
		return "c.expiry_date", nil
	case domain.DateCreated:
		return "c.created_at", nil
	}
	return "", domain.InvalidArgument("unknown date field %q", field)
}

// buildCertificateWhere переводит предикаты в SQL; неизвестный предикат - ошибка
func buildCertificateWhere(filter domain.CertificateFilter) (string, []any, error) {
	b := &whereBuilder{}

	for _, p := range filter.Predicates {
		switch p := p.(type) {
		case domain.AgencyIs:
			b.add("c.agency_id = " + b.arg(p.AgencyID))

		case domain.IDIn:
			ids := make([]string, len(p.IDs))
			for i, id := range p.IDs {
				ids[i] = id.String()
			}
			b.add("c.id = ANY(" + b.arg(ids) + "::uuid[])")

		case domain.TextSearch:
			term := strings.TrimSpace(p.Term)
			if term == "" {
				continue
			}
			like := b.arg("%" + term + "%")
			parts := []string{
				"c.policy_number ILIKE " + like,
				"c.holder ILIKE " + like,
				"c.vehicle_id ILIKE " + like,
				"c.brand ILIKE " + like,
				"c.usage ILIKE " + like,
			}
			if n, ok := p.SheetNumber(); ok {
				parts = append(parts, "c.sheet_number = "+b.arg(n))
			}
			b.add("(" + strings.Join(parts, " OR ") + ")")

		case domain.StatusIs:
			today := domain.DateOnly(p.Today)
			switch p.Status {
			case domain.StatusExpired:
				b.add("c.expiry_date < " + b.arg(today))
			case domain.StatusActive:
				b.add("c.expiry_date >= " + b.arg(today))
			case domain.StatusExpiringSoon:
				b.add("c.expiry_date BETWEEN " + b.arg(today) + " AND " + b.arg(today.Add(domain.ExpiringSoonWindow)))
			}

		case domain.DateBetween:
			column, err := dateColumn(p.Field)
			if err != nil {
				return "", nil, err
			}
			b.add(column + " BETWEEN " + b.arg(p.From) + " AND " + b.arg(p.To))

		default:
			return "", nil, fmt.Errorf("unsupported certificate predicate %T", p)
		}
	}

	return b.sql(), b.args, nil
}

func sortColumn(field domain.SortField) string {
	switch field {
	case domain.SortEffectiveDate:
		return "c.effective_date"
	case domain.SortExpiryDate:
		return "c.expiry_date"
	case domain.SortCreatedAt:
		return "c.created_at"
	case domain.SortHolder:
		return "c.holder"
	}
	return "c.sheet_number"
}

func buildOrderBy(filter domain.CertificateFilter) string {
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}
	order := " ORDER BY " + sortColumn(filter.SortBy) + " " + direction
	if filter.SortBy != domain.SortSheetNumber && filter.SortBy != "" {
		order += ", c.sheet_number ASC"
	}
	return order
}
