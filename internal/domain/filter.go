package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Predicate - одно условие отбора аттестатов.
// Все предикаты фильтра объединяются по AND.
type Predicate interface {
	Matches(c *Certificate) bool
}

// AgencyIs - аттестаты одного агентства
type AgencyIs struct {
	AgencyID uuid.UUID
}

func (p AgencyIs) Matches(c *Certificate) bool {
	return c.AgencyID == p.AgencyID
}

// IDIn - выборка по списку идентификаторов
type IDIn struct {
	IDs []uuid.UUID
}

func (p IDIn) Matches(c *Certificate) bool {
	for _, id := range p.IDs {
		if id == c.ID {
			return true
		}
	}
	return false
}

// TextSearch - поиск подстроки без учета регистра по номеру полиса, страхователю,
// номеру авто, марке и назначению; числовой запрос также совпадает с номером бланка
type TextSearch struct {
	Term string
}

func (p TextSearch) Matches(c *Certificate) bool {
	term := strings.ToLower(strings.TrimSpace(p.Term))
	if term == "" {
		return true
	}
	for _, field := range []string{c.PolicyNumber, c.Holder, c.VehicleID, c.Brand, c.Usage} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	if n, ok := p.SheetNumber(); ok {
		return c.SheetNumber == n
	}
	return false
}

// SheetNumber возвращает числовое значение запроса, если оно есть
func (p TextSearch) SheetNumber() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(p.Term), 10, 64)
	return n, err == nil
}

// StatusIs - производный статус на дату Today
type StatusIs struct {
	Status CertificateStatus
	Today  time.Time
}

func (p StatusIs) Matches(c *Certificate) bool {
	today := DateOnly(p.Today)
	expiry := DateOnly(c.ExpiryDate)
	switch p.Status {
	case StatusExpired:
		return expiry.Before(today)
	case StatusActive:
		return !expiry.Before(today)
	case StatusExpiringSoon:
		return !expiry.Before(today) && !expiry.After(today.Add(ExpiringSoonWindow))
	}
	return true
}

// DateField - поле даты для диапазонного фильтра
type DateField string

const (
	DateEffective DateField = "effective_date"
	DateExpiry    DateField = "expiry_date"
	DateCreated   DateField = "created_at"
)

// DateBetween - дата поля в диапазоне [From, To] включительно
type DateBetween struct {
	Field DateField
	From  time.Time
	To    time.Time
}

func (p DateBetween) Matches(c *Certificate) bool {
	var v time.Time
	switch p.Field {
	case DateEffective:
		v = c.EffectiveDate
	case DateExpiry:
		v = c.ExpiryDate
	case DateCreated:
		v = c.CreatedAt
	default:
		return true
	}
	return !v.Before(p.From) && !v.After(p.To)
}

// SortField - допустимые поля сортировки
type SortField string

const (
	SortSheetNumber   SortField = "sheet_number"
	SortEffectiveDate SortField = "effective_date"
	SortExpiryDate    SortField = "expiry_date"
	SortCreatedAt     SortField = "created_at"
	SortHolder        SortField = "holder"
)

// ParseSortField проверяет поле сортировки по белому списку
func ParseSortField(raw string) (SortField, error) {
	switch f := SortField(strings.TrimSpace(raw)); f {
	case "":
		return SortSheetNumber, nil
	case SortSheetNumber, SortEffectiveDate, SortExpiryDate, SortCreatedAt, SortHolder:
		return f, nil
	}
	return "", InvalidArgument("cannot sort by %q", raw)
}

// CertificateFilter - набор предикатов плюс сортировка и пагинация
type CertificateFilter struct {
	Predicates []Predicate
	SortBy     SortField
	Desc       bool
	Limit      int // 0 - без ограничения
	Offset     int
}

// And добавляет предикат
func (f *CertificateFilter) And(p Predicate) {
	f.Predicates = append(f.Predicates, p)
}

// Matches проверяет аттестат против всех предикатов
func (f *CertificateFilter) Matches(c *Certificate) bool {
	for _, p := range f.Predicates {
		if !p.Matches(c) {
			return false
		}
	}
	return true
}

// UserFilter - отбор пользователей для администрирования
type UserFilter struct {
	Search string
	Role   UserRole // пусто - все роли
	Limit  int
	Offset int
}

// Matches проверяет пользователя против фильтра
func (f UserFilter) Matches(u *User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.Name), term) || strings.Contains(strings.ToLower(u.Email), term)
}
