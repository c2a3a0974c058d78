package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout - формат дат аттестата в API
const DateLayout = "2006-01-02"

// ExpiringSoonWindow - горизонт, в пределах которого аттестат считается истекающим
const ExpiringSoonWindow = 30 * 24 * time.Hour

// CertificateStatus - производный статус, в БД не хранится
type CertificateStatus string

const (
	StatusActive       CertificateStatus = "ACTIVE"
	StatusExpiringSoon CertificateStatus = "EXPIRING_SOON"
	StatusExpired      CertificateStatus = "EXPIRED"
)

// ParseStatus разбирает статус фильтра; пустая строка и ALL означают "без фильтра"
func ParseStatus(raw string) (CertificateStatus, bool, error) {
	switch s := CertificateStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case "", "ALL":
		return "", false, nil
	case StatusActive, StatusExpiringSoon, StatusExpired:
		return s, true, nil
	}
	return "", false, InvalidArgument("unknown status %q", raw)
}

// Certificate - аттестат страхования автомобиля ("attestation")
// Номер бланка (SheetNumber) уникален в системе и после создания не меняется
type Certificate struct {
	ID            uuid.UUID `json:"id"`
	AgencyID      uuid.UUID `json:"agency_id"`
	CreatorID     uuid.UUID `json:"creator_id"`
	SheetNumber   int64     `json:"sheet_number"`
	SheetType     SheetType `json:"sheet_type"`
	PolicyNumber  string    `json:"policy_number"`
	Holder        string    `json:"holder"`
	Address       string    `json:"address,omitempty"`
	VehicleID     string    `json:"vehicle_id"`
	Brand         string    `json:"brand,omitempty"`
	Usage         string    `json:"usage,omitempty"`
	Seats         int       `json:"seats"`
	EffectiveDate time.Time `json:"effective_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
	CreatedAt     time.Time `json:"created_at"`
	EditedAt      time.Time `json:"edited_at"`

	// Связанные данные (не хранятся в таблице, заполняются при чтении)
	AgencyName  string `json:"agency_name,omitempty"`
	AgencyPhone string `json:"agency_phone,omitempty"`
	CreatorName string `json:"creator_name,omitempty"`
}

// Status вычисляет статус аттестата на дату today
func (c *Certificate) Status(today time.Time) CertificateStatus {
	return ClassifyStatus(c.ExpiryDate, today)
}

// ClassifyStatus - чистая функция классификации по дате окончания:
// expired - окончание строго раньше today;
// expiring soon - окончание в пределах 30 дней от today включительно;
// active - все остальное.
func ClassifyStatus(expiry, today time.Time) CertificateStatus {
	expiry = DateOnly(expiry)
	today = DateOnly(today)
	if expiry.Before(today) {
		return StatusExpired
	}
	if !expiry.After(today.Add(ExpiringSoonWindow)) {
		return StatusExpiringSoon
	}
	return StatusActive
}

// NormalizeVehicleID нормализует номер автомобиля (убирает пробелы, приводит к верхнему регистру)
func NormalizeVehicleID(vehicleID string) string {
	return strings.ToUpper(strings.Join(strings.Fields(vehicleID), ""))
}

// DateOnly отбрасывает время суток, оставляя календарную дату в UTC
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize приводит поля к каноническому виду перед проверкой и сохранением
func (c *Certificate) Normalize() {
	c.PolicyNumber = strings.TrimSpace(c.PolicyNumber)
	c.Holder = strings.TrimSpace(c.Holder)
	c.Address = strings.TrimSpace(c.Address)
	c.Brand = strings.TrimSpace(c.Brand)
	c.Usage = strings.TrimSpace(c.Usage)
	c.VehicleID = NormalizeVehicleID(c.VehicleID)
	c.EffectiveDate = DateOnly(c.EffectiveDate)
	c.ExpiryDate = DateOnly(c.ExpiryDate)
}

// Validate проверяет обязательные поля аттестата.
// Порядок дат (effective < expiry) намеренно не проверяется.
func (c *Certificate) Validate() error {
	c.Normalize()
	switch {
	case c.AgencyID == uuid.Nil:
		return InvalidArgument("agency is required")
	case !c.SheetType.Valid():
		return InvalidArgument("sheet type is required")
	case c.SheetNumber <= 0:
		return InvalidArgument("sheet number is required")
	case c.PolicyNumber == "":
		return InvalidArgument("policy number is required")
	case c.Holder == "":
		return InvalidArgument("policyholder name is required")
	case c.VehicleID == "":
		return InvalidArgument("vehicle id is required")
	case c.EffectiveDate.IsZero() || c.ExpiryDate.IsZero():
		return InvalidArgument("effective and expiry dates are required")
	case c.Seats < 0:
		return InvalidArgument("seat count cannot be negative")
	}
	return nil
}

// dateLayouts - принимаемые форматы дат: ISO и день/месяц/год
var dateLayouts = []string{DateLayout, "02/01/2006", "2/1/2006", time.RFC3339}

// ParseDate разбирает дату в одном из допустимых форматов и отбрасывает время
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, InvalidArgument("date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return DateOnly(t), nil
		}
	}
	return time.Time{}, InvalidArgument("invalid date %q, expected YYYY-MM-DD or DD/MM/YYYY", raw)
}
