package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifyStatus(t *testing.T) {
	today := day(2025, 1, 1)

	tests := []struct {
		name   string
		expiry time.Time
		want   CertificateStatus
	}{
		{"вчера", day(2024, 12, 31), StatusExpired},
		{"сегодня", today, StatusExpiringSoon},
		{"ровно через 30 дней", day(2025, 1, 31), StatusExpiringSoon},
		{"через 31 день", day(2025, 2, 1), StatusActive},
		{"через год", day(2026, 1, 1), StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.expiry, today))
		})
	}

	t.Run("время суток не влияет", func(t *testing.T) {
		late := time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)
		assert.Equal(t, StatusExpired, ClassifyStatus(day(2024, 12, 31), late))
	})
}

func TestParseSheetType(t *testing.T) {
	tests := []struct {
		input   string
		want    SheetType
		wantErr bool
	}{
		{"JAUNE", SheetYellow, false},
		{" rouge ", SheetRed, false},
		{"Vert", SheetGreen, false},
		{"BLEU", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSheetType(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2025-07-01", day(2025, 7, 1), false},
		{"01/07/2025", day(2025, 7, 1), false},
		{"1/7/2025", day(2025, 7, 1), false},
		{"2025-07-01T15:04:05Z", day(2025, 7, 1), false},
		{"07/2025", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestCertificate_Validate(t *testing.T) {
	valid := func() *Certificate {
		return &Certificate{
			AgencyID:      uuid.New(),
			SheetType:     SheetYellow,
			SheetNumber:   10,
			PolicyNumber:  " POL-1 ",
			Holder:        "Rakoto",
			VehicleID:     "1234 tba",
			EffectiveDate: day(2025, 1, 1),
			ExpiryDate:    day(2025, 12, 31),
		}
	}

	t.Run("нормализация", func(t *testing.T) {
		c := valid()
		require.NoError(t, c.Validate())
		assert.Equal(t, "POL-1", c.PolicyNumber)
		assert.Equal(t, "1234TBA", c.VehicleID)
	})

	t.Run("порядок дат не проверяется", func(t *testing.T) {
		c := valid()
		c.EffectiveDate, c.ExpiryDate = c.ExpiryDate, c.EffectiveDate
		assert.NoError(t, c.Validate())
	})

	broken := map[string]func(c *Certificate){
		"без агентства":       func(c *Certificate) { c.AgencyID = uuid.Nil },
		"без номера бланка":   func(c *Certificate) { c.SheetNumber = 0 },
		"неизвестный тип":     func(c *Certificate) { c.SheetType = "BLEU" },
		"без полиса":          func(c *Certificate) { c.PolicyNumber = "  " },
		"без страхователя":    func(c *Certificate) { c.Holder = "" },
		"без номера авто":     func(c *Certificate) { c.VehicleID = " " },
		"без даты начала":     func(c *Certificate) { c.EffectiveDate = time.Time{} },
		"отрицательные места": func(c *Certificate) { c.Seats = -1 },
	}
	for name, breakIt := range broken {
		t.Run(name, func(t *testing.T) {
			c := valid()
			breakIt(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidArgument)
		})
	}
}

func TestErrorKinds(t *testing.T) {
	stockErr := &StockError{Kind: ErrInsufficientStock, AgencyName: "Analakely", SheetType: SheetRed, Requested: 3, Available: 1}
	exhausted := stockErr.Exhausted()

	assert.ErrorIs(t, exhausted, ErrStockExhausted)
	assert.ErrorIs(t, stockErr, ErrInsufficientStock, "исходная ошибка не меняется")
	assert.Contains(t, exhausted.Error(), "Analakely")

	coverageErr := error(&CoverageConflictError{VehicleID: "1234TBA", BlockingExpiry: day(2025, 6, 30)})
	assert.ErrorIs(t, coverageErr, ErrCoverageConflict)
	assert.Contains(t, coverageErr.Error(), "2025-06-30")

	rowErr := &RowError{Row: 3, Err: ErrAgencyNotFound}
	assert.ErrorIs(t, rowErr, ErrNotFound)

	assert.Equal(t, "not_found", Kind(rowErr))
	assert.Equal(t, "stock_exhausted", Kind(exhausted))
	assert.Equal(t, "coverage_conflict", Kind(coverageErr))
	assert.Equal(t, "conflict", Kind(ErrAgencyInUse))
	assert.Equal(t, "internal", Kind(errors.New("boom")))
	assert.False(t, IsDomain(errors.New("boom")))
	assert.True(t, IsDomain(InvalidArgument("bad")))
}
