package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SheetType - тип (цвет) бланка, на котором печатается аттестат
type SheetType string

const (
	SheetYellow SheetType = "JAUNE"
	SheetRed    SheetType = "ROUGE"
	SheetGreen  SheetType = "VERT"
)

// SheetTypes - полный закрытый список типов в фиксированном порядке
var SheetTypes = []SheetType{SheetYellow, SheetRed, SheetGreen}

// Valid проверяет, что тип входит в перечисление
func (t SheetType) Valid() bool {
	switch t {
	case SheetYellow, SheetRed, SheetGreen:
		return true
	}
	return false
}

// ParseSheetType разбирает метку типа бланка без учета регистра и пробелов
func ParseSheetType(label string) (SheetType, error) {
	t := SheetType(strings.ToUpper(strings.TrimSpace(label)))
	if !t.Valid() {
		return "", InvalidArgument("unknown sheet type %q", label)
	}
	return t, nil
}

// Stock - остатки чистых бланков агентства по типам
type Stock struct {
	Yellow int `json:"yellow"`
	Red    int `json:"red"`
	Green  int `json:"green"`
}

// Get возвращает счетчик для типа бланка
func (s Stock) Get(t SheetType) int {
	switch t {
	case SheetYellow:
		return s.Yellow
	case SheetRed:
		return s.Red
	case SheetGreen:
		return s.Green
	}
	return 0
}

// With возвращает копию остатков с измененным счетчиком
func (s Stock) With(t SheetType, value int) Stock {
	switch t {
	case SheetYellow:
		s.Yellow = value
	case SheetRed:
		s.Red = value
	case SheetGreen:
		s.Green = value
	}
	return s
}

// MaxStock - предел счетчика остатков (колонки INTEGER в PostgreSQL)
const MaxStock = math.MaxInt32

// Validate проверяет, что счетчики в пределах [0, MaxStock]
func (s Stock) Validate() error {
	for _, t := range SheetTypes {
		if s.Get(t) < 0 {
			return InvalidArgument("stock for %s cannot be negative", t)
		}
		if s.Get(t) > MaxStock {
			return InvalidArgument("stock for %s cannot exceed %d", t, MaxStock)
		}
	}
	return nil
}

// StockOverflow - ошибка прихода, после которого счетчик превысил бы MaxStock
func StockOverflow(t SheetType, current, amount int) error {
	return InvalidArgument("stock for %s would exceed %d: have %d, adding %d", t, MaxStock, current, amount)
}

// Agency - агентство (филиал), владеющее своим запасом бланков
// ВАЖНО: счетчики Stock меняются только через ledger
type Agency struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"` // уникальное
	Code      string    `json:"code,omitempty"`
	Address   string    `json:"address,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Stock     Stock     `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет корректность данных агентства
func (a *Agency) Validate() error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return InvalidArgument("agency name is required")
	}
	return a.Stock.Validate()
}
