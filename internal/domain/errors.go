package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Доменные ошибки - используются во всех слоях приложения

// Базовые виды ошибок ядра
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrCoverageConflict     = errors.New("vehicle already covered")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrStockExhausted       = errors.New("stock exhausted")
	ErrDuplicateSheetNumber = errors.New("sheet number already exists")
)

// Конкретные "не найдено" - errors.Is(err, ErrNotFound) остается истинным
var (
	ErrAgencyNotFound      = fmt.Errorf("agency %w", ErrNotFound)
	ErrCertificateNotFound = fmt.Errorf("certificate %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
)

// Administration errors
var (
	ErrAgencyAlreadyExists = errors.New("agency already exists")
	ErrAgencyInUse         = errors.New("agency is still referenced by users or certificates")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrCannotDeleteSelf    = errors.New("cannot delete own account")
	ErrInvalidRole         = errors.New("invalid user role")
)

// Authorization errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
)

// InvalidArgument возвращает ошибку вида ErrInvalidArgument с пояснением
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// CoverageConflictError - автомобиль уже застрахован до BlockingExpiry включительно
type CoverageConflictError struct {
	VehicleID      string
	BlockingExpiry time.Time
}

func (e *CoverageConflictError) Error() string {
	return fmt.Sprintf("vehicle %s is already covered until %s; the new effective date must be later",
		e.VehicleID, e.BlockingExpiry.Format(DateLayout))
}

func (e *CoverageConflictError) Unwrap() error {
	return ErrCoverageConflict
}

// StockError описывает нехватку бланков у агентства.
// Kind - ErrInsufficientStock (уровень ledger) или ErrStockExhausted (выдача/импорт).
type StockError struct {
	Kind       error
	AgencyID   uuid.UUID
	AgencyName string
	SheetType  SheetType
	Requested  int
	Available  int
}

func (e *StockError) Error() string {
	agency := e.AgencyName
	if agency == "" {
		agency = e.AgencyID.String()
	}
	return fmt.Sprintf("%v: agency %s, sheet type %s: requested %d, available %d",
		e.Kind, agency, e.SheetType, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return e.Kind
}

// Exhausted переводит ошибку ledger в ошибку уровня сценария выдачи
func (e *StockError) Exhausted() *StockError {
	out := *e
	out.Kind = ErrStockExhausted
	return &out
}

// RowError привязывает ошибку импорта к строке файла (нумерация с 1, без заголовка)
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Kind возвращает короткое имя вида ошибки для логов и метрик; "internal" - не доменная ошибка
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidRole):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCoverageConflict):
		return "coverage_conflict"
	case errors.Is(err, ErrStockExhausted), errors.Is(err, ErrInsufficientStock):
		return "stock_exhausted"
	case errors.Is(err, ErrDuplicateSheetNumber):
		return "duplicate_sheet_number"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrUserInactive):
		return "unauthorized"
	case errors.Is(err, ErrAgencyAlreadyExists), errors.Is(err, ErrUserAlreadyExists),
		errors.Is(err, ErrAgencyInUse), errors.Is(err, ErrCannotDeleteSelf):
		return "conflict"
	}
	return "internal"
}

// IsDomain сообщает, что ошибка относится к известным доменным видам
func IsDomain(err error) bool {
	return err != nil && Kind(err) != "internal"
}
