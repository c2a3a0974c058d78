package coverage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/google/uuid"
)

// CertificateReader - часть CertificateRepository, нужная проверке покрытия
type CertificateReader interface {
	LatestExpiry(ctx context.Context, vehicleID string, exclude *uuid.UUID) (time.Time, bool, error)
	LockVehicle(ctx context.Context, vehicleID string) error
}

// Result - итог проверки; Conflict == true означает, что автомобиль уже
// застрахован до BlockingExpiry включительно
type Result struct {
	VehicleID      string    `json:"vehicle_id"`
	Conflict       bool      `json:"conflict"`
	BlockingExpiry time.Time `json:"blocking_expiry,omitempty"`
}

// Err возвращает *domain.CoverageConflictError для конфликта, иначе nil
func (r Result) Err() error {
	if !r.Conflict {
		return nil
	}
	return &domain.CoverageConflictError{VehicleID: r.VehicleID, BlockingExpiry: r.BlockingExpiry}
}

// Conflicts - правило пересечения: новая дата начала должна быть строго позже
// максимальной даты окончания по автомобилю
func Conflicts(latestExpiry, effective time.Time) bool {
	return !domain.DateOnly(effective).After(domain.DateOnly(latestExpiry))
}

// Check сравнивает дату начала с максимальной датой окончания среди всех
// аттестатов автомобиля (по всей системе, без учета агентства).
// exclude исключает редактируемый аттестат.
func Check(ctx context.Context, certs CertificateReader, vehicleID string, effective time.Time, exclude *uuid.UUID) (Result, error) {
	vehicleID = domain.NormalizeVehicleID(vehicleID)
	if vehicleID == "" {
		return Result{}, domain.InvalidArgument("vehicle id is required")
	}
	if effective.IsZero() {
		return Result{}, domain.InvalidArgument("effective date is required")
	}

	latest, found, err := certs.LatestExpiry(ctx, vehicleID, exclude)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read vehicle coverage: %w", err)
	}

	result := Result{VehicleID: vehicleID}
	if found && Conflicts(latest, effective) {
		result.Conflict = true
		result.BlockingExpiry = domain.DateOnly(latest)
	}

	return result, nil
}

// CheckNoOverlap повторяет проверку внутри транзакции записи: сначала блокирует
// автомобиль, затем читает покрытие, чтобы конкурентная выдача не проскочила между
// проверкой и вставкой
func CheckNoOverlap(ctx context.Context, certs CertificateReader, vehicleID string, effective time.Time, exclude *uuid.UUID) error {
	if err := certs.LockVehicle(ctx, domain.NormalizeVehicleID(vehicleID)); err != nil {
		return err
	}
	result, err := Check(ctx, certs, vehicleID, effective, exclude)
	if err != nil {
		return err
	}
	return result.Err()
}

// LockVehicles блокирует несколько автомобилей в порядке возрастания номера.
// Порядок блокировок во всех транзакциях записи: сначала автомобили, затем строки агентств.
func LockVehicles(ctx context.Context, certs CertificateReader, vehicleIDs []string) error {
	seen := make(map[string]bool, len(vehicleIDs))
	ordered := make([]string, 0, len(vehicleIDs))
	for _, id := range vehicleIDs {
		id = domain.NormalizeVehicleID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	for _, id := range ordered {
		if err := certs.LockVehicle(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Service - справочная проверка покрытия для форм (без блокировок)
type Service struct {
	store repository.Store
}

// NewService создает новый экземпляр coverage Service
func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

// Check выполняет проверку на текущий момент; результат не гарантирован к моменту записи
func (s *Service) Check(ctx context.Context, p domain.Principal, vehicleID string, effective time.Time) (Result, error) {
	if !domain.Authorize(p, domain.ActionCertificateRead).Allowed {
		return Result{}, domain.ErrForbidden
	}
	return Check(ctx, s.store.Repositories().Certificates, vehicleID, effective, nil)
}
