package repository

import (
	"context"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/google/uuid"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	// Create создает нового пользователя
	Create(ctx context.Context, user *domain.User) error

	// GetByID возвращает пользователя по ID (с названием агентства)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail возвращает пользователя по email
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update обновляет данные пользователя
	Update(ctx context.Context, user *domain.User) error

	// Delete удаляет пользователя
	Delete(ctx context.Context, id uuid.UUID) error

	// List возвращает страницу пользователей и общее количество
	List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int, error)

	// CountByAgency возвращает число пользователей, привязанных к агентству
	CountByAgency(ctx context.Context, agencyID uuid.UUID) (int, error)
}

// AgencyRepository определяет методы для работы с агентствами и их остатками бланков
type AgencyRepository interface {
	// Create создает агентство вместе с начальными остатками
	Create(ctx context.Context, agency *domain.Agency) error

	// GetByID возвращает агентство по ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error)

	// GetByNames возвращает агентства по точным названиям (ключ - название)
	GetByNames(ctx context.Context, names []string) (map[string]*domain.Agency, error)

	// List возвращает агентства; scope != nil ограничивает выборку одним агентством
	List(ctx context.Context, scope *uuid.UUID) ([]*domain.Agency, error)

	// Update обновляет контактные поля (остатки не трогает)
	Update(ctx context.Context, agency *domain.Agency) error

	// Delete удаляет агентство
	Delete(ctx context.Context, id uuid.UUID) error

	// GetStock возвращает текущие остатки
	GetStock(ctx context.Context, id uuid.UUID) (domain.Stock, error)

	// LockForUpdate блокирует строки агентств до конца транзакции.
	// Блокировки берутся в порядке возрастания ID.
	LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Agency, error)

	// AdjustStock атомарно прибавляет delta к счетчику типа бланка.
	// Если результат стал бы отрицательным - *domain.StockError с ErrInsufficientStock.
	AdjustStock(ctx context.Context, id uuid.UUID, sheetType domain.SheetType, delta int) (domain.Stock, error)
}

// CertificateRepository определяет методы для работы с аттестатами
type CertificateRepository interface {
	// Create сохраняет аттестат; занятый номер бланка - domain.ErrDuplicateSheetNumber
	Create(ctx context.Context, cert *domain.Certificate) error

	// CreateMany сохраняет пачку, молча пропуская занятые номера бланков.
	// Возвращает номера бланков, которые реально вставлены.
	CreateMany(ctx context.Context, certs []*domain.Certificate) ([]int64, error)

	// GetByID возвращает аттестат по ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Certificate, error)

	// GetByIDs возвращает аттестаты в порядке возрастания номера бланка
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Certificate, error)

	// Update обновляет все поля, кроме номера бланка
	Update(ctx context.Context, cert *domain.Certificate) error

	// Delete удаляет аттестат
	Delete(ctx context.Context, id uuid.UUID) error

	// List возвращает страницу аттестатов по фильтру
	List(ctx context.Context, filter domain.CertificateFilter) ([]*domain.Certificate, error)

	// Count возвращает общее число аттестатов по фильтру (без пагинации)
	Count(ctx context.Context, filter domain.CertificateFilter) (int, error)

	// CountByAgency возвращает число аттестатов агентства
	CountByAgency(ctx context.Context, agencyID uuid.UUID) (int, error)

	// LatestExpiry возвращает максимальную дату окончания среди аттестатов автомобиля.
	// exclude исключает аттестат из выборки (при редактировании).
	LatestExpiry(ctx context.Context, vehicleID string, exclude *uuid.UUID) (time.Time, bool, error)

	// LockVehicle сериализует транзакции, работающие с одним автомобилем
	LockVehicle(ctx context.Context, vehicleID string) error

	// ExistingSheetNumbers возвращает множество уже занятых номеров из переданных
	ExistingSheetNumbers(ctx context.Context, numbers []int64) (map[int64]bool, error)
}

// Repositories - набор репозиториев, привязанных к одному соединению или транзакции
type Repositories struct {
	Users        UserRepository
	Agencies     AgencyRepository
	Certificates CertificateRepository
}

// Store - хранилище, создаваемое в main и передаваемое в сервисы явно
type Store interface {
	// Repositories возвращает репозитории вне транзакции
	Repositories() Repositories

	// RunInTx выполняет fn в одной транзакции: commit при nil, rollback при ошибке или panic
	RunInTx(ctx context.Context, fn func(repos Repositories) error) error
}
