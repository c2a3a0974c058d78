package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/metrics"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/google/uuid"
)

// Increment прибавляет amount бланков типа sheetType в рамках переданного репозитория
// (вызывающий решает, в какой транзакции это происходит)
func Increment(ctx context.Context, agencies repository.AgencyRepository, agencyID uuid.UUID, sheetType domain.SheetType, amount int) (domain.Stock, error) {
	if err := validateMovement(sheetType, amount); err != nil {
		return domain.Stock{}, err
	}
	return agencies.AdjustStock(ctx, agencyID, sheetType, amount)
}

// Decrement списывает amount бланков; при нехватке счетчик не меняется,
// возвращается *domain.StockError с ErrInsufficientStock
func Decrement(ctx context.Context, agencies repository.AgencyRepository, agencyID uuid.UUID, sheetType domain.SheetType, amount int) (domain.Stock, error) {
	if err := validateMovement(sheetType, amount); err != nil {
		return domain.Stock{}, err
	}
	return agencies.AdjustStock(ctx, agencyID, sheetType, -amount)
}

func validateMovement(sheetType domain.SheetType, amount int) error {
	if !sheetType.Valid() {
		return domain.InvalidArgument("unknown sheet type %q", sheetType)
	}
	if amount <= 0 {
		return domain.InvalidArgument("amount must be a positive integer, got %d", amount)
	}
	if amount > domain.MaxStock {
		return domain.InvalidArgument("amount cannot exceed %d, got %d", domain.MaxStock, amount)
	}
	return nil
}

// StockMovement - запрос на изменение остатков
type StockMovement struct {
	AgencyID  uuid.UUID        `json:"agency_id"`
	SheetType domain.SheetType `json:"sheet_type"`
	Amount    int              `json:"amount"`
}

// Service - учет бланков агентств для обработчиков администрирования
type Service struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewService создает новый экземпляр ledger Service
func NewService(store repository.Store, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{
		store:   store,
		metrics: m,
		logger:  log,
	}
}

// Stocks возвращает агентства с остатками, видимые субъекту
func (s *Service) Stocks(ctx context.Context, p domain.Principal) ([]*domain.Agency, error) {
	decision := domain.Authorize(p, domain.ActionStockRead)
	if !decision.Allowed {
		return nil, domain.ErrForbidden
	}
	return s.store.Repositories().Agencies.List(ctx, decision.Scope)
}

// GetStock возвращает остатки агентства
func (s *Service) GetStock(ctx context.Context, p domain.Principal, agencyID uuid.UUID) (domain.Stock, error) {
	decision := domain.Authorize(p, domain.ActionStockRead)
	if !decision.Allowed {
		return domain.Stock{}, domain.ErrForbidden
	}
	if !decision.Permits(agencyID) {
		return domain.Stock{}, domain.ErrAgencyNotFound
	}
	return s.store.Repositories().Agencies.GetStock(ctx, agencyID)
}

// Increment пополняет остатки агентства (приход бланков)
func (s *Service) Increment(ctx context.Context, p domain.Principal, req StockMovement) (domain.Stock, error) {
	return s.move(ctx, p, req, Increment, 1)
}

// Decrement списывает бланки (корректировка администратором)
func (s *Service) Decrement(ctx context.Context, p domain.Principal, req StockMovement) (domain.Stock, error) {
	return s.move(ctx, p, req, Decrement, -1)
}

type movementFunc func(context.Context, repository.AgencyRepository, uuid.UUID, domain.SheetType, int) (domain.Stock, error)

func (s *Service) move(ctx context.Context, p domain.Principal, req StockMovement, apply movementFunc, sign int) (domain.Stock, error) {
	if !domain.Authorize(p, domain.ActionStockWrite).Allowed {
		return domain.Stock{}, domain.ErrForbidden
	}

	var stock domain.Stock
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		var err error
		stock, err = apply(ctx, repos.Agencies, req.AgencyID, req.SheetType, req.Amount)
		return err
	})
	if err != nil {
		var stockErr *domain.StockError
		if errors.As(err, &stockErr) {
			s.logger.Warn("Stock movement rejected", map[string]interface{}{
				"agency_id":  req.AgencyID,
				"sheet_type": req.SheetType,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			})
			return domain.Stock{}, err
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrNotFound) {
			return domain.Stock{}, err
		}
		return domain.Stock{}, fmt.Errorf("failed to move stock: %w", err)
	}

	s.metrics.MovedStock(string(req.SheetType), sign*req.Amount)
	s.logger.Info("Stock updated", map[string]interface{}{
		"agency_id":  req.AgencyID,
		"sheet_type": req.SheetType,
		"delta":      sign * req.Amount,
		"by":         p.UserID,
	})

	return stock, nil
}
