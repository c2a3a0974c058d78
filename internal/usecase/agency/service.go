package agency

import (
	"context"
	"fmt"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/metrics"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/frontandrew/attestation/internal/usecase/ledger"
	"github.com/google/uuid"
)

// CreateRequest - запрос на создание агентства
type CreateRequest struct {
	Name    string       `json:"name"`
	Code    string       `json:"code,omitempty"`
	Address string       `json:"address,omitempty"`
	Email   string       `json:"email,omitempty"`
	Phone   string       `json:"phone,omitempty"`
	Stock   domain.Stock `json:"stock"` // начальные остатки
}

// UpdateRequest - контактные поля; остатки меняются только через stocks
type UpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Code    *string `json:"code,omitempty"`
	Address *string `json:"address,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

// Service - администрирование агентств
type Service struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewService создает новый экземпляр agency Service
func NewService(store repository.Store, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{
		store:   store,
		metrics: m,
		logger:  log,
	}
}

// List возвращает агентства, видимые субъекту
func (s *Service) List(ctx context.Context, p domain.Principal) ([]*domain.Agency, error) {
	decision := domain.Authorize(p, domain.ActionAgencyRead)
	if !decision.Allowed {
		return nil, domain.ErrForbidden
	}
	return s.store.Repositories().Agencies.List(ctx, decision.Scope)
}

// Get возвращает агентство; чужое агентство для сотрудника не существует
func (s *Service) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Agency, error) {
	decision := domain.Authorize(p, domain.ActionAgencyRead)
	if !decision.Allowed {
		return nil, domain.ErrForbidden
	}
	if !decision.Permits(id) {
		return nil, domain.ErrAgencyNotFound
	}
	return s.store.Repositories().Agencies.GetByID(ctx, id)
}

// Create создает агентство. Начальные остатки оформляются как приход через ledger.
func (s *Service) Create(ctx context.Context, p domain.Principal, req CreateRequest) (*domain.Agency, error) {
	if !domain.Authorize(p, domain.ActionAgencyManage).Allowed {
		return nil, domain.ErrForbidden
	}

	agency := &domain.Agency{
		Name:    req.Name,
		Code:    req.Code,
		Address: req.Address,
		Email:   req.Email,
		Phone:   req.Phone,
	}
	if err := agency.Validate(); err != nil {
		return nil, err
	}
	if err := req.Stock.Validate(); err != nil {
		return nil, err
	}

	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Agencies.Create(ctx, agency); err != nil {
			return err
		}
		for _, t := range domain.SheetTypes {
			amount := req.Stock.Get(t)
			if amount == 0 {
				continue
			}
			stock, err := ledger.Increment(ctx, repos.Agencies, agency.ID, t, amount)
			if err != nil {
				return err
			}
			agency.Stock = stock
		}
		return nil
	})
	if err != nil {
		if domain.IsDomain(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create agency: %w", err)
	}

	for _, t := range domain.SheetTypes {
		if amount := req.Stock.Get(t); amount > 0 {
			s.metrics.MovedStock(string(t), amount)
		}
	}
	s.logger.Info("Agency created", map[string]interface{}{
		"agency_id": agency.ID,
		"name":      agency.Name,
		"by":        p.UserID,
	})

	return agency, nil
}

// Update меняет контактные поля агентства
func (s *Service) Update(ctx context.Context, p domain.Principal, id uuid.UUID, req UpdateRequest) (*domain.Agency, error) {
	if !domain.Authorize(p, domain.ActionAgencyManage).Allowed {
		return nil, domain.ErrForbidden
	}

	repo := s.store.Repositories().Agencies
	agency, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		agency.Name = *req.Name
	}
	if req.Code != nil {
		agency.Code = *req.Code
	}
	if req.Address != nil {
		agency.Address = *req.Address
	}
	if req.Email != nil {
		agency.Email = *req.Email
	}
	if req.Phone != nil {
		agency.Phone = *req.Phone
	}
	if err := agency.Validate(); err != nil {
		return nil, err
	}

	if err := repo.Update(ctx, agency); err != nil {
		if domain.IsDomain(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update agency: %w", err)
	}

	s.logger.Info("Agency updated", map[string]interface{}{
		"agency_id": agency.ID,
		"by":        p.UserID,
	})

	return agency, nil
}

// Delete удаляет агентство, если на него не ссылаются пользователи и аттестаты
func (s *Service) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if !domain.Authorize(p, domain.ActionAgencyManage).Allowed {
		return domain.ErrForbidden
	}

	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Agencies.LockForUpdate(ctx, []uuid.UUID{id}); err != nil {
			return err
		}

		users, err := repos.Users.CountByAgency(ctx, id)
		if err != nil {
			return err
		}
		certs, err := repos.Certificates.CountByAgency(ctx, id)
		if err != nil {
			return err
		}
		if users > 0 || certs > 0 {
			return fmt.Errorf("%w: %d users, %d certificates", domain.ErrAgencyInUse, users, certs)
		}

		return repos.Agencies.Delete(ctx, id)
	})
	if err != nil {
		if domain.IsDomain(err) {
			return err
		}
		return fmt.Errorf("failed to delete agency: %w", err)
	}

	s.logger.Info("Agency deleted", map[string]interface{}{
		"agency_id": id,
		"by":        p.UserID,
	})

	return nil
}
