package certificate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/metrics"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/frontandrew/attestation/internal/usecase/coverage"
	"github.com/frontandrew/attestation/internal/usecase/ledger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// IssueRequest - данные для выдачи одного аттестата
type IssueRequest struct {
	AgencyID      uuid.UUID        `json:"agency_id"`
	SheetType     domain.SheetType `json:"sheet_type"`
	SheetNumber   int64            `json:"sheet_number"`
	PolicyNumber  string           `json:"policy_number"`
	Holder        string           `json:"holder"`
	Address       string           `json:"address"`
	VehicleID     string           `json:"vehicle_id"`
	Brand         string           `json:"brand"`
	Usage         string           `json:"usage"`
	Seats         int              `json:"seats"`
	EffectiveDate time.Time        `json:"effective_date"`
	ExpiryDate    time.Time        `json:"expiry_date"`
}

// UpdateRequest - изменяемые поля аттестата; номер бланка, тип и агентство не меняются
type UpdateRequest struct {
	PolicyNumber  string    `json:"policy_number"`
	Holder        string    `json:"holder"`
	Address       string    `json:"address"`
	VehicleID     string    `json:"vehicle_id"`
	Brand         string    `json:"brand"`
	Usage         string    `json:"usage"`
	Seats         int       `json:"seats"`
	EffectiveDate time.Time `json:"effective_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
}

// DateRange - диапазон дат; любая граница может отсутствовать
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r DateRange) predicate(field domain.DateField) (domain.Predicate, bool) {
	if r.From == nil && r.To == nil {
		return nil, false
	}
	p := domain.DateBetween{
		Field: field,
		From:  time.Time{},
		To:    time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	if r.From != nil {
		p.From = domain.DateOnly(*r.From)
	}
	if r.To != nil {
		// Верхняя граница включает весь день
		p.To = domain.DateOnly(*r.To).Add(24*time.Hour - time.Nanosecond)
	}
	return p, true
}

// ListQuery - параметры выборки аттестатов
type ListQuery struct {
	AgencyID  *uuid.UUID
	Search    string
	Status    domain.CertificateStatus
	Effective DateRange
	Expiry    DateRange
	Created   DateRange
	IDs       []uuid.UUID
	SortBy    domain.SortField
	Desc      bool
	Page      int
	Limit     int
}

// filter собирает предикаты; scope ограничивает выборку агентством субъекта
func (q ListQuery) filter(today time.Time, scope *uuid.UUID) domain.CertificateFilter {
	f := domain.CertificateFilter{SortBy: q.SortBy, Desc: q.Desc}
	if f.SortBy == "" {
		f.SortBy = domain.SortCreatedAt
		f.Desc = true
	}

	if scope != nil {
		f.And(domain.AgencyIs{AgencyID: *scope})
	}
	if q.AgencyID != nil {
		f.And(domain.AgencyIs{AgencyID: *q.AgencyID})
	}
	if len(q.IDs) > 0 {
		f.And(domain.IDIn{IDs: q.IDs})
	}
	if q.Search != "" {
		f.And(domain.TextSearch{Term: q.Search})
	}
	if q.Status != "" {
		f.And(domain.StatusIs{Status: q.Status, Today: today})
	}
	if p, ok := q.Effective.predicate(domain.DateEffective); ok {
		f.And(p)
	}
	if p, ok := q.Expiry.predicate(domain.DateExpiry); ok {
		f.And(p)
	}
	if p, ok := q.Created.predicate(domain.DateCreated); ok {
		f.And(p)
	}
	return f
}

// Page - страница аттестатов
type Page struct {
	Items      []*domain.Certificate `json:"data"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"total_pages"`
}

// Invalidator сбрасывает кэш публичной проверки после изменения аттестатов
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...uuid.UUID)
}

// Getter - чтение аттестата по ID (в т.ч. кэшированное)
type Getter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Certificate, error)
}

// Service - выдача и сопровождение аттестатов
type Service struct {
	store       repository.Store
	public      Getter
	invalidator Invalidator
	metrics     *metrics.Metrics
	logger      logger.Logger
	now         func() time.Time
}

// Option настраивает Service
type Option func(*Service)

// WithPublicReader задает источник чтения для публичной проверки (например, кэш Redis)
func WithPublicReader(g Getter) Option {
	return func(s *Service) { s.public = g }
}

// WithInvalidator задает сброс кэша после изменений
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// WithClock подменяет часы (для тестов)
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создает новый экземпляр certificate Service
func NewService(store repository.Store, m *metrics.Metrics, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.public == nil {
		s.public = store.Repositories().Certificates
	}
	return s
}

// Issue атомарно выдает один аттестат:
// проверка покрытия, загрузка агентства, списание бланка, вставка записи.
// Любая ошибка после списания откатывает всю транзакцию.
func (s *Service) Issue(ctx context.Context, p domain.Principal, req IssueRequest) (*domain.Certificate, error) {
	decision := domain.Authorize(p, domain.ActionCertificateIssue)
	if !decision.Allowed {
		return nil, domain.ErrForbidden
	}

	agencyID := req.AgencyID
	if agencyID == uuid.Nil && decision.Scope != nil {
		agencyID = *decision.Scope
	}
	if agencyID != uuid.Nil && !decision.Permits(agencyID) {
		return nil, domain.ErrForbidden
	}

	cert := &domain.Certificate{
		AgencyID:      agencyID,
		CreatorID:     p.UserID,
		SheetNumber:   req.SheetNumber,
		SheetType:     req.SheetType,
		PolicyNumber:  req.PolicyNumber,
		Holder:        req.Holder,
		Address:       req.Address,
		VehicleID:     req.VehicleID,
		Brand:         req.Brand,
		Usage:         req.Usage,
		Seats:         req.Seats,
		EffectiveDate: req.EffectiveDate,
		ExpiryDate:    req.ExpiryDate,
	}
	if err := cert.Validate(); err != nil {
		s.metrics.RejectedIssuance(domain.Kind(err))
		return nil, err
	}

	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		// 1. Покрытие автомобиля - повторно, под блокировкой автомобиля
		if err := coverage.CheckNoOverlap(ctx, repos.Certificates, cert.VehicleID, cert.EffectiveDate, nil); err != nil {
			return err
		}

		// 2. Агентство должно существовать
		agency, err := repos.Agencies.GetByID(ctx, cert.AgencyID)
		if err != nil {
			return err
		}

		// 3. Списываем один бланк заявленного типа
		if _, err := ledger.Decrement(ctx, repos.Agencies, agency.ID, cert.SheetType, 1); err != nil {
			var stockErr *domain.StockError
			if errors.As(err, &stockErr) {
				exhausted := stockErr.Exhausted()
				exhausted.AgencyName = agency.Name
				return exhausted
			}
			return err
		}

		// 4-5. Вставка; занятый номер бланка откатывает и списание
		return repos.Certificates.Create(ctx, cert)
	})
	if err != nil {
		s.metrics.RejectedIssuance(domain.Kind(err))
		s.logger.Warn("Certificate issuance rejected", map[string]interface{}{
			"sheet_number": cert.SheetNumber,
			"vehicle_id":   cert.VehicleID,
			"agency_id":    cert.AgencyID,
			"reason":       domain.Kind(err),
			"error":        err.Error(),
		})
		if domain.IsDomain(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to issue certificate: %w", err)
	}

	s.metrics.IssuedCertificate(string(cert.SheetType))
	s.logger.Info("Certificate issued", map[string]interface{}{
		"certificate_id": cert.ID,
		"sheet_number":   cert.SheetNumber,
		"sheet_type":     cert.SheetType,
		"agency_id":      cert.AgencyID,
		"creator_id":     cert.CreatorID,
	})

	if stored, err := s.store.Repositories().Certificates.GetByID(ctx, cert.ID); err == nil {
		return stored, nil
	}
	return cert, nil
}

// Get возвращает аттестат; чужое агентство для субъекта выглядит как "не найдено"
func (s *Service) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Certificate, error) {
	decision := domain.Authorize(p, domain.ActionCertificateRead)
	if !decision.Allowed {
		return nil, domain.ErrForbidden
	}

	cert, err := s.store.Repositories().Certificates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !decision.Permits(cert.AgencyID) {
		return nil, domain.ErrCertificateNotFound
	}

	return cert, nil
}

// List возвращает страницу аттестатов; количество и страница читаются параллельно
func (s *Service) List(ctx context.Context, p domain.Principal, q ListQuery) (*Page, error) {
	decision := domain.Authorize(p, domain.ActionCertificateRead)
	if !decision.Allowed {
		return nil, domain.ErrForbidden
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	filter := q.filter(s.now(), decision.Scope)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	certs := s.store.Repositories().Certificates
	result := &Page{Page: page, Limit: limit}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := certs.List(gctx, filter)
		result.Items = items
		return err
	})
	g.Go(func() error {
		total, err := certs.Count(gctx, filter)
		result.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		if domain.IsDomain(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}

	result.TotalPages = (result.Total + limit - 1) / limit
	return result, nil
}

// Export возвращает все аттестаты по фильтру без пагинации
func (s *Service) Export(ctx context.Context, p domain.Principal, q ListQuery) ([]*domain.Certificate, error) {
	decision := domain.Authorize(p, domain.ActionCertificateRead)
	if !decision.Allowed {
		return nil, domain.ErrForbidden
	}

	filter := q.filter(s.now(), decision.Scope)
	if q.SortBy == "" {
		filter.SortBy = domain.SortSheetNumber
		filter.Desc = false
	}

	return s.store.Repositories().Certificates.List(ctx, filter)
}

// ForPrint возвращает выбранные аттестаты в порядке номеров бланков
func (s *Service) ForPrint(ctx context.Context, p domain.Principal, ids []uuid.UUID) ([]*domain.Certificate, error) {
	if len(ids) == 0 {
		return nil, domain.InvalidArgument("no certificate ids provided")
	}

	certs, err := s.Export(ctx, p, ListQuery{IDs: ids, SortBy: domain.SortSheetNumber})
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, domain.ErrCertificateNotFound
	}

	return certs, nil
}

// Update меняет описательные поля и даты. При смене автомобиля или даты начала
// покрытие проверяется заново, без учета самого аттестата.
func (s *Service) Update(ctx context.Context, p domain.Principal, id uuid.UUID, req UpdateRequest) (*domain.Certificate, error) {
	decision := domain.Authorize(p, domain.ActionCertificateUpdate)
	if !decision.Allowed {
		return nil, domain.ErrForbidden
	}

	var updated *domain.Certificate
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		current, err := repos.Certificates.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !decision.Permits(current.AgencyID) {
			return domain.ErrCertificateNotFound
		}

		next := *current
		next.PolicyNumber = req.PolicyNumber
		next.Holder = req.Holder
		next.Address = req.Address
		next.VehicleID = req.VehicleID
		next.Brand = req.Brand
		next.Usage = req.Usage
		next.Seats = req.Seats
		next.EffectiveDate = req.EffectiveDate
		next.ExpiryDate = req.ExpiryDate
		if err := next.Validate(); err != nil {
			return err
		}

		if next.VehicleID != current.VehicleID || !next.EffectiveDate.Equal(domain.DateOnly(current.EffectiveDate)) {
			if err := coverage.CheckNoOverlap(ctx, repos.Certificates, next.VehicleID, next.EffectiveDate, &current.ID); err != nil {
				return err
			}
		}

		if err := repos.Certificates.Update(ctx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		if domain.IsDomain(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update certificate: %w", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("Certificate updated", map[string]interface{}{
		"certificate_id": id,
		"sheet_number":   updated.SheetNumber,
		"by":             p.UserID,
	})

	return updated, nil
}

// Delete удаляет аттестат. Бланк в остатки не возвращается: он уже физически израсходован.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	decision := domain.Authorize(p, domain.ActionCertificateDelete)
	if !decision.Allowed {
		return domain.ErrForbidden
	}

	var sheetNumber int64
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		current, err := repos.Certificates.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !decision.Permits(current.AgencyID) {
			return domain.ErrCertificateNotFound
		}
		sheetNumber = current.SheetNumber
		return repos.Certificates.Delete(ctx, id)
	})
	if err != nil {
		if domain.IsDomain(err) {
			return err
		}
		return fmt.Errorf("failed to delete certificate: %w", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("Certificate deleted", map[string]interface{}{
		"certificate_id": id,
		"sheet_number":   sheetNumber,
		"by":             p.UserID,
	})

	return nil
}

// Verification - публичные сведения об аттестате для проверки по QR-коду
type Verification struct {
	ID            uuid.UUID                `json:"id"`
	SheetNumber   int64                    `json:"sheet_number"`
	SheetType     domain.SheetType         `json:"sheet_type"`
	PolicyNumber  string                   `json:"policy_number"`
	Holder        string                   `json:"holder"`
	VehicleID     string                   `json:"vehicle_id"`
	Brand         string                   `json:"brand,omitempty"`
	AgencyName    string                   `json:"agency_name"`
	EffectiveDate string                   `json:"effective_date"`
	ExpiryDate    string                   `json:"expiry_date"`
	Status        domain.CertificateStatus `json:"status"`
}

// Verify возвращает публичные сведения об аттестате без аутентификации
func (s *Service) Verify(ctx context.Context, id uuid.UUID) (*Verification, error) {
	cert, err := s.public.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Verification{
		ID:            cert.ID,
		SheetNumber:   cert.SheetNumber,
		SheetType:     cert.SheetType,
		PolicyNumber:  cert.PolicyNumber,
		Holder:        cert.Holder,
		VehicleID:     cert.VehicleID,
		Brand:         cert.Brand,
		AgencyName:    cert.AgencyName,
		EffectiveDate: cert.EffectiveDate.Format(domain.DateLayout),
		ExpiryDate:    cert.ExpiryDate.Format(domain.DateLayout),
		Status:        cert.Status(s.now()),
	}, nil
}

// Today возвращает текущую дату по часам сервиса
func (s *Service) Today() time.Time {
	return domain.DateOnly(s.now())
}

func (s *Service) invalidate(ctx context.Context, ids ...uuid.UUID) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, ids...)
	}
}
