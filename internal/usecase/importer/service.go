package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/metrics"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/frontandrew/attestation/internal/usecase/coverage"
	"github.com/frontandrew/attestation/internal/usecase/ledger"
	"github.com/google/uuid"
)

// Options - политика импорта
type Options struct {
	// ChargeSkippedDuplicates - списывать бланки за все строки пачки, включая пропущенные
	// дубликаты. По умолчанию списываются только реально вставленные строки.
	ChargeSkippedDuplicates bool
	// EnforceCoverage - проверять пересечение периодов страхования, как при одиночной выдаче
	EnforceCoverage bool
}

// Charge - списание по паре (агентство, тип бланка)
type Charge struct {
	AgencyID   uuid.UUID        `json:"agency_id"`
	AgencyName string           `json:"agency_name"`
	SheetType  domain.SheetType `json:"sheet_type"`
	Amount     int              `json:"amount"`
}

// Result - итог импорта
type Result struct {
	Inserted  int      `json:"count"`
	Attempted []int64  `json:"attempted_sheet_numbers"`
	Skipped   []int64  `json:"skipped_sheet_numbers"`
	Charges   []Charge `json:"charges"`
}

// candidate - строка после структурной проверки
type candidate struct {
	line       int
	agencyName string
	cert       *domain.Certificate
}

type pairKey struct {
	agencyID  uuid.UUID
	sheetType domain.SheetType
}

// Service - массовый импорт аттестатов
type Service struct {
	store   repository.Store
	opts    Options
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewService создает новый экземпляр importer Service
func NewService(store repository.Store, opts Options, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{
		store:   store,
		opts:    opts,
		metrics: m,
		logger:  log,
	}
}

// ImportCSV разбирает файл и импортирует строки
func (s *Service) ImportCSV(ctx context.Context, p domain.Principal, r io.Reader) (*Result, error) {
	if !domain.Authorize(p, domain.ActionCertificateImport).Allowed {
		return nil, domain.ErrForbidden
	}

	rows, err := ParseCSV(r)
	if err != nil {
		s.metrics.RejectedImport(domain.Kind(err))
		return nil, err
	}

	return s.Import(ctx, p, rows)
}

// Import применяет пачку строк: либо вся пачка проходит по остаткам и вставляется
// (дубликаты номеров бланков молча пропускаются), либо не меняется ничего.
func (s *Service) Import(ctx context.Context, p domain.Principal, rows []Row) (*Result, error) {
	start := time.Now()

	decision := domain.Authorize(p, domain.ActionCertificateImport)
	if !decision.Allowed {
		return nil, domain.ErrForbidden
	}

	// 1. Структурная проверка всех строк до любых побочных эффектов
	candidates, err := validateRows(rows, p.UserID)
	if err != nil {
		s.reject(err, len(rows))
		return nil, err
	}

	result := &Result{Attempted: make([]int64, len(candidates))}
	for i, c := range candidates {
		result.Attempted[i] = c.cert.SheetNumber
	}

	err = s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		// 2. Разрешаем названия агентств
		agencies, err := resolveAgencies(ctx, repos.Agencies, candidates, decision)
		if err != nil {
			return err
		}

		// 3. Агрегируем потребность по парам (агентство, тип)
		requested, order := aggregate(candidates, nil)

		// Автомобили блокируются раньше агентств, как и при выдаче одного аттестата
		if s.opts.EnforceCoverage {
			if err := coverage.LockVehicles(ctx, repos.Certificates, vehicleIDs(candidates)); err != nil {
				return err
			}
		}

		// 4. Проверяем остатки под блокировкой строк агентств
		locked, err := repos.Agencies.LockForUpdate(ctx, agencyIDs(agencies))
		if err != nil {
			return err
		}
		for _, key := range order {
			available := locked[key.agencyID].Stock.Get(key.sheetType)
			if available < requested[key] {
				return &domain.StockError{
					Kind:       domain.ErrStockExhausted,
					AgencyID:   key.agencyID,
					AgencyName: locked[key.agencyID].Name,
					SheetType:  key.sheetType,
					Requested:  requested[key],
					Available:  available,
				}
			}
		}

		if s.opts.EnforceCoverage {
			if err := checkCoverage(ctx, repos.Certificates, candidates); err != nil {
				return err
			}
		}

		// 5. Вставка с пропуском занятых номеров и списание
		certs := make([]*domain.Certificate, len(candidates))
		for i, c := range candidates {
			certs[i] = c.cert
		}
		inserted, err := repos.Certificates.CreateMany(ctx, certs)
		if err != nil {
			return err
		}

		charged := requested
		if !s.opts.ChargeSkippedDuplicates {
			charged, _ = aggregate(candidates, insertedSet(inserted))
		}

		result.Charges = result.Charges[:0]
		for _, key := range order {
			amount := charged[key]
			if amount == 0 {
				continue
			}
			if _, err := ledger.Decrement(ctx, repos.Agencies, key.agencyID, key.sheetType, amount); err != nil {
				var stockErr *domain.StockError
				if errors.As(err, &stockErr) {
					exhausted := stockErr.Exhausted()
					exhausted.AgencyName = locked[key.agencyID].Name
					return exhausted
				}
				return err
			}
			result.Charges = append(result.Charges, Charge{
				AgencyID:   key.agencyID,
				AgencyName: locked[key.agencyID].Name,
				SheetType:  key.sheetType,
				Amount:     amount,
			})
		}

		result.Inserted = len(inserted)
		result.Skipped = skipped(result.Attempted, inserted)
		return nil
	})
	if err != nil {
		s.reject(err, len(rows))
		if domain.IsDomain(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to import certificates: %w", err)
	}

	s.metrics.ObserveImport(start, result.Inserted, len(result.Skipped))
	for _, charge := range result.Charges {
		s.metrics.MovedStock(string(charge.SheetType), -charge.Amount)
	}
	s.logger.Info("Certificates imported", map[string]interface{}{
		"rows":     len(rows),
		"inserted": result.Inserted,
		"skipped":  len(result.Skipped),
		"by":       p.UserID,
	})

	return result, nil
}

func (s *Service) reject(err error, rows int) {
	s.metrics.RejectedImport(domain.Kind(err))
	s.logger.Warn("Certificate import rejected", map[string]interface{}{
		"rows":   rows,
		"reason": domain.Kind(err),
		"error":  err.Error(),
	})
}

// validateRows проверяет обязательные поля каждой строки; первая ошибка отменяет пачку
func validateRows(rows []Row, creatorID uuid.UUID) ([]candidate, error) {
	if len(rows) == 0 {
		return nil, domain.InvalidArgument("import contains no rows")
	}

	candidates := make([]candidate, 0, len(rows))
	for i, row := range rows {
		line := row.Line
		if line == 0 {
			line = i + 1
		}

		cert, err := row.certificate(creatorID)
		if err != nil {
			return nil, &domain.RowError{Row: line, Err: err}
		}
		candidates = append(candidates, candidate{line: line, agencyName: row.AgencyName, cert: cert})
	}

	return candidates, nil
}

func (row Row) certificate(creatorID uuid.UUID) (*domain.Certificate, error) {
	switch {
	case row.SheetNumber == "":
		return nil, domain.InvalidArgument("sheet number is required")
	case row.PolicyNumber == "":
		return nil, domain.InvalidArgument("policy number is required")
	case row.Holder == "":
		return nil, domain.InvalidArgument("policyholder name is required")
	case row.AgencyName == "":
		return nil, domain.InvalidArgument("agency name is required")
	case row.SheetType == "":
		return nil, domain.InvalidArgument("sheet type is required")
	}

	sheetNumber, err := strconv.ParseInt(row.SheetNumber, 10, 64)
	if err != nil || sheetNumber <= 0 {
		return nil, domain.InvalidArgument("sheet number must be a positive integer, got %q", row.SheetNumber)
	}
	sheetType, err := domain.ParseSheetType(row.SheetType)
	if err != nil {
		return nil, err
	}
	effective, err := domain.ParseDate(row.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("effective date: %w", err)
	}
	expiry, err := domain.ParseDate(row.ExpiryDate)
	if err != nil {
		return nil, fmt.Errorf("expiry date: %w", err)
	}

	seats := 0
	if row.Seats != "" {
		seats, err = strconv.Atoi(row.Seats)
		if err != nil || seats < 0 {
			return nil, domain.InvalidArgument("seat count must be a non-negative integer, got %q", row.Seats)
		}
	}

	cert := &domain.Certificate{
		CreatorID:     creatorID,
		SheetNumber:   sheetNumber,
		SheetType:     sheetType,
		PolicyNumber:  row.PolicyNumber,
		Holder:        row.Holder,
		Address:       row.Address,
		VehicleID:     row.VehicleID,
		Brand:         row.Brand,
		Usage:         row.Usage,
		Seats:         seats,
		EffectiveDate: effective,
		ExpiryDate:    expiry,
	}
	cert.Normalize()
	return cert, nil
}

// resolveAgencies сопоставляет названия агентствам и проставляет AgencyID кандидатам
func resolveAgencies(ctx context.Context, repo repository.AgencyRepository, candidates []candidate, decision domain.Decision) (map[string]*domain.Agency, error) {
	var names []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		if !seen[c.agencyName] {
			seen[c.agencyName] = true
			names = append(names, c.agencyName)
		}
	}

	agencies, err := repo.GetByNames(ctx, names)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		agency, ok := agencies[c.agencyName]
		if !ok {
			return nil, &domain.RowError{Row: c.line, Err: fmt.Errorf("%w: %q", domain.ErrAgencyNotFound, c.agencyName)}
		}
		if !decision.Permits(agency.ID) {
			return nil, &domain.RowError{Row: c.line, Err: fmt.Errorf("%w: agency %q", domain.ErrForbidden, c.agencyName)}
		}
		c.cert.AgencyID = agency.ID
	}

	return agencies, nil
}

func vehicleIDs(candidates []candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.cert.VehicleID
	}
	return ids
}

func agencyIDs(agencies map[string]*domain.Agency) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(agencies))
	for _, a := range agencies {
		ids = append(ids, a.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// aggregate считает строки по парам (агентство, тип); only != nil ограничивает подсчет
// вставленными номерами. order - детерминированный порядок пар (по первому появлению).
func aggregate(candidates []candidate, only map[int64]bool) (map[pairKey]int, []pairKey) {
	counts := make(map[pairKey]int)
	var order []pairKey
	counted := make(map[int64]bool)

	for _, c := range candidates {
		key := pairKey{agencyID: c.cert.AgencyID, sheetType: c.cert.SheetType}
		if _, ok := counts[key]; !ok {
			counts[key] = 0
			order = append(order, key)
		}
		if only != nil {
			// Номер вставляется не больше одного раза: повтор внутри пачки тоже дубликат
			if !only[c.cert.SheetNumber] || counted[c.cert.SheetNumber] {
				continue
			}
			counted[c.cert.SheetNumber] = true
		}
		counts[key]++
	}

	return counts, order
}

func insertedSet(inserted []int64) map[int64]bool {
	set := make(map[int64]bool, len(inserted))
	for _, n := range inserted {
		set[n] = true
	}
	return set
}

func skipped(attempted, inserted []int64) []int64 {
	remaining := make(map[int64]int)
	for _, n := range inserted {
		remaining[n]++
	}
	out := []int64{}
	for _, n := range attempted {
		if remaining[n] > 0 {
			remaining[n]--
			continue
		}
		out = append(out, n)
	}
	return out
}

// checkCoverage применяет правило покрытия к строкам, которые будут вставлены:
// против уже сохраненных аттестатов и против предыдущих строк той же пачки
func checkCoverage(ctx context.Context, certs repository.CertificateRepository, candidates []candidate) error {
	numbers := make([]int64, len(candidates))
	for i, c := range candidates {
		numbers[i] = c.cert.SheetNumber
	}
	existing, err := certs.ExistingSheetNumbers(ctx, numbers)
	if err != nil {
		return err
	}

	seen := make(map[int64]bool)
	batchExpiry := make(map[string]time.Time)
	for _, c := range candidates {
		number := c.cert.SheetNumber
		if existing[number] || seen[number] {
			continue
		}
		seen[number] = true

		vehicle := c.cert.VehicleID
		if vehicle == "" {
			continue
		}

		if latest, ok := batchExpiry[vehicle]; ok && coverage.Conflicts(latest, c.cert.EffectiveDate) {
			return &domain.RowError{Row: c.line, Err: &domain.CoverageConflictError{VehicleID: vehicle, BlockingExpiry: latest}}
		}
		// Автомобили уже заблокированы в Import
		check, err := coverage.Check(ctx, certs, vehicle, c.cert.EffectiveDate, nil)
		if err != nil {
			return &domain.RowError{Row: c.line, Err: err}
		}
		if err := check.Err(); err != nil {
			return &domain.RowError{Row: c.line, Err: err}
		}

		if latest, ok := batchExpiry[vehicle]; !ok || c.cert.ExpiryDate.After(latest) {
			batchExpiry[vehicle] = c.cert.ExpiryDate
		}
	}

	return nil
}
