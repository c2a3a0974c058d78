package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const certificateSelect = `
	SELECT c.id, c.agency_id, c.creator_id, c.sheet_number, c.sheet_type, c.policy_number, c.holder,
	       c.address, c.vehicle_id, c.brand, c.usage, c.seats, c.effective_date, c.expiry_date,
	       c.created_at, c.edited_at, a.name, a.phone, COALESCE(u.name, '')
	FROM certificates c
	JOIN agencies a ON a.id = c.agency_id
	LEFT JOIN users u ON u.id = c.creator_id
`

const certificateInsert = `
	INSERT INTO certificates (id, agency_id, creator_id, sheet_number, sheet_type, policy_number, holder,
	                          address, vehicle_id, brand, usage, seats, effective_date, expiry_date,
	                          created_at, edited_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

// certificateRepository - PostgreSQL реализация CertificateRepository
type certificateRepository struct {
	db DBTX
}

// NewCertificateRepository создает новый экземпляр certificateRepository
func NewCertificateRepository(db DBTX) repository.CertificateRepository {
	return &certificateRepository{db: db}
}

func scanCertificate(row pgx.Row) (*domain.Certificate, error) {
	c := &domain.Certificate{}
	err := row.Scan(
		&c.ID,
		&c.AgencyID,
		&c.CreatorID,
		&c.SheetNumber,
		&c.SheetType,
		&c.PolicyNumber,
		&c.Holder,
		&c.Address,
		&c.VehicleID,
		&c.Brand,
		&c.Usage,
		&c.Seats,
		&c.EffectiveDate,
		&c.ExpiryDate,
		&c.CreatedAt,
		&c.EditedAt,
		&c.AgencyName,
		&c.AgencyPhone,
		&c.CreatorName,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// prepareInsert присваивает ID и метки времени, возвращает аргументы INSERT
func prepareInsert(cert *domain.Certificate) []any {
	if cert.ID == uuid.Nil {
		cert.ID = uuid.New()
	}
	now := time.Now()
	cert.CreatedAt = now
	cert.EditedAt = now

	return []any{
		cert.ID,
		cert.AgencyID,
		cert.CreatorID,
		cert.SheetNumber,
		cert.SheetType,
		cert.PolicyNumber,
		cert.Holder,
		cert.Address,
		cert.VehicleID,
		cert.Brand,
		cert.Usage,
		cert.Seats,
		cert.EffectiveDate,
		cert.ExpiryDate,
		cert.CreatedAt,
		cert.EditedAt,
	}
}

func (r *certificateRepository) Create(ctx context.Context, cert *domain.Certificate) error {
	_, err := r.db.Exec(ctx, certificateInsert, prepareInsert(cert)...)
	if err != nil {
		if isUniqueViolation(err, constraintSheetNumber) {
			return fmt.Errorf("%w: %d", domain.ErrDuplicateSheetNumber, cert.SheetNumber)
		}
		if code, _ := pgErrorCode(err); code == codeForeignKeyViolation {
			return domain.ErrAgencyNotFound
		}
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	return nil
}

func (r *certificateRepository) CreateMany(ctx context.Context, certs []*domain.Certificate) ([]int64, error) {
	if len(certs) == 0 {
		return nil, nil
	}

	query := certificateInsert + ` ON CONFLICT (sheet_number) DO NOTHING RETURNING sheet_number`

	batch := &pgx.Batch{}
	for _, cert := range certs {
		batch.Queue(query, prepareInsert(cert)...)
	}

	results := r.db.SendBatch(ctx, batch)

	inserted := make([]int64, 0, len(certs))
	var batchErr error
	for range certs {
		var number int64
		err := results.QueryRow().Scan(&number)
		if errors.Is(err, pgx.ErrNoRows) {
			// Номер уже занят - строка пропущена
			continue
		}
		if err != nil {
			batchErr = fmt.Errorf("failed to insert certificate batch: %w", err)
			break
		}
		inserted = append(inserted, number)
	}

	if err := results.Close(); err != nil && batchErr == nil {
		batchErr = fmt.Errorf("failed to close certificate batch: %w", err)
	}
	if batchErr != nil {
		return nil, batchErr
	}

	return inserted, nil
}

func (r *certificateRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Certificate, error) {
	cert, err := scanCertificate(r.db.QueryRow(ctx, certificateSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCertificateNotFound
		}
		return nil, err
	}

	return cert, nil
}

func (r *certificateRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Certificate, error) {
	return r.List(ctx, domain.CertificateFilter{
		Predicates: []domain.Predicate{domain.IDIn{IDs: ids}},
		SortBy:     domain.SortSheetNumber,
	})
}

func (r *certificateRepository) Update(ctx context.Context, cert *domain.Certificate) error {
	query := `
		UPDATE certificates
		SET agency_id = $2, sheet_type = $3, policy_number = $4, holder = $5, address = $6,
		    vehicle_id = $7, brand = $8, usage = $9, seats = $10, effective_date = $11,
		    expiry_date = $12, edited_at = $13
		WHERE id = $1
	`

	cert.EditedAt = time.Now()

	result, err := r.db.Exec(ctx, query,
		cert.ID,
		cert.AgencyID,
		cert.SheetType,
		cert.PolicyNumber,
		cert.Holder,
		cert.Address,
		cert.VehicleID,
		cert.Brand,
		cert.Usage,
		cert.Seats,
		cert.EffectiveDate,
		cert.ExpiryDate,
		cert.EditedAt,
	)
	if err != nil {
		if code, _ := pgErrorCode(err); code == codeForeignKeyViolation {
			return domain.ErrAgencyNotFound
		}
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrCertificateNotFound
	}

	return nil
}

func (r *certificateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrCertificateNotFound
	}

	return nil
}

func (r *certificateRepository) List(ctx context.Context, filter domain.CertificateFilter) ([]*domain.Certificate, error) {
	where, args, err := buildCertificateWhere(filter)
	if err != nil {
		return nil, err
	}

	query := certificateSelect + where + buildOrderBy(filter)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	certs := []*domain.Certificate{}
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}

	return certs, rows.Err()
}

func (r *certificateRepository) Count(ctx context.Context, filter domain.CertificateFilter) (int, error) {
	where, args, err := buildCertificateWhere(filter)
	if err != nil {
		return 0, err
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM certificates c`+where, args...).Scan(&total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

func (r *certificateRepository) CountByAgency(ctx context.Context, agencyID uuid.UUID) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM certificates WHERE agency_id = $1`, agencyID).Scan(&total)
	return total, err
}

func (r *certificateRepository) LatestExpiry(ctx context.Context, vehicleID string, exclude *uuid.UUID) (time.Time, bool, error) {
	query := `SELECT MAX(expiry_date) FROM certificates WHERE vehicle_id = $1`
	args := []any{vehicleID}
	if exclude != nil {
		query += ` AND id <> $2`
		args = append(args, *exclude)
	}

	var latest *time.Time
	if err := r.db.QueryRow(ctx, query, args...).Scan(&latest); err != nil {
		return time.Time{}, false, err
	}
	if latest == nil {
		return time.Time{}, false, nil
	}

	return *latest, true, nil
}

func (r *certificateRepository) LockVehicle(ctx context.Context, vehicleID string) error {
	// Блокировка живет до конца транзакции; вне транзакции снимается сразу
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to lock vehicle %s: %w", vehicleID, err)
	}
	return nil
}

func (r *certificateRepository) ExistingSheetNumbers(ctx context.Context, numbers []int64) (map[int64]bool, error) {
	existing := make(map[int64]bool)
	if len(numbers) == 0 {
		return existing, nil
	}

	rows, err := r.db.Query(ctx, `SELECT sheet_number FROM certificates WHERE sheet_number = ANY($1)`, numbers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		existing[n] = true
	}

	return existing, rows.Err()
}
