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

const agencyColumns = `id, name, code, address, email, phone, stock_yellow, stock_red, stock_green, created_at, updated_at`

// agencyRepository - PostgreSQL реализация AgencyRepository
type agencyRepository struct {
	db DBTX
}

// NewAgencyRepository создает новый экземпляр agencyRepository
func NewAgencyRepository(db DBTX) repository.AgencyRepository {
	return &agencyRepository{db: db}
}

func scanAgency(row pgx.Row) (*domain.Agency, error) {
	a := &domain.Agency{}
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Code,
		&a.Address,
		&a.Email,
		&a.Phone,
		&a.Stock.Yellow,
		&a.Stock.Red,
		&a.Stock.Green,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *agencyRepository) Create(ctx context.Context, agency *domain.Agency) error {
	query := `
		INSERT INTO agencies (` + agencyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if agency.ID == uuid.Nil {
		agency.ID = uuid.New()
	}
	agency.CreatedAt = time.Now()
	agency.UpdatedAt = agency.CreatedAt

	_, err := r.db.Exec(ctx, query,
		agency.ID,
		agency.Name,
		agency.Code,
		agency.Address,
		agency.Email,
		agency.Phone,
		agency.Stock.Yellow,
		agency.Stock.Red,
		agency.Stock.Green,
		agency.CreatedAt,
		agency.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintAgencyName) {
			return domain.ErrAgencyAlreadyExists
		}
		return fmt.Errorf("failed to create agency: %w", err)
	}

	return nil
}

func (r *agencyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error) {
	query := `SELECT ` + agencyColumns + ` FROM agencies WHERE id = $1`

	agency, err := scanAgency(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgencyNotFound
		}
		return nil, err
	}

	return agency, nil
}

func (r *agencyRepository) GetByNames(ctx context.Context, names []string) (map[string]*domain.Agency, error) {
	query := `SELECT ` + agencyColumns + ` FROM agencies WHERE name = ANY($1)`

	rows, err := r.db.Query(ctx, query, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*domain.Agency, len(names))
	for rows.Next() {
		agency, err := scanAgency(rows)
		if err != nil {
			return nil, err
		}
		result[agency.Name] = agency
	}

	return result, rows.Err()
}

func (r *agencyRepository) List(ctx context.Context, scope *uuid.UUID) ([]*domain.Agency, error) {
	query := `SELECT ` + agencyColumns + ` FROM agencies`
	var args []any
	if scope != nil {
		query += ` WHERE id = $1`
		args = append(args, *scope)
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agencies := []*domain.Agency{}
	for rows.Next() {
		agency, err := scanAgency(rows)
		if err != nil {
			return nil, err
		}
		agencies = append(agencies, agency)
	}

	return agencies, rows.Err()
}

func (r *agencyRepository) Update(ctx context.Context, agency *domain.Agency) error {
	query := `
		UPDATE agencies
		SET name = $2, code = $3, address = $4, email = $5, phone = $6, updated_at = $7
		WHERE id = $1
	`

	agency.UpdatedAt = time.Now()

	result, err := r.db.Exec(ctx, query,
		agency.ID,
		agency.Name,
		agency.Code,
		agency.Address,
		agency.Email,
		agency.Phone,
		agency.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintAgencyName) {
			return domain.ErrAgencyAlreadyExists
		}
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAgencyNotFound
	}

	return nil
}

func (r *agencyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM agencies WHERE id = $1`, id)
	if err != nil {
		if code, _ := pgErrorCode(err); code == codeForeignKeyViolation {
			return domain.ErrAgencyInUse
		}
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAgencyNotFound
	}

	return nil
}

func (r *agencyRepository) GetStock(ctx context.Context, id uuid.UUID) (domain.Stock, error) {
	query := `SELECT stock_yellow, stock_red, stock_green FROM agencies WHERE id = $1`

	var s domain.Stock
	err := r.db.QueryRow(ctx, query, id).Scan(&s.Yellow, &s.Red, &s.Green)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stock{}, domain.ErrAgencyNotFound
		}
		return domain.Stock{}, err
	}

	return s, nil
}

func (r *agencyRepository) LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Agency, error) {
	query := `SELECT ` + agencyColumns + ` FROM agencies WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := r.db.Query(ctx, query, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locked := make(map[uuid.UUID]*domain.Agency, len(ids))
	for rows.Next() {
		agency, err := scanAgency(rows)
		if err != nil {
			return nil, err
		}
		locked[agency.ID] = agency
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrAgencyNotFound, id)
		}
	}

	return locked, nil
}

// stockColumn - белый список колонок остатков
func stockColumn(t domain.SheetType) (string, error) {
	switch t {
	case domain.SheetYellow:
		return "stock_yellow", nil
	case domain.SheetRed:
		return "stock_red", nil
	case domain.SheetGreen:
		return "stock_green", nil
	}
	return "", domain.InvalidArgument("unknown sheet type %q", t)
}

func (r *agencyRepository) AdjustStock(ctx context.Context, id uuid.UUID, sheetType domain.SheetType, delta int) (domain.Stock, error) {
	column, err := stockColumn(sheetType)
	if err != nil {
		return domain.Stock{}, err
	}

	// Условие в WHERE повторяет CHECK: при гонке UPDATE перечитывает строку и не применится.
	// Сумма считается в bigint, чтобы переполнение INTEGER не превращалось в ошибку SQL.
	query := fmt.Sprintf(`
		UPDATE agencies
		SET %[1]s = %[1]s + $2, updated_at = NOW()
		WHERE id = $1 AND %[1]s::bigint + $2 BETWEEN 0 AND $3
		RETURNING stock_yellow, stock_red, stock_green
	`, column)

	var s domain.Stock
	err = r.db.QueryRow(ctx, query, id, int64(delta), int64(domain.MaxStock)).Scan(&s.Yellow, &s.Red, &s.Green)
	if err == nil {
		return s, nil
	}

	code, _ := pgErrorCode(err)
	if !errors.Is(err, pgx.ErrNoRows) && code != codeCheckViolation {
		return domain.Stock{}, err
	}

	// Строка не обновлена: агентства нет, не хватает бланков или превышен предел
	current, getErr := r.GetStock(ctx, id)
	if getErr != nil {
		return domain.Stock{}, getErr
	}
	if delta > 0 {
		return current, domain.StockOverflow(sheetType, current.Get(sheetType), delta)
	}

	return current, &domain.StockError{
		Kind:      domain.ErrInsufficientStock,
		AgencyID:  id,
		SheetType: sheetType,
		Requested: -delta,
		Available: current.Get(sheetType),
	}
}
