package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userSelect = `
	SELECT u.id, u.email, u.password_hash, u.name, u.role, u.agency_id, COALESCE(a.name, ''),
	       u.is_active, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN agencies a ON a.id = u.agency_id
`

// userRepository - PostgreSQL реализация UserRepository
type userRepository struct {
	db DBTX
}

// NewUserRepository создает новый экземпляр userRepository
func NewUserRepository(db DBTX) repository.UserRepository {
	return &userRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.AgencyID,
		&user.AgencyName,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, role, agency_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.AgencyID,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintUserEmail) {
			return domain.ErrUserAlreadyExists
		}
		if code, _ := pgErrorCode(err); code == codeForeignKeyViolation {
			return domain.ErrAgencyNotFound
		}
		return err
	}

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, userSelect+` WHERE u.email = $1`, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, password_hash = $3, name = $4, role = $5, agency_id = $6, is_active = $7, updated_at = $8
		WHERE id = $1
	`

	user.UpdatedAt = time.Now()

	result, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.AgencyID,
		user.IsActive,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintUserEmail) {
			return domain.ErrUserAlreadyExists
		}
		if code, _ := pgErrorCode(err); code == codeForeignKeyViolation {
			return domain.ErrAgencyNotFound
		}
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *userRepository) List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int, error) {
	b := &whereBuilder{}
	if filter.Role != "" {
		b.add("u.role = " + b.arg(filter.Role))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := b.arg("%" + term + "%")
		b.add("(u.name ILIKE " + like + " OR u.email ILIKE " + like + ")")
	}
	where := b.sql()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users u`+where, b.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := userSelect + where + ` ORDER BY u.created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, b.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, total, rows.Err()
}

func (r *userRepository) CountByAgency(ctx context.Context, agencyID uuid.UUID) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE agency_id = $1`, agencyID).Scan(&total)
	return total, err
}
