package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frontandrew/attestation/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTxTimeout = 10 * time.Second

// DBTX - общий интерфейс пула и транзакции, репозитории не знают, с чем работают
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store - PostgreSQL реализация repository.Store
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewStore создает хранилище поверх пула подключений
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, timeout: defaultTxTimeout}
}

// Repositories возвращает репозитории, работающие в режиме autocommit
func (s *Store) Repositories() repository.Repositories {
	return newRepositories(s.pool)
}

// RunInTx выполняет fn в транзакции READ COMMITTED.
// Все проверки "прочитал-решил-записал" внутри fn опираются на блокировки строк
// (SELECT ... FOR UPDATE, advisory lock) и ограничения схемы.
func (s *Store) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.Background())
			panic(p)
		}
	}()

	if err := fn(newRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func newRepositories(db DBTX) repository.Repositories {
	return repository.Repositories{
		Users:        NewUserRepository(db),
		Agencies:     NewAgencyRepository(db),
		Certificates: NewCertificateRepository(db),
	}
}

// Коды ошибок PostgreSQL
const (
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeForeignKeyViolation = "23503"
)

// pgErrorCode возвращает SQLSTATE и имя ограничения, если ошибка пришла от сервера
func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error, constraint string) bool {
	code, name := pgErrorCode(err)
	return code == codeUniqueViolation && (constraint == "" || name == constraint)
}
