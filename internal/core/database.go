// AngelaMos | 2026
// database.go

package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/localmart/localmart/internal/config"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const dbProbeTimeout = 5 * time.Second

// Database is the Postgres pool shared by every repository.
type Database struct {
	DB *sqlx.DB
}

func NewDatabase(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d := &Database{DB: db}
	d.tune(cfg)

	if err := d.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, err
	}
	return d, nil
}

// tune applies pool limits. Lifetimes get up to ~15% jitter so a fleet of
// API processes does not recycle its connections in lockstep.
func (d *Database) tune(cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		d.DB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		d.DB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		//nolint:gosec // G404: jitter only
		jitter := time.Duration(rand.Int64N(int64(cfg.ConnMaxLifetime/7) + 1))
		d.DB.SetConnMaxLifetime(cfg.ConnMaxLifetime + jitter)
	}
	d.DB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// WrapDB adapts an existing *sql.DB, typically a sqlmock handle in tests.
func WrapDB(db *sql.DB) *Database {
	return &Database{DB: sqlx.NewDb(db, "pgx")}
}

func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbProbeTimeout)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (d *Database) Stats() sql.DBStats {
	return d.DB.Stats()
}

func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx, so repository reads can
// run inside or outside a checkout transaction.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// InTx runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise (including on panic).
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback() //nolint:errcheck
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MapError converts driver errors into the package sentinels so handlers can
// branch with errors.Is. op prefixes the wrapped message.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrDuplicateKey)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrInvalidInput)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// RequireRows reports ErrNotFound when an UPDATE or DELETE matched nothing.
func RequireRows(op string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
