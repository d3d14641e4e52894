// Package postgres is the PostgreSQL storage backend. It talks to the
// database through sqlx over the pgx stdlib driver and ships its schema as
// embedded goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/internal/storage/postgres/migrations"
)

const uniqueViolation = "23505"

// DB wraps a sqlx handle and implements the principal store. Token
// repositories are exposed through RefreshTokens and ResetTokens.
type DB struct {
	db *sqlx.DB
}

// New wraps an existing handle.
func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (d *DB) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, d.db.DB, ".")
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// withTx begins a transaction, runs fn, then commits on success or rolls
// back on error or panic. Panics are rethrown.
func (d *DB) withTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) (err error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "principals_email_key":
			return models.ErrEmailConflict
		case "principals_username_key":
			return models.ErrUsernameConflict
		default:
			return fmt.Errorf("%w: %s", models.ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("error performing sql request: %w", err)
}
