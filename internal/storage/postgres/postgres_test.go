package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/internal/stores"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return New(sqlx.NewDb(raw, "pgx")), mock
}

func TestCreatePrincipalMapsUniqueViolations(t *testing.T) {
	cases := map[string]error{
		"principals_email_key":    models.ErrEmailConflict,
		"principals_username_key": models.ErrUsernameConflict,
	}
	for constraint, want := range cases {
		t.Run(constraint, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec(`(?s)^INSERT\s+INTO\s+principals\b`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraint})

			err := db.CreatePrincipal(context.Background(), &models.Principal{ID: "id", Username: "u", Email: "e"})
			assert.ErrorIs(t, err, want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreatePrincipalSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+principals\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8\)`).
		WithArgs("id-1", "alice", "alice@example.com", "hash", true, false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.CreatePrincipal(context.Background(), &models.Principal{
		ID: "id-1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash",
		Enabled: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPrincipalByEmailNormalises(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "enabled", "locked", "created_at", "updated_at"}).
		AddRow("id-1", "alice", "alice@example.com", "hash", true, false, now, now)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+principals\s+WHERE\s+email\s*=\s*\$1`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	p, err := db.FindPrincipalByEmail(context.Background(), "  Alice@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "id-1", p.ID)
	assert.True(t, p.Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPrincipalByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM\s+principals\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := db.FindPrincipalByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEmailExists(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WithArgs("bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := db.EmailExists(context.Background(), "BOB@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetLockedNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE\s+principals\s+SET\s+locked`).
		WithArgs("ghost", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.SetLocked(context.Background(), "ghost", true, time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeletePrincipal(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`DELETE\s+FROM\s+principals\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+principals`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.DeletePrincipal(context.Background(), "p1"))
	assert.ErrorIs(t, db.DeletePrincipal(context.Background(), "ghost"), models.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithPrincipalLockTakesAdvisoryLockAndCommits(t *testing.T) {
	db, mock := newMockDB(t)
	exp := time.Now().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT\s+pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM\s+refresh_tokens\s+WHERE\s+principal_id\s*=\s*\$1`).
		WithArgs("p1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WithArgs("tok", "p1", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.RefreshTokens().WithPrincipalLock(context.Background(), "p1", func(ctx context.Context, q stores.RefreshQueries) error {
		_, err := q.FindByPrincipal(ctx, "p1")
		require.ErrorIs(t, err, models.ErrNotFound)
		return q.Insert(ctx, &models.RefreshToken{Token: "tok", PrincipalID: "p1", ExpiryDate: exp})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithPrincipalLockRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := db.RefreshTokens().WithPrincipalLock(context.Background(), "p1", func(context.Context, stores.RefreshQueries) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshDeleteByTokenMissing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.RefreshTokens().DeleteByToken(context.Background(), "gone")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRefreshDeleteExpiredBefore(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectExec(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expiry_date\s*<\s*\$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := db.RefreshTokens().DeleteExpiredBefore(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestResetMarkUsedIsConditional(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)UPDATE\s+password_reset_tokens\s+SET\s+used\s*=\s*TRUE.*used\s*=\s*FALSE\s+AND\s+expiry_date\s*>\s*\$2.*RETURNING\s+principal_id`).
		WithArgs("hash", now).
		WillReturnRows(sqlmock.NewRows([]string{"principal_id"}))
	mock.ExpectRollback()

	err := db.ResetTokens().WithinTx(context.Background(), func(ctx context.Context, q stores.ResetQueries) error {
		_, err := q.MarkUsed(ctx, "hash", now)
		return err
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetConsumeTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE\s+password_reset_tokens`).
		WithArgs("hash", now).
		WillReturnRows(sqlmock.NewRows([]string{"principal_id"}).AddRow("p1"))
	mock.ExpectExec(`UPDATE\s+principals\s+SET\s+password_hash`).
		WithArgs("p1", "new-hash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.ResetTokens().WithinTx(context.Background(), func(ctx context.Context, q stores.ResetQueries) error {
		id, err := q.MarkUsed(ctx, "hash", now)
		if err != nil {
			return err
		}
		return q.UpdatePasswordHash(ctx, id, "new-hash", now)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetLockPrincipalMissing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+id\s+FROM\s+principals\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := db.ResetTokens().WithinTx(context.Background(), func(ctx context.Context, q stores.ResetQueries) error {
		return q.LockPrincipal(ctx, "ghost")
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrapErrKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := wrapErr(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "error performing sql request")
	assert.Nil(t, wrapErr(nil))
}

func TestRunMigrationsUsesEmbeddedFS(t *testing.T) {
	db, _ := newMockDB(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, db.RunMigrations(context.Background()))
	assert.Equal(t, ".", gotDir)
}
