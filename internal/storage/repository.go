// Package storage implements the remote relational backend on SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	applog "finanzen/internal/log"
	"finanzen/internal/remote"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

// Ensure interface conformance
var _ remote.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection serializes writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// expectOne turns an update or delete that matched nothing into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ErrNotFound is returned when an update or delete targets a missing row.
var ErrNotFound = remote.ErrNotFound

// Onboarding and profile

func (r *SQLiteRepository) GetOnboarding(ctx context.Context, userID string) (*remote.Onboarding, error) {
	o := remote.Onboarding{UserID: userID}
	err := r.db.QueryRowContext(ctx, `SELECT completed FROM onboarding WHERE user_id = ?`, userID).Scan(&o.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get onboarding: %w", err)
	}
	return &o, nil
}

func (r *SQLiteRepository) CreateOnboarding(ctx context.Context, o remote.Onboarding) error {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO onboarding (user_id, completed) VALUES (?, ?)`, o.UserID, o.Completed); err != nil {
		return fmt.Errorf("create onboarding: %w", err)
	}
	logger(ctx).InfoContext(ctx, "Onboarding record created", "user_id", o.UserID)
	return nil
}

func (r *SQLiteRepository) UpdateOnboarding(ctx context.Context, o remote.Onboarding) error {
	err := expectOne(r.db.ExecContext(ctx, `UPDATE onboarding SET completed = ? WHERE user_id = ?`, o.Completed, o.UserID))
	if err != nil {
		return fmt.Errorf("update onboarding: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (*remote.Profile, error) {
	p := remote.Profile{UserID: userID}
	err := r.db.QueryRowContext(ctx, `SELECT currency FROM profiles WHERE user_id = ?`, userID).Scan(&p.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (r *SQLiteRepository) UpsertProfile(ctx context.Context, p remote.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, currency) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET currency = excluded.currency`, p.UserID, p.Currency)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every row owned by userID in one transaction.
func (r *SQLiteRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete all: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM goal_contributions WHERE goal_id IN (SELECT id FROM goals WHERE user_id = ?)`,
		`DELETE FROM transactions WHERE user_id = ?`,
		`DELETE FROM budgets WHERE user_id = ?`,
		`DELETE FROM goals WHERE user_id = ?`,
		`DELETE FROM income_sources WHERE user_id = ?`,
		`DELETE FROM fixed_expenses WHERE user_id = ?`,
		`DELETE FROM profiles WHERE user_id = ?`,
		`DELETE FROM onboarding WHERE user_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			return fmt.Errorf("delete user data: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete all: %w", err)
	}

	logger(ctx).InfoContext(ctx, "Deleted all user data", "user_id", userID)
	return nil
}

func logger(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentStorage)
}
