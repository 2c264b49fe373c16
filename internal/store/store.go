// Package store persists buildings, templates, compliance checks and
// template-bound records. Queries are built with ent's dialect-aware SQL
// builder so the same code runs against SQLite and Postgres. Every query is
// scoped by tenant: a row owned by another tenant is reported as ErrNotFound.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/compliance/internal/types"
)

var (
	// ErrNotFound is returned when a row does not exist for the tenant.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write collides with an existing row.
	ErrConflict = errors.New("conflict")
	// ErrKeyInUse is returned when a template save would drop a field key
	// that stored records still reference.
	ErrKeyInUse = errors.New("template key in use")
)

// DB wraps a database handle with the SQL dialect used to build queries.
type DB struct {
	db      *sql.DB
	dialect string
	logger  *zap.Logger
	now     func() time.Time
}

// Open connects to the database. driver is "sqlite" (modernc) or "postgres"
// (lib/pq).
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*DB, error) {
	var dia string
	switch driver {
	case "", "sqlite", "sqlite3":
		driver, dia = "sqlite", dialect.SQLite
	case "postgres":
		dia = dialect.Postgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dia == dialect.SQLite {
		// SQLite allows a single writer; the pragma is per connection.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return New(db, dia, logger), nil
}

// New wraps an open handle. dialectName is one of entgo.io/ent/dialect's names.
func New(db *sql.DB, dialectName string, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{
		db:      db,
		dialect: dialectName,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SQL exposes the underlying handle.
func (d *DB) SQL() *sql.DB { return d.db }

// Dialect returns the ent dialect name.
func (d *DB) Dialect() string { return d.dialect }

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) q() *entsql.DialectBuilder { return entsql.Dialect(d.dialect) }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// execOne runs a write that must touch exactly one row.
func execOne(ctx context.Context, q querier, query string, args []any) error {
	res, err := q.ExecContext(ctx, query, args...)
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

func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func newID() string { return uuid.New().String() }

// auditColumns are appended to every insert, in table order.
var auditColumns = []string{"created_at", "updated_at", "created_by", "updated_by", "source", "correlation_id"}

func auditValues(a types.Audit, now time.Time) []any {
	return []any{now, now, a.Actor, a.Actor, auditSource(a), nullString(a.CorrelationID)}
}

func auditSource(a types.Audit) string {
	if a.Source == "" {
		return "user"
	}
	return a.Source
}

// setAudit stamps the update side of the audit columns.
func setAudit(u *entsql.UpdateBuilder, a types.Audit, now time.Time) *entsql.UpdateBuilder {
	u.Set("updated_at", now).
		Set("updated_by", a.Actor).
		Set("source", auditSource(a))
	if a.CorrelationID != nil {
		u.Set("correlation_id", *a.CorrelationID)
	}
	return u
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func limitOrDefault(p types.Page) types.Page {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
