// Package sqlite is hiring.Store backed by a sqlite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

// Store keeps hiring state in sqlite. Every transaction starts with
// BEGIN IMMEDIATE, so write transactions never interleave.
type Store struct {
	db *sql.DB
}

func dsn(path string) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "1")
	return fmt.Sprintf("file:%s?%s", path, q.Encode())
}

// Open opens database at path and applies pending migrations
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, errors.Wrapf(err, "can not open database %q", path)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "can not connect to database %q", path)
	}

	if err := newMigrationEngine(db).run(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "can not migrate database")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn in a transaction, committing when fn returns nil
func (s *Store) WithTx(ctx context.Context, fn func(tx hiring.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "can not begin transaction")
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return errors.Wrap(err, "can not commit transaction")
	}
	committed = true
	return nil
}

// translate maps driver errors to hiring store errors
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(hiring.ErrNotFound, op)
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return errors.Wrapf(hiring.ErrConflict, "%s: %v", op, se)
		}
	}
	return errors.Wrap(err, op)
}

// exec runs statement and reports whether it changed at least one row
func (t *tx) exec(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, translate(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, op)
	}
	return n > 0, nil
}

type tx struct {
	tx *sql.Tx
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func boolArg(v *bool) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intArg(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
