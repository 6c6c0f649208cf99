// Package sqlite provides a SQLite implementation of settings.Store.
//
// Examples:
//
//	store := sqlite.New("file:driverhub.db")
//	store := sqlite.New(":memory:", sqlite.WithTableName("settings"))
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/settings"
	"github.com/mattn/go-sqlite3"
	"google.golang.org/grpc/codes"
)

// DefaultTableName is used unless WithTableName is given.
const DefaultTableName = "driverhub_settings"

// Option is a functional option for configuring the store.
type Option func(*store)

// WithTableName overrides the default table name.
func WithTableName(tableName string) Option {
	return func(s *store) {
		s.tableName = tableName
	}
}

// New returns a sqlite backed store, creating the table if needed. Any error
// is considered non-recoverable and will panic; use SafeNew to handle it.
func New(conn string, opts ...Option) settings.Store {
	s, err := SafeNew(conn, opts...)
	if err != nil {
		panic(err.Error())
	}
	return s
}

// SafeNew is like New but returns errors instead of panicking.
func SafeNew(conn string, opts ...Option) (settings.Store, error) {
	db, err := sql.Open("sqlite3", conn)
	if err != nil {
		return nil, errors.WrapPrefix(err, "failed to open sqlite connection", 0)
	}
	// A ":memory:" database exists per connection.
	db.SetMaxOpenConns(1)

	s := &store{db: db, tableName: DefaultTableName}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureTable(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

type store struct {
	db        *sql.DB
	tableName string
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM "+s.tableName+" WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", translateError(err)
	}
	return value, nil
}

func (s *store) Set(ctx context.Context, key, value string) error {
	if err := settings.ValidateKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.tableName+" (key, value) VALUES (?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP",
		key, value)
	return translateError(err)
}

func (s *store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+s.tableName+" WHERE key = ?", key)
	return translateError(err)
}

func (s *store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM "+s.tableName+" WHERE key LIKE ? ESCAPE '\\' ORDER BY key",
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, translateError(err)
		}
		keys = append(keys, k)
	}
	return keys, translateError(rows.Err())
}

func (s *store) ensureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.tableName+` (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return errors.WrapPrefix(err, "failed to create settings table", 0)
	}
	return nil
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Mark(settings.ErrNotFound, 1)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errors.WithCode(err, codes.Unavailable)
		case sqlite3.ErrReadonly:
			return errors.WithCode(err, codes.FailedPrecondition)
		}
	}
	return errors.MaybeWrap(err, 1)
}
