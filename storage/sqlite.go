package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const rockstarColumns = "id, first_name, last_name, age, alive"

// SQLiteBackend stores rockstars in a SQLite table.
// Ids come from the table's AUTOINCREMENT sequence and the age
// index is a plain SQL index.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLiteBackend creates or opens the database at path and applies
// the schema. It is safe to call on an existing database.
func OpenSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Get(ctx context.Context, id int) (*Rockstar, error) {
	row := b.db.QueryRowContext(ctx,
		"SELECT "+rockstarColumns+" FROM rockstars WHERE id = ?", id)

	r, err := scanRockstar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func (b *SQLiteBackend) ScanAll(ctx context.Context) ([]Rockstar, error) {
	return b.query(ctx, "SELECT "+rockstarColumns+" FROM rockstars ORDER BY id")
}

func (b *SQLiteBackend) ScanIDs(ctx context.Context) ([]int, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT id FROM rockstars ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (b *SQLiteBackend) QueryByAge(ctx context.Context, age int) ([]Rockstar, error) {
	return b.query(ctx,
		"SELECT "+rockstarColumns+" FROM rockstars WHERE age = ? ORDER BY id", age)
}

func (b *SQLiteBackend) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rockstars").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, r *Rockstar) error {
	id, err := putRockstar(ctx, b.db, *r)
	if err != nil {
		return err
	}

	r.ID = id
	return nil
}

func (b *SQLiteBackend) PutMany(ctx context.Context, rs []Rockstar) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// explicit ids go first so AUTOINCREMENT hands out ids past them
	for _, explicit := range []bool{true, false} {
		for _, r := range rs {
			if (r.ID != 0) != explicit {
				continue
			}
			if _, err := putRockstar(ctx, tx, r); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (b *SQLiteBackend) DeleteMany(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := b.db.ExecContext(ctx,
		"DELETE FROM rockstars WHERE id IN ("+placeholders+")", args...)
	return err
}

func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLiteBackend) query(ctx context.Context, query string, args ...any) ([]Rockstar, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Rockstar
	for rows.Next() {
		r, err := scanRockstar(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}

	return res, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// putRockstar replaces the whole row. A zero id is sent as NULL so
// SQLite assigns the next value of the sequence.
func putRockstar(ctx context.Context, db execer, r Rockstar) (int, error) {
	var id any
	if r.ID != 0 {
		id = r.ID
	}

	res, err := db.ExecContext(ctx,
		"INSERT OR REPLACE INTO rockstars ("+rockstarColumns+") VALUES (?, ?, ?, ?, ?)",
		id, r.FirstName, r.LastName, r.Age, r.Alive)
	if err != nil {
		return 0, err
	}

	if r.ID != 0 {
		return r.ID, nil
	}

	newID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	return int(newID), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRockstar(row rowScanner) (Rockstar, error) {
	var r Rockstar
	err := row.Scan(&r.ID, &r.FirstName, &r.LastName, &r.Age, &r.Alive)
	return r, err
}
