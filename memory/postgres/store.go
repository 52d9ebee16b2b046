// Package postgres keeps crew long-term memory in a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KamdynS/property-crew/memory"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements memory.LongTermStore. Addresses are matched
// case-insensitively after trimming.
type Store struct {
	db    DB
	table string
}

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Connect opens a pool for url and verifies it.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// New returns a store over db using table (default "crew_memory").
func New(db DB, table string) (*Store, error) {
	if table == "" {
		table = "crew_memory"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{db: db, table: table}, nil
}

// EnsureSchema creates the table and its lookup index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	address TEXT NOT NULL,
	task TEXT NOT NULL,
	agent TEXT NOT NULL DEFAULT '',
	output TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_lookup ON %s (address, task, created_at DESC)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Save implements memory.LongTermStore interface
func (s *Store) Save(ctx context.Context, rec memory.Record) error {
	var err error
	if rec.CreatedAt.IsZero() {
		_, err = s.db.Exec(ctx,
			fmt.Sprintf("INSERT INTO %s (address, task, agent, output) VALUES ($1, $2, $3, $4)", s.table),
			normalize(rec.Address), rec.Task, rec.Agent, rec.Output)
	} else {
		_, err = s.db.Exec(ctx,
			fmt.Sprintf("INSERT INTO %s (address, task, agent, output, created_at) VALUES ($1, $2, $3, $4, $5)", s.table),
			normalize(rec.Address), rec.Task, rec.Agent, rec.Output, rec.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

// Latest implements memory.LongTermStore interface
func (s *Store) Latest(ctx context.Context, address, task string) (*memory.Record, error) {
	row := s.db.QueryRow(ctx,
		fmt.Sprintf("SELECT address, task, agent, output, created_at FROM %s WHERE address = $1 AND task = $2 ORDER BY created_at DESC, id DESC LIMIT 1", s.table),
		normalize(address), task)
	var rec memory.Record
	if err := row.Scan(&rec.Address, &rec.Task, &rec.Agent, &rec.Output, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, memory.ErrNotFound
		}
		return nil, fmt.Errorf("load memory: %w", err)
	}
	return &rec, nil
}

var _ memory.LongTermStore = (*Store)(nil)
