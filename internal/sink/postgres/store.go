// Package postgres mirrors result records into a Postgres table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
)

const defaultTable = "harvest_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	RunID           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store inserts one row per appended record:
//
//	CREATE TABLE harvest_records (
//		run_id      text        NOT NULL,
//		destination text        NOT NULL,
//		city_code   text        NOT NULL,
//		payload     jsonb       NOT NULL,
//		recorded_at timestamptz NOT NULL DEFAULT now()
//	);
type Store struct {
	pool  execCloser
	table string
	runID string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(pool, cfg.Table, cfg.RunID)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table, runID string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table, runID: runID}, nil
}

// Append inserts record as a JSONB payload tagged with destination.
func (s *Store) Append(ctx context.Context, destination string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w: %w", harvest.ErrSink, err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (run_id, destination, city_code, payload) VALUES ($1, $2, $3, $4)`,
		s.table,
	)
	if _, err := s.pool.Exec(ctx, query, s.runID, destination, cityCode(record), payload); err != nil {
		return fmt.Errorf("insert into %s: %w: %w", s.table, harvest.ErrSink, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func cityCode(record any) string {
	switch r := record.(type) {
	case harvest.ResultRecord:
		return r.CityCode
	case harvest.CitySummary:
		return r.CityCode
	default:
		return ""
	}
}
