// Package postgres provides a Postgres sink for chart rows.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storecrawl/topcharts/internal/report"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RowStoreConfig controls the Postgres connection pool used for chart rows.
type RowStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RowStore writes chart rows into Postgres.
type RowStore struct {
	pool  execCloser
	table string
}

// NewRowStore creates a Postgres-backed RowStore using the provided config.
func NewRowStore(ctx context.Context, cfg RowStoreConfig) (*RowStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "chart_rows"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RowStore{pool: pool, table: table}, nil
}

// NewRowStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRowStoreWithPool(pool execCloser, table string) (*RowStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "chart_rows"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RowStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RowStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreRows inserts one category's rows, one INSERT per row. Rows that
// collide on (run_id, country, category, rank) are left untouched, so a
// replayed run does not duplicate data.
func (s *RowStore) StoreRows(ctx context.Context, runID string, rows []report.Row) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("row store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	country,
	country_name,
	category,
	genre_id,
	rank,
	app_id,
	app_name,
	developer,
	url,
	price,
	average_user_rating,
	user_rating_count,
	primary_genre_name,
	description,
	launch_date,
	update_date
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
) ON CONFLICT (run_id, country, category, rank) DO NOTHING`, s.table)

	for _, row := range rows {
		args := []any{
			runID,
			row.Country,
			row.CountryName,
			row.Category,
			row.GenreID,
			row.Rank,
			row.AppID,
			row.AppName,
			row.Developer,
			row.URL,
			row.Price,
			row.AverageUserRating,
			row.UserRatingCount,
			row.PrimaryGenreName,
			row.Description,
			row.LaunchDate,
			row.UpdateDate,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert chart row rank %d: %w", row.Rank, err)
		}
	}
	return nil
}
