package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/labmarket/pricewatch/internal/db"
	"github.com/labmarket/pricewatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection. The price context
// lookup is on the hot path of every API request, so it pays to skip the
// per-call parse.
var preparedStatements = map[string]string{
	"get_price_context": `SELECT id, brand, model, category, price_ranges, price_source, price_breakdown, has_marketplace_data, cached_at, expires_at FROM price_context_cache WHERE brand = $1 AND model = $2 AND category = $3 AND expires_at > now()`,
	"delete_expired":    `DELETE FROM price_context_cache WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS price_context_cache (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	brand                TEXT NOT NULL,
	model                TEXT NOT NULL,
	category             TEXT NOT NULL,
	price_ranges         JSONB NOT NULL,
	price_source         TEXT NOT NULL,
	price_breakdown      TEXT,
	has_marketplace_data BOOLEAN NOT NULL DEFAULT FALSE,
	cached_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at           TIMESTAMPTZ NOT NULL,
	UNIQUE (brand, model, category)
);

CREATE INDEX IF NOT EXISTS idx_price_cache_expires_at ON price_context_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_price_cache_key ON price_context_cache(brand, model, category);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// GetPriceContext returns the unexpired cache entry for a key, or (nil, nil)
// when no live entry exists.
func (s *PostgresStore) GetPriceContext(ctx context.Context, key Key) (*model.PriceCacheEntry, error) {
	var e model.PriceCacheEntry
	var rangesJSON []byte
	var breakdownNull *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, brand, model, category, price_ranges, price_source, price_breakdown, has_marketplace_data, cached_at, expires_at
		 FROM price_context_cache
		 WHERE brand = $1 AND model = $2 AND category = $3 AND expires_at > now()`,
		key.Brand, key.Model, key.Category,
	).Scan(&e.ID, &e.Brand, &e.Model, &e.Category, &rangesJSON, &e.PriceSource, &breakdownNull, &e.HasMarketplaceData, &e.CachedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get price context %s/%s", key.Brand, key.Model)
	}

	if err := json.Unmarshal(rangesJSON, &e.PriceRanges); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal price ranges")
	}
	if breakdownNull != nil {
		e.PriceBreakdown = *breakdownNull
	}
	return &e, nil
}

// UpsertPriceContext writes a cache entry, replacing any existing row for the
// same (brand, model, category) key in a single statement.
func (s *PostgresStore) UpsertPriceContext(ctx context.Context, entry model.PriceCacheEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}

	rangesJSON, err := json.Marshal(entry.PriceRanges)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal price ranges")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO price_context_cache
		 (id, brand, model, category, price_ranges, price_source, price_breakdown, has_marketplace_data, cached_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (brand, model, category) DO UPDATE SET
		   price_ranges = EXCLUDED.price_ranges,
		   price_source = EXCLUDED.price_source,
		   price_breakdown = EXCLUDED.price_breakdown,
		   has_marketplace_data = EXCLUDED.has_marketplace_data,
		   cached_at = EXCLUDED.cached_at,
		   expires_at = EXCLUDED.expires_at`,
		entry.ID, entry.Brand, entry.Model, entry.Category,
		rangesJSON, entry.PriceSource, entry.PriceBreakdown,
		entry.HasMarketplaceData, entry.CachedAt, entry.ExpiresAt,
	)
	return eris.Wrapf(err, "postgres: upsert price context %s/%s", entry.Brand, entry.Model)
}

// DeleteExpired removes all rows whose TTL has elapsed and reports how many
// were deleted.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM price_context_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired")
	}
	return int(tag.RowsAffected()), nil
}
