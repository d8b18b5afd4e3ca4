package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/labmarket/pricewatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS price_context_cache (
	id                   TEXT PRIMARY KEY,
	brand                TEXT NOT NULL,
	model                TEXT NOT NULL,
	category             TEXT NOT NULL,
	price_ranges         TEXT NOT NULL,
	price_source         TEXT NOT NULL,
	price_breakdown      TEXT,
	has_marketplace_data INTEGER NOT NULL DEFAULT 0,
	cached_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at           DATETIME NOT NULL,
	UNIQUE (brand, model, category)
);

CREATE INDEX IF NOT EXISTS idx_price_cache_expires_at ON price_context_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetPriceContext(ctx context.Context, key Key) (*model.PriceCacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, brand, model, category, price_ranges, price_source, price_breakdown, has_marketplace_data, cached_at, expires_at
		 FROM price_context_cache
		 WHERE brand = ? AND model = ? AND category = ? AND expires_at > datetime('now')`,
		key.Brand, key.Model, key.Category,
	)

	var e model.PriceCacheEntry
	var rangesJSON string
	var breakdownNull sql.NullString
	err := row.Scan(&e.ID, &e.Brand, &e.Model, &e.Category, &rangesJSON, &e.PriceSource, &breakdownNull, &e.HasMarketplaceData, &e.CachedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get price context %s/%s", key.Brand, key.Model)
	}
	if err := json.Unmarshal([]byte(rangesJSON), &e.PriceRanges); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal price ranges")
	}
	if breakdownNull.Valid {
		e.PriceBreakdown = breakdownNull.String
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertPriceContext(ctx context.Context, entry model.PriceCacheEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}

	rangesJSON, err := json.Marshal(entry.PriceRanges)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal price ranges")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO price_context_cache
		 (id, brand, model, category, price_ranges, price_source, price_breakdown, has_marketplace_data, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (brand, model, category) DO UPDATE SET
		   price_ranges = excluded.price_ranges,
		   price_source = excluded.price_source,
		   price_breakdown = excluded.price_breakdown,
		   has_marketplace_data = excluded.has_marketplace_data,
		   cached_at = excluded.cached_at,
		   expires_at = excluded.expires_at`,
		entry.ID, entry.Brand, entry.Model, entry.Category,
		string(rangesJSON), entry.PriceSource, entry.PriceBreakdown,
		entry.HasMarketplaceData, entry.CachedAt.UTC(), entry.ExpiresAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert price context %s/%s", entry.Brand, entry.Model)
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM price_context_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}
