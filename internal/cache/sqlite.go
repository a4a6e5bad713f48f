package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/portfolio-analytics/internal/database"
)

// SQLiteCache persists msgpack-encoded entries in the analytics_cache table
// so a restart does not recompute unchanged assets.
type SQLiteCache struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteCache creates a cache over a migrated "cache" database
func NewSQLiteCache(db *sql.DB, log zerolog.Logger) *SQLiteCache {
	return &SQLiteCache{
		db:  db,
		log: log.With().Str("component", "sqlite_cache").Logger(),
	}
}

// Get decodes the entry for key into dst
func (c *SQLiteCache) Get(ctx context.Context, key Key, dst any) (bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, "SELECT value FROM analytics_cache WHERE key = ?", key.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if err := msgpack.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key and removes older versions of the same family
func (c *SQLiteCache) Set(ctx context.Context, key Key, value any) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	k := key.String()
	family := key.family()
	return database.WithTransaction(c.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM analytics_cache
			WHERE substr(key, 1, length(?)) = ? AND key != ?`, family, family, k); err != nil {
			return fmt.Errorf("failed to prune cache family: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO analytics_cache (key, asset, value, created_at)
			VALUES (?, ?, ?, ?)`, k, strings.ToUpper(key.Asset), data, time.Now().Unix()); err != nil {
			return fmt.Errorf("failed to write cache entry: %w", err)
		}
		return nil
	})
}

// InvalidateAsset drops every entry of asset
func (c *SQLiteCache) InvalidateAsset(ctx context.Context, asset string) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM analytics_cache WHERE asset = ?", strings.ToUpper(asset))
	if err != nil {
		return fmt.Errorf("failed to invalidate cache for %s: %w", asset, err)
	}
	n, _ := res.RowsAffected()
	c.log.Debug().Str("asset", asset).Int64("removed", n).Msg("Cache invalidated")
	return nil
}

// Prune removes entries older than maxAge
func (c *SQLiteCache) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := c.db.ExecContext(ctx, "DELETE FROM analytics_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return res.RowsAffected()
}
