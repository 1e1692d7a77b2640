// File: dataprovider/db.go
package dataprovider

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crazy8156/okx/utilities"
)

// SQLiteCache provides a local cache for OHLCV candles so repeated indicator
// warm-ups do not hammer the venue's market-data endpoints. It holds no
// trading state; dropping the file is always safe.
type SQLiteCache struct {
	db     *sql.DB
	logger *utilities.Logger
}

// NewSQLiteCache opens (or creates) the cache database and runs migrations.
func NewSQLiteCache(cfg *utilities.DatabaseConfig, logger *utilities.Logger) (*SQLiteCache, error) {
	if cfg == nil || cfg.DBPath == "" {
		return nil, fmt.Errorf("sqlite cache: database path not configured")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite cache: create directory for %s: %w", cfg.DBPath, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite cache: open %s: %w", cfg.DBPath, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite cache: ping: %w", err)
	}

	cache := &SQLiteCache{db: db, logger: logger}
	if err := cache.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.LogInfo("SQLiteCache: candle cache ready at %s", cfg.DBPath)
	return cache, nil
}

func (c *SQLiteCache) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candles (
		pair      TEXT    NOT NULL,
		timeframe TEXT    NOT NULL,
		timestamp INTEGER NOT NULL,
		open      REAL    NOT NULL,
		high      REAL    NOT NULL,
		low       REAL    NOT NULL,
		close     REAL    NOT NULL,
		volume    REAL    NOT NULL,
		PRIMARY KEY (pair, timeframe, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_lookup ON candles (pair, timeframe, timestamp DESC);`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite cache: migrate: %w", err)
	}
	return nil
}

// SaveBars upserts a batch of candles for a pair/timeframe in one transaction.
func (c *SQLiteCache) SaveBars(pair, timeframe string, bars []utilities.OHLCVBar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite cache: begin tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO candles
		(pair, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite cache: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.Exec(pair, timeframe, bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite cache: insert candle %s %s ts=%d: %w", pair, timeframe, bar.Timestamp, err)
		}
	}
	return tx.Commit()
}

// GetBars returns up to limit most-recent cached candles, sorted ascending.
func (c *SQLiteCache) GetBars(pair, timeframe string, limit int) ([]utilities.OHLCVBar, error) {
	rows, err := c.db.Query(`SELECT timestamp, open, high, low, close, volume
		FROM candles WHERE pair = ? AND timeframe = ?
		ORDER BY timestamp DESC LIMIT ?`, pair, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite cache: query candles: %w", err)
	}
	defer rows.Close()

	var bars []utilities.OHLCVBar
	for rows.Next() {
		var bar utilities.OHLCVBar
		if err := rows.Scan(&bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("sqlite cache: scan candle: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	utilities.SortBarsByTimestamp(bars)
	return bars, nil
}

// PruneOlderThan deletes candles with a timestamp before the cutoff.
func (c *SQLiteCache) PruneOlderThan(cutoff time.Time) (int64, error) {
	res, err := c.db.Exec(`DELETE FROM candles WHERE timestamp < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite cache: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartScheduledCleanup prunes stale candles on a fixed interval until the
// stop channel closes.
func (c *SQLiteCache) StartScheduledCleanup(interval, retention time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := c.PruneOlderThan(time.Now().Add(-retention)); err != nil {
					c.logger.LogWarn("SQLiteCache: scheduled cleanup failed: %v", err)
				} else if n > 0 {
					c.logger.LogDebug("SQLiteCache: pruned %d stale candles.", n)
				}
			case <-stop:
				return
			}
		}
	}()
}

// Close closes the underlying database handle.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
