package feed

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vantalabs/vantage/errors"
)

// Journal persists one row per fetch outcome to SQLite, giving the CLI
// and dashboards a durable record beyond the in-memory counters. The
// orchestrator works without one (nil journal disables recording).
type Journal struct {
	db *sql.DB
}

// JournalEntry is one recorded fetch outcome.
type JournalEntry struct {
	ID           int       `json:"id" db:"id"`
	DataType     string    `json:"data_type" db:"data_type"`
	Key          string    `json:"key" db:"key"`
	Source       string    `json:"source" db:"source"`
	Success      bool      `json:"success" db:"success"`
	Cached       bool      `json:"cached" db:"cached"`
	FallbackUsed bool      `json:"fallback_used" db:"fallback_used"`
	TriedSources string    `json:"tried_sources" db:"tried_sources"`
	DurationMS   int64     `json:"duration_ms" db:"duration_ms"`
	Error        *string   `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// JournalStats are aggregate fetch outcomes for a time period.
type JournalStats struct {
	TotalFetches  int     `json:"total_fetches"`
	Successes     int     `json:"successes"`
	SuccessRate   float64 `json:"success_rate"`
	CacheHits     int     `json:"cache_hits"`
	Fallbacks     int     `json:"fallbacks"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// SourceBreakdown is per-source aggregate fetch outcomes.
type SourceBreakdown struct {
	Source        string  `json:"source"`
	FetchCount    int     `json:"fetch_count"`
	Successes     int     `json:"successes"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

const journalSchema = `
	CREATE TABLE IF NOT EXISTS fetch_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		data_type TEXT NOT NULL,
		key TEXT NOT NULL,
		source TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		cached BOOLEAN NOT NULL,
		fallback_used BOOLEAN NOT NULL,
		tried_sources TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`

// OpenJournal opens (creating if needed) a journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open journal database %s", path)
	}
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// NewJournal wraps an existing database handle. The caller owns the
// handle's lifecycle; migration still runs.
func NewJournal(db *sql.DB) (*Journal, error) {
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	if _, err := j.db.Exec(journalSchema); err != nil {
		return errors.Wrap(err, "failed to create fetch_journal table")
	}
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record writes one fetch outcome.
func (j *Journal) Record(dataType, key string, result *FetchResult) error {
	var errText *string
	if result.Error != "" {
		errText = &result.Error
	}

	query := `
		INSERT INTO fetch_journal (
			data_type, key, source, success, cached, fallback_used,
			tried_sources, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.Exec(query,
		dataType, key, result.Source, result.Success, result.Cached,
		result.FallbackUsed, strings.Join(result.TriedSources, ","),
		result.DurationMS, errText,
	)
	return errors.Wrap(err, "failed to record fetch outcome")
}

// Stats returns aggregate fetch outcomes since the given time.
func (j *Journal) Stats(since time.Time) (*JournalStats, error) {
	query := `
		SELECT
			COUNT(*) as total_fetches,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successes,
			COUNT(CASE WHEN cached = 1 THEN 1 END) as cache_hits,
			COUNT(CASE WHEN fallback_used = 1 THEN 1 END) as fallbacks,
			COALESCE(AVG(duration_ms), 0) as avg_duration_ms
		FROM fetch_journal
		WHERE created_at >= ?`

	var stats JournalStats
	err := j.db.QueryRow(query, since).Scan(
		&stats.TotalFetches, &stats.Successes,
		&stats.CacheHits, &stats.Fallbacks, &stats.AvgDurationMS,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query journal stats")
	}

	if stats.TotalFetches > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(stats.TotalFetches)
	}
	return &stats, nil
}

// SourceBreakdown returns per-source aggregates since the given time,
// busiest sources first.
func (j *Journal) SourceBreakdown(since time.Time) ([]SourceBreakdown, error) {
	query := `
		SELECT
			source,
			COUNT(*) as fetch_count,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successes,
			COALESCE(AVG(duration_ms), 0) as avg_duration_ms
		FROM fetch_journal
		WHERE created_at >= ?
		GROUP BY source
		ORDER BY fetch_count DESC`

	rows, err := j.db.Query(query, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query source breakdown")
	}
	defer rows.Close()

	var breakdown []SourceBreakdown
	for rows.Next() {
		var sb SourceBreakdown
		if err := rows.Scan(&sb.Source, &sb.FetchCount, &sb.Successes, &sb.AvgDurationMS); err != nil {
			return nil, errors.Wrap(err, "failed to scan source breakdown row")
		}
		breakdown = append(breakdown, sb)
	}
	return breakdown, rows.Err()
}

// Recent returns the most recent fetch outcomes, newest first.
func (j *Journal) Recent(limit int) ([]JournalEntry, error) {
	query := `
		SELECT id, data_type, key, source, success, cached, fallback_used,
			tried_sources, duration_ms, error, created_at
		FROM fetch_journal
		ORDER BY id DESC
		LIMIT ?`

	rows, err := j.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query recent journal entries")
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.DataType, &e.Key, &e.Source, &e.Success,
			&e.Cached, &e.FallbackUsed, &e.TriedSources, &e.DurationMS,
			&e.Error, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan journal entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
