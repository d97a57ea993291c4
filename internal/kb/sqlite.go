package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/arogya-labs/rxguard/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
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
CREATE TABLE IF NOT EXISTS interactions (
	pair_key       TEXT PRIMARY KEY,
	drug_a         TEXT NOT NULL,
	drug_b         TEXT NOT NULL,
	severity       TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	recommendation TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT 'curated',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	id         TEXT PRIMARY KEY,
	pair_key   TEXT NOT NULL,
	record     TEXT,
	source     TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_drug_a ON interactions(drug_a);
CREATE INDEX IF NOT EXISTS idx_interactions_drug_b ON interactions(drug_b);
CREATE INDEX IF NOT EXISTS idx_lookup_cache_pair_key ON lookup_cache(pair_key);
CREATE INDEX IF NOT EXISTS idx_lookup_cache_expires_at ON lookup_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetInteraction(ctx context.Context, pair model.Pair) (*model.InteractionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT drug_a, drug_b, severity, title, description, recommendation, source
		 FROM interactions WHERE pair_key = ?`,
		pair.Key(),
	)

	var rec model.InteractionRecord
	err := row.Scan(&rec.Pair.A, &rec.Pair.B, &rec.Severity, &rec.Title, &rec.Description, &rec.Recommendation, &rec.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get interaction %s", pair.Key())
	}
	return &rec, nil
}

func (s *SQLiteStore) UpsertInteraction(ctx context.Context, rec model.InteractionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (pair_key, drug_a, drug_b, severity, title, description, recommendation, source, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pair_key) DO UPDATE SET
			severity = excluded.severity,
			title = excluded.title,
			description = excluded.description,
			recommendation = excluded.recommendation,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		rec.Pair.Key(), rec.Pair.A, rec.Pair.B, string(rec.Severity),
		rec.Title, rec.Description, rec.Recommendation, rec.Source, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert interaction %s", rec.Pair.Key())
}

func (s *SQLiteStore) GetCachedLookup(ctx context.Context, pair model.Pair) (*CachedLookup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pair_key, record, source, cached_at, expires_at FROM lookup_cache
		 WHERE pair_key = ? AND expires_at > ?
		 ORDER BY cached_at DESC LIMIT 1`,
		pair.Key(), time.Now().UTC(),
	)

	var cl CachedLookup
	var pairKey string
	var recordJSON sql.NullString
	err := row.Scan(&pairKey, &recordJSON, &cl.Source, &cl.CachedAt, &cl.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cached lookup %s", pair.Key())
	}

	cl.Pair = pair
	if recordJSON.Valid {
		cl.Record = &model.InteractionRecord{}
		if err := json.Unmarshal([]byte(recordJSON.String), cl.Record); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal cached record")
		}
	}
	return &cl, nil
}

func (s *SQLiteStore) SetCachedLookup(ctx context.Context, pair model.Pair, rec *model.InteractionRecord, source string, ttl time.Duration) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	var recordJSON any
	if rec != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal cached record")
		}
		recordJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lookup_cache (id, pair_key, record, source, cached_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, pair.Key(), recordJSON, source, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "sqlite: set cached lookup %s", pair.Key())
}

func (s *SQLiteStore) DeleteExpiredLookups(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lookup_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired lookups")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM interactions GROUP BY severity`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: severity stats")
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan severity stats")
		}
		addSeverityCount(&stats.BySeverity, model.Severity(severity), count)
		stats.Pairs += count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: severity stats iterate")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT drug_a AS d FROM interactions UNION SELECT drug_b FROM interactions)`,
	)
	if err := row.Scan(&stats.Drugs); err != nil {
		return nil, eris.Wrap(err, "sqlite: drug count")
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lookup_cache WHERE expires_at > ?`, time.Now().UTC())
	if err := row.Scan(&stats.CachedLookups); err != nil {
		return nil, eris.Wrap(err, "sqlite: cached lookup count")
	}

	return stats, nil
}

func addSeverityCount(counts *model.SeverityCounts, severity model.Severity, n int) {
	switch severity {
	case model.SeverityCritical:
		counts.Critical += n
	case model.SeverityModerate:
		counts.Moderate += n
	case model.SeverityMinor:
		counts.Minor += n
	default:
		counts.Unknown += n
	}
}
