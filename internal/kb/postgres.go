package kb

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/arogya-labs/rxguard/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries prepared on each new connection for
// the hot lookup path.
var preparedStatements = map[string]string{
	"get_interaction":    `SELECT drug_a, drug_b, severity, title, description, recommendation, source FROM interactions WHERE pair_key = $1`,
	"get_cached_lookup":  `SELECT pair_key, record, source, cached_at, expires_at FROM lookup_cache WHERE pair_key = $1 AND expires_at > now() ORDER BY cached_at DESC LIMIT 1`,
	"set_cached_lookup":  `INSERT INTO lookup_cache (id, pair_key, record, source, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"upsert_interaction": `INSERT INTO interactions (pair_key, drug_a, drug_b, severity, title, description, recommendation, source, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (pair_key) DO UPDATE SET severity = EXCLUDED.severity, title = EXCLUDED.title, description = EXCLUDED.description, recommendation = EXCLUDED.recommendation, source = EXCLUDED.source, updated_at = EXCLUDED.updated_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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
		for name, query := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, query); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS interactions (
	pair_key       TEXT PRIMARY KEY,
	drug_a         TEXT NOT NULL,
	drug_b         TEXT NOT NULL,
	severity       TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	recommendation TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT 'curated',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	id         UUID PRIMARY KEY,
	pair_key   TEXT NOT NULL,
	record     JSONB,
	source     TEXT NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_drug_a ON interactions(drug_a);
CREATE INDEX IF NOT EXISTS idx_interactions_drug_b ON interactions(drug_b);
CREATE INDEX IF NOT EXISTS idx_lookup_cache_pair_key ON lookup_cache(pair_key);
CREATE INDEX IF NOT EXISTS idx_lookup_cache_expires_at ON lookup_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetInteraction(ctx context.Context, pair model.Pair) (*model.InteractionRecord, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_interaction"], pair.Key())

	var rec model.InteractionRecord
	err := row.Scan(&rec.Pair.A, &rec.Pair.B, &rec.Severity, &rec.Title, &rec.Description, &rec.Recommendation, &rec.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get interaction %s", pair.Key())
	}
	return &rec, nil
}

func (s *PostgresStore) UpsertInteraction(ctx context.Context, rec model.InteractionRecord) error {
	_, err := s.pool.Exec(ctx, preparedStatements["upsert_interaction"],
		rec.Pair.Key(), rec.Pair.A, rec.Pair.B, string(rec.Severity),
		rec.Title, rec.Description, rec.Recommendation, rec.Source, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert interaction %s", rec.Pair.Key())
}

func (s *PostgresStore) GetCachedLookup(ctx context.Context, pair model.Pair) (*CachedLookup, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_cached_lookup"], pair.Key())

	var cl CachedLookup
	var pairKey string
	var recordJSON []byte
	err := row.Scan(&pairKey, &recordJSON, &cl.Source, &cl.CachedAt, &cl.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cached lookup %s", pair.Key())
	}

	cl.Pair = pair
	if len(recordJSON) > 0 {
		cl.Record = &model.InteractionRecord{}
		if err := json.Unmarshal(recordJSON, cl.Record); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal cached record")
		}
	}
	return &cl, nil
}

func (s *PostgresStore) SetCachedLookup(ctx context.Context, pair model.Pair, rec *model.InteractionRecord, source string, ttl time.Duration) error {
	now := time.Now().UTC()

	var recordJSON any
	if rec != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal cached record")
		}
		recordJSON = data
	}

	_, err := s.pool.Exec(ctx, preparedStatements["set_cached_lookup"],
		uuid.New(), pair.Key(), recordJSON, source, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: set cached lookup %s", pair.Key())
}

func (s *PostgresStore) DeleteExpiredLookups(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lookup_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired lookups")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	rows, err := s.pool.Query(ctx, `SELECT severity, COUNT(*) FROM interactions GROUP BY severity`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: severity stats")
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan severity stats")
		}
		addSeverityCount(&stats.BySeverity, model.Severity(severity), count)
		stats.Pairs += count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: severity stats iterate")
	}

	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM (SELECT drug_a AS d FROM interactions UNION SELECT drug_b FROM interactions) drugs`,
	)
	if err := row.Scan(&stats.Drugs); err != nil {
		return nil, eris.Wrap(err, "postgres: drug count")
	}

	row = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lookup_cache WHERE expires_at > now()`)
	if err := row.Scan(&stats.CachedLookups); err != nil {
		return nil, eris.Wrap(err, "postgres: cached lookup count")
	}

	return stats, nil
}
