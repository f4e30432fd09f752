package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZaguanLabs/transcache"
)

// DefaultPostgresTable is the table the Postgres store uses unless told otherwise.
const DefaultPostgresTable = "translation_cache"

// DDL for the cache table. %[1]s is the table name.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id                 TEXT PRIMARY KEY,
	source_text        TEXT NOT NULL DEFAULT '',
	source_language    TEXT NOT NULL DEFAULT '',
	target_language    TEXT NOT NULL,
	translated_text    TEXT NOT NULL,
	resource_type      TEXT NOT NULL DEFAULT '',
	resource_id        TEXT NOT NULL DEFAULT '',
	field              TEXT NOT NULL DEFAULT '',
	is_manual_override BOOLEAN NOT NULL DEFAULT FALSE,
	provider           TEXT NOT NULL DEFAULT '',
	model              TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	last_used_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_target_language_idx ON %[1]s (target_language);
CREATE INDEX IF NOT EXISTS %[1]s_resource_idx ON %[1]s (resource_type, resource_id);
`

const entryColumns = `id, source_text, source_language, target_language, translated_text,
	resource_type, resource_id, field, is_manual_override, provider, model,
	created_at, updated_at, last_used_at`

// Querier is the subset of pgxpool.Pool the store needs. pgx.Tx satisfies
// it too, so the store can run inside a caller's transaction.
type Querier interface {
	pgxscan.Querier
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps entries in one table keyed by cache key.
type PostgresStore struct {
	db    Querier
	table string
	now   func() time.Time
}

// postgresRow mirrors one table row for pgxscan.
type postgresRow struct {
	ID               string    `db:"id"`
	SourceText       string    `db:"source_text"`
	SourceLanguage   string    `db:"source_language"`
	TargetLanguage   string    `db:"target_language"`
	TranslatedText   string    `db:"translated_text"`
	ResourceType     string    `db:"resource_type"`
	ResourceID       string    `db:"resource_id"`
	Field            string    `db:"field"`
	IsManualOverride bool      `db:"is_manual_override"`
	Provider         string    `db:"provider"`
	Model            string    `db:"model"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
	LastUsedAt       time.Time `db:"last_used_at"`
}

func (r *postgresRow) entry() transcache.CacheEntry {
	return transcache.CacheEntry{
		ID:               r.ID,
		SourceText:       r.SourceText,
		SourceLanguage:   r.SourceLanguage,
		TargetLanguage:   r.TargetLanguage,
		TranslatedText:   r.TranslatedText,
		ResourceType:     r.ResourceType,
		ResourceID:       r.ResourceID,
		Field:            r.Field,
		IsManualOverride: r.IsManualOverride,
		Provider:         r.Provider,
		Model:            r.Model,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		LastUsedAt:       r.LastUsedAt,
	}
}

// ConnectPostgres opens a pool for dsn and checks it with a dummy select.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		var res int
		if err := conn.QueryRow(ctx, `SELECT 1`).Scan(&res); err != nil {
			return fmt.Errorf("dummy select failed: %w", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("starting postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresStore creates a store over db. An empty table selects
// DefaultPostgresTable. The table name is not quoted; pass a plain identifier.
func NewPostgresStore(db Querier, table string, opts ...Option) *PostgresStore {
	if table == "" {
		table = DefaultPostgresTable
	}
	o := buildOptions(opts)
	return &PostgresStore{db: db, table: table, now: o.now}
}

// EnsureSchema creates the cache table and its indexes if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(postgresSchema, s.table)); err != nil {
		return fmt.Errorf("creating %s: %w", s.table, err)
	}
	return nil
}

// Get returns the entry stored under id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*transcache.CacheEntry, error) {
	row := new(postgresRow)
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, entryColumns, s.table)
	if err := pgxscan.Get(ctx, s.db, row, sql, id); err != nil {
		if pgxscan.NotFound(err) {
			return nil, transcache.ErrNotFound
		}
		return nil, err
	}

	entry := row.entry()
	return &entry, nil
}

// Set upserts entry. created_at keeps its first value.
func (s *PostgresStore) Set(ctx context.Context, entry transcache.CacheEntry) error {
	now := s.now().UTC()
	entry.CreatedAt, entry.UpdatedAt, entry.LastUsedAt = now, now, now
	return s.upsert(ctx, entry, false)
}

// Restore writes entry with its own timestamps.
func (s *PostgresStore) Restore(ctx context.Context, entry transcache.CacheEntry) error {
	now := s.now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}
	if entry.LastUsedAt.IsZero() {
		entry.LastUsedAt = entry.UpdatedAt
	}
	return s.upsert(ctx, entry, true)
}

func (s *PostgresStore) upsert(ctx context.Context, e transcache.CacheEntry, replaceCreated bool) error {
	createdAt := s.table + ".created_at"
	if replaceCreated {
		createdAt = "EXCLUDED.created_at"
	}

	sql := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			source_text = EXCLUDED.source_text,
			source_language = EXCLUDED.source_language,
			target_language = EXCLUDED.target_language,
			translated_text = EXCLUDED.translated_text,
			resource_type = EXCLUDED.resource_type,
			resource_id = EXCLUDED.resource_id,
			field = EXCLUDED.field,
			is_manual_override = EXCLUDED.is_manual_override,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			created_at = %[3]s,
			updated_at = EXCLUDED.updated_at,
			last_used_at = EXCLUDED.last_used_at`, s.table, entryColumns, createdAt)

	_, err := s.db.Exec(ctx, sql,
		e.ID, e.SourceText, e.SourceLanguage, e.TargetLanguage, e.TranslatedText,
		e.ResourceType, e.ResourceID, e.Field, e.IsManualOverride, e.Provider, e.Model,
		e.CreatedAt, e.UpdatedAt, e.LastUsedAt)
	return err
}

// Touch refreshes last_used_at of id.
func (s *PostgresStore) Touch(ctx context.Context, id string) error {
	sql := fmt.Sprintf(`UPDATE %s SET last_used_at = $2 WHERE id = $1`, s.table)
	_, err := s.db.Exec(ctx, sql, id, s.now().UTC())
	return err
}

// Delete removes id.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id)
	return err
}

// DeleteByResource removes every entry of one resource.
func (s *PostgresStore) DeleteByResource(ctx context.Context, resourceType, resourceID string) (int, error) {
	return s.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE resource_type = $1 AND resource_id = $2`, s.table),
		resourceType, resourceID)
}

// DeleteByLanguage removes every entry for one target language.
func (s *PostgresStore) DeleteByLanguage(ctx context.Context, lang string) (int, error) {
	return s.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE target_language = $1`, s.table), lang)
}

// DeleteAll removes everything.
func (s *PostgresStore) DeleteAll(ctx context.Context) (int, error) {
	return s.exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) (int, error) {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Stats aggregates entry counts per target language.
func (s *PostgresStore) Stats(ctx context.Context) (transcache.Stats, error) {
	var rows []struct {
		TargetLanguage string `db:"target_language"`
		Total          int    `db:"total"`
		Manual         int    `db:"manual"`
	}
	sql := fmt.Sprintf(`SELECT target_language,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_manual_override) AS manual
		FROM %s GROUP BY target_language`, s.table)
	if err := pgxscan.Select(ctx, s.db, &rows, sql); err != nil {
		return transcache.Stats{}, err
	}

	stats := transcache.Stats{ByLanguage: make(map[string]int, len(rows))}
	for _, row := range rows {
		stats.TotalEntries += row.Total
		stats.ManualOverrides += row.Manual
		stats.ByLanguage[row.TargetLanguage] = row.Total
	}
	return stats, nil
}

// Entries returns every entry ordered by id.
func (s *PostgresStore) Entries(ctx context.Context) ([]transcache.CacheEntry, error) {
	var rows []*postgresRow
	sql := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, entryColumns, s.table)
	if err := pgxscan.Select(ctx, s.db, &rows, sql); err != nil {
		return nil, err
	}

	entries := make([]transcache.CacheEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.entry()
	}
	return entries, nil
}

// IsUndefinedTable reports whether err is Postgres' "relation does not
// exist", which means EnsureSchema has not run.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
