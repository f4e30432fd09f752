package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaguanLabs/transcache"
)

func TestIsUndefinedTable(t *testing.T) {
	assert.True(t, IsUndefinedTable(fmt.Errorf("select: %w", &pgconn.PgError{Code: "42P01"})))
	assert.False(t, IsUndefinedTable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUndefinedTable(transcache.ErrNotFound))
}

func TestNewPostgresStore_DefaultTable(t *testing.T) {
	s := NewPostgresStore(nil, "")
	assert.Equal(t, DefaultPostgresTable, s.table)
}

// TestPostgresStore runs against a real database when
// TRANSCACHE_TEST_POSTGRES_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TRANSCACHE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRANSCACHE_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	table := fmt.Sprintf("translation_cache_test_%d", time.Now().UnixNano())
	clock := newFakeClock()
	s := NewPostgresStore(pool, table, WithClock(clock.Now))
	require.NoError(t, s.EnsureSchema(ctx))
	defer pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, transcache.ErrNotFound)

	e := hashEntry("Hello", "en", "es", "Hola")
	require.NoError(t, s.Set(ctx, e))
	created := clock.Now()

	clock.Advance(time.Minute)
	e.TranslatedText = "¡Hola!"
	require.NoError(t, s.Set(ctx, e))

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "¡Hola!", got.TranslatedText)
	assert.True(t, created.Equal(got.CreatedAt), "CreatedAt survives updates")
	assert.True(t, clock.Now().Equal(got.UpdatedAt))

	clock.Advance(time.Minute)
	require.NoError(t, s.Touch(ctx, e.ID))
	require.NoError(t, s.Touch(ctx, "missing"))
	got, err = s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, clock.Now().Equal(got.LastUsedAt))

	require.NoError(t, s.Set(ctx, overrideEntry("page", "1", "title", "es", "Título")))
	require.NoError(t, s.Set(ctx, overrideEntry("page", "1", "body", "fr", "Corps")))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, transcache.Stats{
		TotalEntries:    3,
		ByLanguage:      map[string]int{"es": 2, "fr": 1},
		ManualOverrides: 2,
	}, stats)

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	n, err := s.DeleteByResource(ctx, "page", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteByLanguage(ctx, "es")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete(ctx, "missing"))

	n, err = s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
