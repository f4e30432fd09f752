package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZaguanLabs/transcache"
)

// DefaultRedisKeyPrefix prefixes every key the Redis store writes.
const DefaultRedisKeyPrefix = "transcache:"

// Hash fields of one entry.
const (
	fieldSourceText     = "source_text"
	fieldSourceLanguage = "source_language"
	fieldTargetLanguage = "target_language"
	fieldTranslatedText = "translated_text"
	fieldResourceType   = "resource_type"
	fieldResourceID     = "resource_id"
	fieldField          = "field"
	fieldManual         = "manual"
	fieldProvider       = "provider"
	fieldModel          = "model"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
	fieldLastUsedAt     = "last_used_at"
)

var indexEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// touchScript sets one field only while the hash exists, so a touch racing
// a delete or an expiry cannot leave a partial hash behind.
var touchScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
end
return -1
`)

// RedisStore keeps each entry in its own hash and maintains set indexes of
// all ids, ids per target language, ids per resource and manual overrides.
//
// Key layout under the prefix:
//
//	entry:<id>              hash of entry fields
//	ids                     set of all ids
//	langs                   set of target languages
//	lang:<lang>             set of ids per target language
//	resource:<type>:<id>    set of ids per resource
//	manual                  set of manual override ids
type RedisStore struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
	now       func() time.Time
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	URL       string        // Redis connection URL (e.g., "redis://localhost:6379")
	TTL       time.Duration // Entry expiry after the last write (0 = no expiration)
	KeyPrefix string        // Prefix for all keys (default: "transcache:")
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.TTL, cfg.KeyPrefix, opts...), nil
}

// NewRedisStoreFromClient creates a RedisStore from an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, ttl time.Duration, keyPrefix string, opts ...Option) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	if ttl < 0 {
		ttl = 0
	}

	o := buildOptions(opts)
	return &RedisStore{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		now:       o.now,
	}
}

func (s *RedisStore) entryKey(id string) string { return s.keyPrefix + "entry:" + id }
func (s *RedisStore) idsKey() string            { return s.keyPrefix + "ids" }
func (s *RedisStore) langsKey() string          { return s.keyPrefix + "langs" }
func (s *RedisStore) manualKey() string         { return s.keyPrefix + "manual" }
func (s *RedisStore) langKey(lang string) string {
	return s.keyPrefix + "lang:" + indexEscaper.Replace(lang)
}

func (s *RedisStore) resourceKey(resourceType, resourceID string) string {
	return s.keyPrefix + "resource:" + indexEscaper.Replace(resourceType) + ":" + indexEscaper.Replace(resourceID)
}

// Get returns the entry stored under id.
func (s *RedisStore) Get(ctx context.Context, id string) (*transcache.CacheEntry, error) {
	fields, err := s.client.HGetAll(ctx, s.entryKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return decodeEntry(id, fields)
}

// Set upserts entry. created_at is only written when the hash is new.
func (s *RedisStore) Set(ctx context.Context, entry transcache.CacheEntry) error {
	now := formatTime(s.now())
	return s.write(ctx, entry, func(pipe redis.Pipeliner, key string) {
		pipe.HSetNX(ctx, key, fieldCreatedAt, now)
		pipe.HSet(ctx, key, append(entryFields(entry), fieldUpdatedAt, now, fieldLastUsedAt, now)...)
	})
}

// Restore writes entry with its own timestamps.
func (s *RedisStore) Restore(ctx context.Context, entry transcache.CacheEntry) error {
	now := s.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}
	if entry.LastUsedAt.IsZero() {
		entry.LastUsedAt = entry.UpdatedAt
	}

	return s.write(ctx, entry, func(pipe redis.Pipeliner, key string) {
		pipe.HSet(ctx, key, append(entryFields(entry),
			fieldCreatedAt, formatTime(entry.CreatedAt),
			fieldUpdatedAt, formatTime(entry.UpdatedAt),
			fieldLastUsedAt, formatTime(entry.LastUsedAt),
		)...)
	})
}

// write runs the hash update and the index maintenance in one MULTI/EXEC.
func (s *RedisStore) write(ctx context.Context, entry transcache.CacheEntry, setFields func(redis.Pipeliner, string)) error {
	key := s.entryKey(entry.ID)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setFields(pipe, key)

		pipe.SAdd(ctx, s.idsKey(), entry.ID)
		pipe.SAdd(ctx, s.langsKey(), entry.TargetLanguage)
		pipe.SAdd(ctx, s.langKey(entry.TargetLanguage), entry.ID)
		if entry.ResourceType != "" && entry.ResourceID != "" {
			pipe.SAdd(ctx, s.resourceKey(entry.ResourceType, entry.ResourceID), entry.ID)
		}
		if entry.IsManualOverride {
			pipe.SAdd(ctx, s.manualKey(), entry.ID)
		} else {
			pipe.SRem(ctx, s.manualKey(), entry.ID)
		}

		if s.ttl > 0 && !entry.IsManualOverride {
			pipe.Expire(ctx, key, s.ttl)
		} else {
			pipe.Persist(ctx, key)
		}
		return nil
	})
	return err
}

// Touch refreshes last_used_at of id. Missing ids are left alone.
func (s *RedisStore) Touch(ctx context.Context, id string) error {
	keys := []string{s.entryKey(id)}
	return touchScript.Run(ctx, s.client, keys, fieldLastUsedAt, formatTime(s.now())).Err()
}

// Delete removes id and its index memberships.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.deleteIDs(ctx, []string{id})
	return err
}

// DeleteByResource removes every entry of one resource.
func (s *RedisStore) DeleteByResource(ctx context.Context, resourceType, resourceID string) (int, error) {
	setKey := s.resourceKey(resourceType, resourceID)

	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, err
	}

	n, err := s.deleteIDs(ctx, ids)
	if err != nil {
		return n, err
	}
	return n, s.client.Del(ctx, setKey).Err()
}

// DeleteByLanguage removes every entry for one target language.
func (s *RedisStore) DeleteByLanguage(ctx context.Context, lang string) (int, error) {
	ids, err := s.client.SMembers(ctx, s.langKey(lang)).Result()
	if err != nil {
		return 0, err
	}

	n, err := s.deleteIDs(ctx, ids)
	if err != nil {
		return n, err
	}
	return n, s.client.SRem(ctx, s.langsKey(), lang).Err()
}

// DeleteAll removes every entry and index.
func (s *RedisStore) DeleteAll(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return 0, err
	}

	n, err := s.deleteIDs(ctx, ids)
	if err != nil {
		return n, err
	}
	return n, s.client.Del(ctx, s.langsKey()).Err()
}

// deleteIDs removes ids that still exist and returns how many did.
func (s *RedisStore) deleteIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, s.entryKey(id), fieldTargetLanguage, fieldResourceType, fieldResourceID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			vals := cmds[i].Val()
			lang, _ := vals[0].(string)
			resourceType, _ := vals[1].(string)
			resourceID, _ := vals[2].(string)

			pipe.Del(ctx, s.entryKey(id))
			pipe.SRem(ctx, s.idsKey(), id)
			pipe.SRem(ctx, s.manualKey(), id)
			if lang != "" {
				removed++
				pipe.SRem(ctx, s.langKey(lang), id)
			}
			if resourceType != "" && resourceID != "" {
				pipe.SRem(ctx, s.resourceKey(resourceType, resourceID), id)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Stats counts entries per target language from the indexes.
func (s *RedisStore) Stats(ctx context.Context) (transcache.Stats, error) {
	if s.ttl > 0 {
		if err := s.pruneExpired(ctx); err != nil {
			return transcache.Stats{}, err
		}
	}

	langs, err := s.client.SMembers(ctx, s.langsKey()).Result()
	if err != nil {
		return transcache.Stats{}, err
	}
	sort.Strings(langs)

	var total, manual *redis.IntCmd
	perLang := make([]*redis.IntCmd, len(langs))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		total = pipe.SCard(ctx, s.idsKey())
		manual = pipe.SCard(ctx, s.manualKey())
		for i, lang := range langs {
			perLang[i] = pipe.SCard(ctx, s.langKey(lang))
		}
		return nil
	})
	if err != nil {
		return transcache.Stats{}, err
	}

	stats := transcache.Stats{
		TotalEntries:    int(total.Val()),
		ManualOverrides: int(manual.Val()),
		ByLanguage:      make(map[string]int, len(langs)),
	}
	for i, lang := range langs {
		if n := perLang[i].Val(); n > 0 {
			stats.ByLanguage[lang] = int(n)
		}
	}
	return stats, nil
}

// pruneExpired drops ids whose hash has expired from the id and language
// indexes. Resource indexes are cleaned when their resource is deleted.
func (s *RedisStore) pruneExpired(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil || len(ids) == 0 {
		return err
	}
	sort.Strings(ids)

	exists := make([]*redis.IntCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			exists[i] = pipe.Exists(ctx, s.entryKey(id))
		}
		return nil
	})
	if err != nil {
		return err
	}

	var dead []any
	for i, id := range ids {
		if exists[i].Val() == 0 {
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return nil
	}

	langs, err := s.client.SMembers(ctx, s.langsKey()).Result()
	if err != nil {
		return err
	}
	sort.Strings(langs)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.idsKey(), dead...)
		for _, lang := range langs {
			pipe.SRem(ctx, s.langKey(lang), dead...)
		}
		return nil
	})
	return err
}

// Entries returns every entry ordered by id.
func (s *RedisStore) Entries(ctx context.Context) ([]transcache.CacheEntry, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.entryKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]transcache.CacheEntry, 0, len(ids))
	for i, id := range ids {
		entry, err := decodeEntry(id, cmds[i].Val())
		if err != nil {
			continue // expired since SMEMBERS
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping tests the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func entryFields(e transcache.CacheEntry) []any {
	manual := "0"
	if e.IsManualOverride {
		manual = "1"
	}
	return []any{
		fieldSourceText, e.SourceText,
		fieldSourceLanguage, e.SourceLanguage,
		fieldTargetLanguage, e.TargetLanguage,
		fieldTranslatedText, e.TranslatedText,
		fieldResourceType, e.ResourceType,
		fieldResourceID, e.ResourceID,
		fieldField, e.Field,
		fieldManual, manual,
		fieldProvider, e.Provider,
		fieldModel, e.Model,
	}
}

// decodeEntry builds an entry from HGETALL output. A hash without a target
// language is treated as missing.
func decodeEntry(id string, fields map[string]string) (*transcache.CacheEntry, error) {
	if fields[fieldTargetLanguage] == "" {
		return nil, transcache.ErrNotFound
	}

	return &transcache.CacheEntry{
		ID:               id,
		SourceText:       fields[fieldSourceText],
		SourceLanguage:   fields[fieldSourceLanguage],
		TargetLanguage:   fields[fieldTargetLanguage],
		TranslatedText:   fields[fieldTranslatedText],
		ResourceType:     fields[fieldResourceType],
		ResourceID:       fields[fieldResourceID],
		Field:            fields[fieldField],
		IsManualOverride: fields[fieldManual] == "1",
		Provider:         fields[fieldProvider],
		Model:            fields[fieldModel],
		CreatedAt:        parseTime(fields[fieldCreatedAt]),
		UpdatedAt:        parseTime(fields[fieldUpdatedAt]),
		LastUsedAt:       parseTime(fields[fieldLastUsedAt]),
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
