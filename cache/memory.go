package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ZaguanLabs/transcache"
)

// MemoryStore is a thread-safe in-memory store with optional TTL.
// Entries expire ttl after their last write; manual overrides never expire.
type MemoryStore struct {
	entries map[string]transcache.CacheEntry
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory store. A ttl of 0 or less disables
// expiry.
func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	if ttl < 0 {
		ttl = 0
	}
	o := buildOptions(opts)
	return &MemoryStore{
		entries: make(map[string]transcache.CacheEntry),
		ttl:     ttl,
		now:     o.now,
	}
}

func (s *MemoryStore) expired(e transcache.CacheEntry, now time.Time) bool {
	return s.ttl > 0 && !e.IsManualOverride && now.Sub(e.UpdatedAt) > s.ttl
}

// Get returns the entry stored under id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*transcache.CacheEntry, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, transcache.ErrNotFound
	}

	if s.expired(entry, s.now()) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := s.entries[id]; ok && s.expired(cur, s.now()) {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return nil, transcache.ErrNotFound
	}

	return &entry, nil
}

// Set upserts entry, keeping CreatedAt of a live previous version.
func (s *MemoryStore) Set(ctx context.Context, entry transcache.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry.CreatedAt = now
	if old, ok := s.entries[entry.ID]; ok && !s.expired(old, now) {
		entry.CreatedAt = old.CreatedAt
	}
	entry.UpdatedAt = now
	entry.LastUsedAt = now

	s.entries[entry.ID] = entry
	return nil
}

// Restore stores entry as given. Missing timestamps are set to now.
func (s *MemoryStore) Restore(ctx context.Context, entry transcache.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.entries[entry.ID] = entry
	return nil
}

// Touch refreshes LastUsedAt of id.
func (s *MemoryStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[id]; ok {
		entry.LastUsedAt = s.now()
		s.entries[id] = entry
	}
	return nil
}

// Delete removes id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) deleteWhere(match func(transcache.CacheEntry) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if !match(entry) {
			continue
		}
		if !s.expired(entry, now) {
			removed++
		}
		delete(s.entries, id)
	}
	return removed
}

// DeleteByResource removes every entry of one resource.
func (s *MemoryStore) DeleteByResource(ctx context.Context, resourceType, resourceID string) (int, error) {
	return s.deleteWhere(func(e transcache.CacheEntry) bool {
		return e.ResourceType == resourceType && e.ResourceID == resourceID
	}), nil
}

// DeleteByLanguage removes every entry for one target language.
func (s *MemoryStore) DeleteByLanguage(ctx context.Context, lang string) (int, error) {
	return s.deleteWhere(func(e transcache.CacheEntry) bool {
		return e.TargetLanguage == lang
	}), nil
}

// DeleteAll removes everything.
func (s *MemoryStore) DeleteAll(ctx context.Context) (int, error) {
	return s.deleteWhere(func(transcache.CacheEntry) bool { return true }), nil
}

// Stats counts live entries.
func (s *MemoryStore) Stats(ctx context.Context) (transcache.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	stats := transcache.Stats{ByLanguage: make(map[string]int)}
	for _, entry := range s.entries {
		if s.expired(entry, now) {
			continue
		}
		stats.TotalEntries++
		stats.ByLanguage[entry.TargetLanguage]++
		if entry.IsManualOverride {
			stats.ManualOverrides++
		}
	}
	return stats, nil
}

// Entries returns all live entries ordered by id.
func (s *MemoryStore) Entries(ctx context.Context) ([]transcache.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	result := make([]transcache.CacheEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if s.expired(entry, now) {
			continue
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Len returns the number of entries in the store (including expired ones).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
