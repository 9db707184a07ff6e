package counter

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in tests and single-node
// deployments. A single mutex guards the maps, which makes every
// operation atomic per key.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]memoryEntry
	lists  map[string]memoryListEntry
	now    func() time.Time
}

type memoryEntry struct {
	value    string
	deadline time.Time // zero = no expiry
}

type memoryListEntry struct {
	items    []string
	deadline time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryEntry),
		lists:  make(map[string]memoryListEntry),
		now:    time.Now,
	}
}

// SetClock overrides the store's time source. Tests use it to step past
// TTL deadlines without sleeping.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) expired(deadline time.Time) bool {
	return !deadline.IsZero() && !s.now().Before(deadline)
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.values[key]
	if !ok || s.expired(entry.deadline) {
		delete(s.values, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deadline time.Time
	if ttl > 0 {
		deadline = s.now().Add(ttl)
	}
	s.values[key] = memoryEntry{value: value, deadline: deadline}
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.values[key]
	if !ok || s.expired(entry.deadline) {
		var deadline time.Time
		if ttl > 0 {
			deadline = s.now().Add(ttl)
		}
		s.values[key] = memoryEntry{value: "1", deadline: deadline}
		return 1, nil
	}

	n, _ := strconv.ParseInt(entry.value, 10, 64)
	n++
	entry.value = strconv.FormatInt(n, 10)
	s.values[key] = entry
	return n, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.values[key]; ok && !s.expired(entry.deadline) {
		entry.deadline = s.now().Add(ttl)
		s.values[key] = entry
	}
	if entry, ok := s.lists[key]; ok && !s.expired(entry.deadline) {
		entry.deadline = s.now().Add(ttl)
		s.lists[key] = entry
	}
	return nil
}

func (s *MemoryStore) ListAppendTrim(_ context.Context, key, value string, maxLen int64, ttl time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lists[key]
	if !ok || s.expired(entry.deadline) {
		entry = memoryListEntry{}
	}

	entry.items = append(entry.items, value)
	if int64(len(entry.items)) > maxLen {
		entry.items = entry.items[int64(len(entry.items))-maxLen:]
	}
	if ttl > 0 {
		entry.deadline = s.now().Add(ttl)
	}
	s.lists[key] = entry

	out := make([]string, len(entry.items))
	copy(out, entry.items)
	return out, nil
}

// ListRange returns the full list at key, empty when absent. It is not
// part of the Store interface; tests use it to inspect list state.
func (s *MemoryStore) ListRange(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lists[key]
	if !ok || s.expired(entry.deadline) {
		delete(s.lists, key)
		return nil, nil
	}
	out := make([]string, len(entry.items))
	copy(out, entry.items)
	return out, nil
}

func (s *MemoryStore) CountPrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for key, entry := range s.values {
		if strings.HasPrefix(key, prefix) && !s.expired(entry.deadline) {
			count++
		}
	}
	for key, entry := range s.lists {
		if strings.HasPrefix(key, prefix) && !s.expired(entry.deadline) {
			count++
		}
	}
	return count, nil
}
