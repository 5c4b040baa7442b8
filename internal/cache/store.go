package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Store is the result-cache collaborator consulted by SELECT statements
// carrying a Cache option. Implementations wrap whatever backend the host
// application runs; MemoryStore is the in-process default.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tag string) error
}

type storeItem struct {
	value   []byte
	expires time.Time
}

// MemoryStore is a process-local Store with per-entry expiry.
// Tags are recorded per key and can be listed, but never evict anything.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]storeItem
	tags  map[string]map[string]struct{}
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]storeItem),
		tags:  make(map[string]map[string]struct{}),
		now:   time.Now,
	}
}

// Get returns the value stored under key unless it has expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !item.expires.IsZero() && !s.now().Before(item.expires) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return item.value, true, nil
}

// Set stores value under key. A zero ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, tag string) error {
	item := storeItem{value: value}
	if ttl > 0 {
		item.expires = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = item
	if tag != "" {
		keys, ok := s.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// Tagged lists the keys recorded under tag, sorted.
func (s *MemoryStore) Tagged(tag string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.tags[tag]))
	for k := range s.tags[tag] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key derives a cache key from a statement and its positional arguments.
func Key(query string, args []any) string {
	h := sha256.New()
	h.Write([]byte(query))
	for _, arg := range args {
		fmt.Fprintf(h, "\x00%T:%v", arg, arg)
	}
	return "quarry:" + hex.EncodeToString(h.Sum(nil))
}

// EncodeRows serializes result rows for a Store.
func EncodeRows(rows []map[string]any) ([]byte, error) {
	return msgpack.Marshal(rows)
}

// DecodeRows restores rows written by EncodeRows. Integers come back as
// int64 or uint64 and floats as float64.
func DecodeRows(data []byte) ([]map[string]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
