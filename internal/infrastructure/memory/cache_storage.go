package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
)

// CacheStorage keeps named stores in process memory. Entries do not survive a restart.
type CacheStorage struct {
	mu     sync.RWMutex
	seq    int
	stores map[string]*CacheStore
}

func NewCacheStorage() *CacheStorage {
	return &CacheStorage{stores: make(map[string]*CacheStore)}
}

func (s *CacheStorage) Open(_ context.Context, name string) (ports.CacheStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stores[name]; ok {
		return st, nil
	}
	s.seq++
	st := &CacheStore{name: name, seq: s.seq, entries: make(map[string]*asset.Entry)}
	s.stores[name] = st
	return st, nil
}

func (s *CacheStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stores[name]
	return ok, nil
}

func (s *CacheStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[name]
	if !ok {
		return false, nil
	}
	delete(s.stores, name)
	st.drop()
	return true, nil
}

func (s *CacheStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*CacheStore, 0, len(s.stores))
	for _, st := range s.stores {
		all = append(all, st)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	names := make([]string, len(all))
	for i, st := range all {
		names[i] = st.name
	}
	return names, nil
}

// CacheStore is one named in-memory store.
type CacheStore struct {
	name string
	seq  int

	mu      sync.RWMutex
	entries map[string]*asset.Entry
}

func (c *CacheStore) Name() string { return c.name }

func (c *CacheStore) Get(_ context.Context, url string) (*asset.Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[url]
	if !ok {
		return nil, false, nil
	}
	return copyEntry(e), true, nil
}

func (c *CacheStore) Put(_ context.Context, entry *asset.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*asset.Entry)
	}
	c.entries[entry.URL] = copyEntry(entry)
	return nil
}

func (c *CacheStore) PutAll(_ context.Context, entries []*asset.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*asset.Entry)
	}
	for _, e := range entries {
		c.entries[e.URL] = copyEntry(e)
	}
	return nil
}

func (c *CacheStore) Delete(_ context.Context, url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[url]
	delete(c.entries, url)
	return ok, nil
}

func (c *CacheStore) Keys(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// drop empties a store removed from storage so stale handles see no entries.
func (c *CacheStore) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

func copyEntry(e *asset.Entry) *asset.Entry {
	cp := *e
	cp.Header = e.Header.Clone()
	cp.Body = append([]byte(nil), e.Body...)
	if e.Vary != nil {
		cp.Vary = make(map[string]string, len(e.Vary))
		for k, v := range e.Vary {
			cp.Vary[k] = v
		}
	}
	return &cp
}
