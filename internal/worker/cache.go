package worker

import (
	"sync"
)

// CachedAsset is one stored response body.
type CachedAsset struct {
	Body        []byte
	ContentType string
}

// AssetCache is a version-tagged in-memory asset store. Caches are exclusively
// owned by the worker; no other component writes to them.
type AssetCache struct {
	version string
	mu      sync.RWMutex
	entries map[string]CachedAsset
}

// Version returns the cache's version tag.
func (c *AssetCache) Version() string {
	return c.version
}

// Get returns the asset stored under path.
func (c *AssetCache) Get(path string) (CachedAsset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	asset, ok := c.entries[path]
	return asset, ok
}

// Put stores an asset under path.
func (c *AssetCache) Put(path string, asset CachedAsset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = asset
}

// Len returns the number of cached assets.
func (c *AssetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheStore holds every versioned cache. Activation deletes all caches not
// matching the current version so upgrades take effect without a reload.
type CacheStore struct {
	mu     sync.Mutex
	caches map[string]*AssetCache
}

// NewCacheStore creates an empty store.
func NewCacheStore() *CacheStore {
	return &CacheStore{
		caches: make(map[string]*AssetCache),
	}
}

// Open returns the cache for version, creating it when absent.
func (s *CacheStore) Open(version string) *AssetCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.caches[version]; ok {
		return c
	}
	c := &AssetCache{
		version: version,
		entries: make(map[string]CachedAsset),
	}
	s.caches[version] = c
	return c
}

// DeleteOthers removes every cache whose version differs from keep.
// Returns the number of caches deleted.
func (s *CacheStore) DeleteOthers(keep string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for version := range s.caches {
		if version != keep {
			delete(s.caches, version)
			deleted++
		}
	}
	return deleted
}

// Versions lists the stored cache versions.
func (s *CacheStore) Versions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := make([]string, 0, len(s.caches))
	for v := range s.caches {
		versions = append(versions, v)
	}
	return versions
}
