package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/metrics"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

// TreeLoader loads tree versions from storage.
type TreeLoader interface {
	GetByID(ctx context.Context, tenantID, treeVersionID string) (*models.TreeVersion, error)
}

// CachedTree is a loaded tree version with its content hash.
type CachedTree struct {
	Version *models.TreeVersion
	Hash    string
}

// TreeCache caches loaded tree versions. A version's tree never changes once stored but its status
// does, so callers that gate on status use Refresh.
type TreeCache struct {
	cache   map[string]*cacheEntry
	mu      sync.RWMutex
	loader  TreeLoader
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	hits    int64
	misses  int64
}

type cacheEntry struct {
	tree      *CachedTree
	expiresAt time.Time
}

type TreeCacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

func DefaultTreeCacheConfig() TreeCacheConfig {
	return TreeCacheConfig{
		MaxSize: 500,
		TTL:     5 * time.Minute,
	}
}

func NewTreeCache(loader TreeLoader, config TreeCacheConfig) *TreeCache {
	if config.MaxSize < 1 {
		config.MaxSize = 1
	}
	return &TreeCache{
		cache:   make(map[string]*cacheEntry),
		loader:  loader,
		maxSize: config.MaxSize,
		ttl:     config.TTL,
		now:     time.Now,
	}
}

func cacheKey(tenantID, treeVersionID string) string {
	return fmt.Sprintf("%s:%s", tenantID, treeVersionID)
}

// Get returns the tree version from cache or loads, hashes and stores it.
func (c *TreeCache) Get(ctx context.Context, tenantID, treeVersionID string) (*CachedTree, error) {
	key := cacheKey(tenantID, treeVersionID)

	c.mu.RLock()
	entry, exists := c.cache[key]
	c.mu.RUnlock()

	if exists && c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		metrics.CacheRequestsTotal.WithLabelValues("tree", metrics.CacheResult(true)).Inc()
		return entry.tree, nil
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	metrics.CacheRequestsTotal.WithLabelValues("tree", metrics.CacheResult(false)).Inc()

	version, err := c.loader.GetByID(ctx, tenantID, treeVersionID)
	if err != nil {
		return nil, err
	}
	hash, err := models.TreeHash(version.Tree)
	if err != nil {
		return nil, err
	}
	tree := &CachedTree{Version: version, Hash: hash}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cache[key]; !ok && len(c.cache) >= c.maxSize {
		c.evictHalf()
	}
	c.cache[key] = &cacheEntry{
		tree:      tree,
		expiresAt: c.now().Add(c.ttl),
	}

	return tree, nil
}

// evictHalf drops expired entries, then arbitrary ones until at most half remain. Caller holds the
// lock.
func (c *TreeCache) evictHalf() {
	now := c.now()
	for key, entry := range c.cache {
		if !now.Before(entry.expiresAt) {
			delete(c.cache, key)
		}
	}
	target := c.maxSize / 2
	for key := range c.cache {
		if len(c.cache) <= target {
			break
		}
		delete(c.cache, key)
	}
}

func (c *TreeCache) Invalidate(tenantID, treeVersionID string) {
	c.mu.Lock()
	delete(c.cache, cacheKey(tenantID, treeVersionID))
	c.mu.Unlock()
}

// Refresh drops any cached entry and loads the version from storage again.
func (c *TreeCache) Refresh(ctx context.Context, tenantID, treeVersionID string) (*CachedTree, error) {
	c.Invalidate(tenantID, treeVersionID)
	return c.Get(ctx, tenantID, treeVersionID)
}

type CacheStats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

func (c *TreeCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Size:   len(c.cache),
		Hits:   c.hits,
		Misses: c.misses,
	}
}
