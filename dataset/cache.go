package dataset

import (
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"marginperceptron/ml"
)

// cacheKey changes whenever the file is rewritten, so stale entries are
// never returned; they age out of the LRU instead.
type cacheKey struct {
	path    string
	size    int64
	modTime time.Time
}

// Cache keeps recently loaded datasets in memory. It is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[cacheKey, *ml.Dataset]
	load    func(string) (*ml.Dataset, error)
}

// NewCache returns a cache holding at most size datasets.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[cacheKey, *ml.Dataset](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries, load: Load}, nil
}

// Get returns the dataset at path, loading it when the file is new or has
// changed since it was cached.
func (c *Cache) Get(path string) (*ml.Dataset, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, false, err
	}
	key := cacheKey{path: abs, size: info.Size(), modTime: info.ModTime()}
	if ds, ok := c.entries.Get(key); ok {
		return ds, true, nil
	}
	ds, err := c.load(abs)
	if err != nil {
		return nil, false, err
	}
	c.entries.Add(key, ds)
	return ds, false, nil
}

// Len returns the number of cached datasets.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached dataset.
func (c *Cache) Purge() {
	c.entries.Purge()
}
