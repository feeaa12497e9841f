package engine

import (
	"encoding/json"
	"fmt"

	"github.com/rshade/adcarbon/internal/engine/cache"
)

// CacheStore is a ResultStore backed by a cache.FileStore. Each activity is a
// cache namespace.
type CacheStore struct {
	files *cache.FileStore
}

var _ ResultStore = (*CacheStore)(nil)

// NewCacheStore wraps files.
func NewCacheStore(files *cache.FileStore) *CacheStore {
	return &CacheStore{files: files}
}

// Load returns the persisted terminal result for key.
func (c *CacheStore) Load(key EntryKey) (Result, bool) {
	entry, err := c.files.Get(key.String())
	if err != nil {
		return Result{}, false
	}
	var r Result
	if err = json.Unmarshal(entry.Data, &r); err != nil || r.Key != key {
		return Result{}, false
	}
	return r, r.Status.Terminal()
}

// Save persists a terminal result. Pending results are ignored.
func (c *CacheStore) Save(r Result) error {
	if !r.Status.Terminal() {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", r.Key, err)
	}
	return c.files.Set(r.Key.String(), data)
}

// DeleteActivity removes every persisted result of activityID.
func (c *CacheStore) DeleteActivity(activityID string) error {
	return c.files.DeleteNamespace(activityID)
}
