package detection

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ModelCache keeps loaded models keyed by file path so repeated calls skip the
// disk read and parse.
//
// An entry is reused while the file's modification time and size are
// unchanged; otherwise the file is loaded again. Concurrent requests for the
// same path share a single load.
//
// Get hands out a reference with a release func. A model that leaves the cache
// (file changed, Evict, Clear) is closed once its last reference is released,
// so native backends never leak and never close under a running Detect.
//
// ModelCache is safe for concurrent use.
type ModelCache struct {
	loader Loader
	group  singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	ref     *modelRef
	modTime time.Time
	size    int64
}

func (e cacheEntry) fresh(info os.FileInfo) bool {
	return e.modTime.Equal(info.ModTime()) && e.size == info.Size()
}

// modelRef counts the callers holding a model. Fields are guarded by
// ModelCache.mu.
type modelRef struct {
	model   Model
	refs    int
	retired bool
	closed  bool
}

// retire marks r as no longer cached and returns its model when nobody holds
// it, in which case the caller must close it outside the lock.
func (r *modelRef) retire() Model {
	r.retired = true
	if r.refs == 0 && !r.closed {
		r.closed = true
		return r.model
	}
	return nil
}

// NewModelCache creates an empty cache that loads models with loader.
func NewModelCache(loader Loader) *ModelCache {
	return &ModelCache{
		loader:  loader,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the model for path and a func that releases it, loading the
// model when it is not cached or the file has changed since it was loaded.
// The release func must be called once the caller is done with the model;
// extra calls are no-ops. Failures wrap ErrModelLoad and are not cached.
func (c *ModelCache) Get(path string) (Model, func(), error) {
	if path == "" {
		return nil, nil, fmt.Errorf("%w: empty model path", ErrModelLoad)
	}

	for {
		info, err := os.Stat(path)
		if err != nil {
			c.Evict(path)
			return nil, nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
		}

		if m, release, ok := c.acquire(path, info); ok {
			return m, release, nil
		}

		v, err, _ := c.group.Do(path, func() (interface{}, error) {
			return c.load(path, info)
		})
		if err != nil {
			return nil, nil, err
		}
		// The loaded model may already have been replaced and closed by a
		// newer load; go around and pick up whatever is current.
		if m, release, ok := c.acquireRef(v.(*modelRef)); ok {
			return m, release, nil
		}
	}
}

// load stores a freshly loaded model for path, retiring the entry it replaces.
func (c *ModelCache) load(path string, info os.FileInfo) (*modelRef, error) {
	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && e.fresh(info) {
		return e.ref, nil
	}

	m, err := LoadModel(c.loader, path)
	if err != nil {
		return nil, err
	}
	ref := &modelRef{model: m}

	c.mu.Lock()
	old, had := c.entries[path]
	c.entries[path] = cacheEntry{ref: ref, modTime: info.ModTime(), size: info.Size()}
	var stale Model
	if had {
		stale = old.ref.retire()
	}
	c.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	return ref, nil
}

func (c *ModelCache) acquire(path string, info os.FileInfo) (Model, func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || !e.fresh(info) {
		return nil, nil, false
	}
	e.ref.refs++
	return e.ref.model, c.releaser(e.ref), true
}

func (c *ModelCache) acquireRef(r *modelRef) (Model, func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.closed {
		return nil, nil, false
	}
	r.refs++
	return r.model, c.releaser(r), true
}

func (c *ModelCache) releaser(r *modelRef) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			r.refs--
			var m Model
			if r.retired && r.refs == 0 && !r.closed {
				r.closed = true
				m = r.model
			}
			c.mu.Unlock()
			if m != nil {
				m.Close()
			}
		})
	}
}

// Len returns the number of cached models.
func (c *ModelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Evict drops the model cached for path, if any. It is closed now, or when
// its last holder releases it.
func (c *ModelCache) Evict(path string) {
	c.mu.Lock()
	e, ok := c.entries[path]
	delete(c.entries, path)
	var m Model
	if ok {
		m = e.ref.retire()
	}
	c.mu.Unlock()
	if m != nil {
		m.Close()
	}
}

// Clear drops every cached model, closing each now or on its last release.
func (c *ModelCache) Clear() {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[string]cacheEntry)
	idle := make([]Model, 0, len(old))
	for _, e := range old {
		if m := e.ref.retire(); m != nil {
			idle = append(idle, m)
		}
	}
	c.mu.Unlock()
	for _, m := range idle {
		m.Close()
	}
}
