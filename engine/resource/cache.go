// Package resource holds the per-context GPU instance side-table shared by every resource kind.
// Logical resources (shapes, shaders, textures, shadow maps, uniform blocks) never store
// context-specific state; a Cache maps (resource ID, context ID) to the uploaded instance.
package resource

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/google/uuid"
)

// Key is the composite side-table key of one uploaded instance.
type Key struct {
	Resource uuid.UUID
	Context  gpu.ContextID
}

// UploadFunc creates or repopulates the GPU instance of a resource on ctx. When exists is true,
// prev is the instance created earlier for the same context and should be updated in place,
// reallocating only if its size no longer fits. A replacement is created before prev is released;
// on error prev must still be live, since the cache keeps owning it and releases it exactly once.
type UploadFunc[T any] func(ctx gpu.Context, prev T, exists bool) (T, error)

// ReleaseFunc destroys an instance on the context that created it.
type ReleaseFunc[T any] func(ctx gpu.Context, instance T)

// EntryInfo is a read-only snapshot of one cache entry.
type EntryInfo struct {
	Version uint64
	Uploads int
	Dirty   bool
	Err     error
}

type entry[T any] struct {
	instance T
	ctx      gpu.Context
	version  uint64
	uploads  int
	dirty    bool
	valid    bool
	err      error
}

// Cache is a lazy per-context GPU object cache.
type Cache[T any] struct {
	mu      *sync.Mutex
	name    string
	entries map[Key]*entry[T]
	release ReleaseFunc[T]
}

// NewCache creates an empty cache.
//
// Parameters:
//   - name: a label used in error messages (e.g. "shape")
//   - release: destroys an instance when it is forgotten or its context is released; may be nil
//
// Returns:
//   - *Cache[T]: the new cache
func NewCache[T any](name string, release ReleaseFunc[T]) *Cache[T] {
	return &Cache[T]{
		mu:      &sync.Mutex{},
		name:    name,
		entries: make(map[Key]*entry[T]),
		release: release,
	}
}

// Resolve returns the instance of res for ctx, creating it on first use and repopulating it when
// the resource version moved or the entry was invalidated. A failed upload marks the entry failed;
// later resolves return the same error without calling upload again.
//
// Parameters:
//   - ctx: the context the instance belongs to
//   - res: the logical resource
//   - upload: creates or repopulates the instance
//
// Returns:
//   - T: the instance
//   - error: the upload error, or an error wrapping gpu.ErrResourceFailed for an earlier failure
func (c *Cache[T]) Resolve(ctx gpu.Context, res Resource, upload UploadFunc[T]) (T, error) {
	var zero T
	key := Key{Resource: res.ID(), Context: ctx.ID()}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e != nil && e.err != nil {
		return zero, fmt.Errorf("%s %s: %w: %w", c.name, key.Resource, gpu.ErrResourceFailed, e.err)
	}

	version := res.Version()
	if e != nil && e.valid && !e.dirty && e.version == version {
		return e.instance, nil
	}

	if e == nil {
		e = &entry[T]{ctx: ctx}
		c.entries[key] = e
	}

	inst, err := upload(ctx, e.instance, e.valid)
	if err != nil {
		// prev, if any, stays owned by the entry and is released by Forget or ReleaseContext.
		e.err = err
		return zero, err
	}
	e.instance = inst
	e.valid = true
	e.version = version
	e.dirty = false
	e.uploads++
	return inst, nil
}

// Lookup returns the cached instance without uploading.
//
// Returns:
//   - T: the instance, or the zero value
//   - bool: false if the entry does not exist, failed, or was never uploaded
func (c *Cache[T]) Lookup(id uuid.UUID, ctxID gpu.ContextID) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[Key{Resource: id, Context: ctxID}]
	if e == nil || !e.valid || e.err != nil {
		var zero T
		return zero, false
	}
	return e.instance, true
}

// Invalidate marks a single (resource, context) entry dirty; only that context re-uploads.
func (c *Cache[T]) Invalidate(id uuid.UUID, ctxID gpu.ContextID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[Key{Resource: id, Context: ctxID}]; e != nil {
		e.dirty = true
	}
}

// Info returns a snapshot of an entry.
func (c *Cache[T]) Info(id uuid.UUID, ctxID gpu.ContextID) (EntryInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[Key{Resource: id, Context: ctxID}]
	if e == nil {
		return EntryInfo{}, false
	}
	return EntryInfo{Version: e.version, Uploads: e.uploads, Dirty: e.dirty, Err: e.err}, true
}

// Failed returns the failure recorded for an entry, or nil.
func (c *Cache[T]) Failed(id uuid.UUID, ctxID gpu.ContextID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[Key{Resource: id, Context: ctxID}]; e != nil {
		return e.err
	}
	return nil
}

// Len returns the number of entries, failed ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Forget releases every context's instance of a resource and drops its entries.
func (c *Cache[T]) Forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if key.Resource != id {
			continue
		}
		c.releaseEntry(e)
		delete(c.entries, key)
	}
}

// ReleaseContext releases every instance owned by a context, used when the context is torn down.
func (c *Cache[T]) ReleaseContext(ctxID gpu.ContextID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if key.Context != ctxID {
			continue
		}
		c.releaseEntry(e)
		delete(c.entries, key)
	}
}

func (c *Cache[T]) releaseEntry(e *entry[T]) {
	if c.release != nil && e.valid {
		c.release(e.ctx, e.instance)
	}
}
