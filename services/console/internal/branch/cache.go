package branch

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
)

const defaultCacheTTL = 30 * time.Second

// ListCache is a stale-while-revalidate cache over Repository.List with one
// entry per filter combination. A fresh entry is served directly; a stale
// entry is served immediately while a background revalidation refreshes it;
// a miss blocks on the fetch. Concurrent fetches for the same filters are
// coalesced.
type ListCache struct {
	repo   Repository
	ttl    time.Duration
	now    func() time.Time
	logger apt.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	data      []Branch
	err       error
	fetchedAt time.Time
	fetched   bool
	inflight  chan struct{} // non-nil while a fetch is running
}

func NewListCache(repo Repository, ttl time.Duration, logger apt.Logger) *ListCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &ListCache{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the branch list for the given filters, fetching when needed.
func (c *ListCache) Get(ctx context.Context, filters Filters) ([]Branch, error) {
	key := filters.Query()

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}

	if e.fetched && e.err == nil {
		age := c.now().Sub(e.fetchedAt)
		data := cloneBranches(e.data)
		if age >= c.ttl && e.inflight == nil {
			done := make(chan struct{})
			e.inflight = done
			go c.revalidate(key, filters, done)
		}
		c.mu.Unlock()
		return data, nil
	}

	// Miss (or previous fetch failed): block, coalescing with any fetch
	// already in flight.
	if e.inflight != nil {
		done := e.inflight
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		// Read the result off the entry we waited on: Invalidate may have
		// dropped it from the map while the fetch was running, but the
		// fetcher still records its outcome on this entry before closing
		// the channel.
		c.mu.Lock()
		data := cloneBranches(e.data)
		err := e.err
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return data, nil
	}

	done := make(chan struct{})
	e.inflight = done
	c.mu.Unlock()

	data, err := c.repo.List(ctx, filters)

	c.mu.Lock()
	e.fetched = true
	e.fetchedAt = c.now()
	e.data = data
	e.err = err
	e.inflight = nil
	close(done)
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return cloneBranches(data), nil
}

func (c *ListCache) revalidate(key string, filters Filters, done chan struct{}) {
	data, err := c.repo.List(context.Background(), filters)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(done)

	e, ok := c.entries[key]
	if !ok {
		// Invalidated while we were fetching; drop the result.
		return
	}
	e.inflight = nil
	if err != nil {
		// Keep serving the stale copy; the next stale hit retries.
		c.logger.Debug("Branch list revalidation failed", "filters", key, "error", err)
		e.fetchedAt = c.now()
		return
	}
	e.data = data
	e.err = nil
	e.fetched = true
	e.fetchedAt = c.now()
}

// Invalidate drops every cached entry.
func (c *ListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Loading reports whether any fetch is currently in flight.
func (c *ListCache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.inflight != nil {
			return true
		}
	}
	return false
}

// LastErr returns the recorded fetch error for the given filters, if any.
func (c *ListCache) LastErr(filters Filters) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[filters.Query()]; ok {
		return e.err
	}
	return nil
}

// SetClock overrides the cache's clock; tests only.
func (c *ListCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func cloneBranches(in []Branch) []Branch {
	if in == nil {
		return []Branch{}
	}
	out := make([]Branch, len(in))
	copy(out, in)
	return out
}
