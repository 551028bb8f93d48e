// Package querycache caches remote query results per canonical key with
// stale-while-revalidate semantics.
//
// A Fetch always answers from the cache immediately and, when the entry is
// missing or older than the staleness window, starts one background request
// for that key. Only one request per key is in flight at a time; later
// callers attach to it. Each request is tagged with a generation so that a
// response superseded by an invalidation is dropped on arrival.
package querycache

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"scooby/logging"
	"scooby/metrics"
)

const (
	ListingStaleTime = 5 * time.Minute
	StatsStaleTime   = 30 * time.Minute
)

type Status string

const (
	StatusFresh   Status = "fresh"
	StatusStale   Status = "stale-serving"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// Params are the query parameters a key is derived from.
type Params map[string]string

// Key returns the canonical key for params within namespace. Empty values
// are dropped and keys are sorted, so equal queries always share a key.
func Key(namespace string, params Params) string {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	if enc := q.Encode(); enc != "" {
		return namespace + "?" + enc
	}
	return namespace
}

// Entry is a point-in-time view of one cache key.
type Entry[T any] struct {
	Key       string
	Data      T
	HasData   bool
	FetchedAt time.Time
	Status    Status
	// Err is the last request error. It is kept alongside Data, never instead of it.
	Err error
	// Placeholder is set by an Observer when Data belongs to the previous key.
	Placeholder bool
	// Revision orders snapshots of the same key.
	Revision uint64
}

// FetchFunc performs the network request for params.
type FetchFunc[T any] func(ctx context.Context, params Params) (T, error)

type Options struct {
	Namespace string
	StaleTime time.Duration
	Metrics   *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

type entry[T any] struct {
	params    Params
	data      T
	hasData   bool
	fetchedAt time.Time
	err       error
	inflight  bool
	gen       uint64
	rev       uint64
}

type Cache[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	fetch  FetchFunc[T]
	opts   Options
	group  singleflight.Group
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry[T]
	gen     uint64
	rev     uint64
	subs    map[string]map[int]func(Entry[T])
	nextSub int
}

func New[T any](fetch FetchFunc[T], opts Options) *Cache[T] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache[T]{
		ctx:     ctx,
		cancel:  cancel,
		fetch:   fetch,
		opts:    opts,
		entries: make(map[string]*entry[T]),
		subs:    make(map[string]map[int]func(Entry[T])),
	}
}

func (c *Cache[T]) Namespace() string { return c.opts.Namespace }

// Key returns the canonical key for params in this cache's namespace.
func (c *Cache[T]) Key(params Params) string {
	return Key(c.opts.Namespace, params)
}

// Fetch returns the cached entry for params without waiting, starting a
// background request when the entry is missing or stale.
func (c *Cache[T]) Fetch(params Params) Entry[T] {
	key := c.Key(params)

	c.mu.Lock()
	e := c.entries[key]
	c.countLookup(e)
	started := false
	if e == nil || (!e.inflight && c.isStale(e)) {
		e = c.startLocked(key, params)
		started = true
	}
	snap := c.snapshotLocked(key, e)
	subs := c.subscribersLocked(key)
	c.mu.Unlock()

	if started {
		notify(subs, snap)
	}
	return snap
}

// Load waits for usable data: it returns fresh cached data directly,
// otherwise it joins (or starts) the request for params and returns its result.
func (c *Cache[T]) Load(ctx context.Context, params Params) (T, error) {
	key := c.Key(params)

	c.mu.Lock()
	e := c.entries[key]
	c.countLookup(e)
	if e != nil && e.hasData && !c.isStale(e) {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	var subs []func(Entry[T])
	var snap Entry[T]
	if e == nil || !e.inflight {
		e = c.startLocked(key, params)
		snap = c.snapshotLocked(key, e)
		subs = c.subscribersLocked(key)
	}
	// The call registered under key is the one for e.gen: it cannot finish
	// while we hold mu, because completion takes mu first.
	ch := c.group.DoChan(key, c.requestFunc(key, params, e.gen))
	c.mu.Unlock()

	notify(subs, snap)

	select {
	case res := <-ch:
		var zero T
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek returns the entry for params without triggering a request.
func (c *Cache[T]) Peek(params Params) (Entry[T], bool) {
	key := c.Key(params)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry[T]{Key: key}, false
	}
	return c.snapshotLocked(key, e), true
}

// Invalidate evicts every entry whose key starts with prefix and returns how
// many were removed. Keys that still have subscribers are fetched again at
// once; everything else goes to the network on its next Fetch.
func (c *Cache[T]) Invalidate(prefix string) int {
	c.mu.Lock()
	var refetch []Params
	n := 0
	for key, e := range c.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		delete(c.entries, key)
		c.group.Forget(key)
		n++
		if len(c.subs[key]) > 0 {
			refetch = append(refetch, e.params)
		}
	}
	c.mu.Unlock()

	if n > 0 {
		c.opts.Metrics.CacheEvictions.WithLabelValues(c.opts.Namespace).Add(float64(n))
		logging.Debugf("cache %s: invalidated %d entries with prefix %q", c.opts.Namespace, n, prefix)
	}
	for _, params := range refetch {
		c.Fetch(params)
	}
	return n
}

// Subscribe calls fn with every new snapshot of key.
func (c *Cache[T]) Subscribe(key string, fn func(Entry[T])) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	if c.subs[key] == nil {
		c.subs[key] = make(map[int]func(Entry[T]))
	}
	c.subs[key][id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs[key], id)
		if len(c.subs[key]) == 0 {
			delete(c.subs, key)
		}
		c.mu.Unlock()
	}
}

// Close cancels in-flight requests and waits for them to return.
func (c *Cache[T]) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Cache[T]) isStale(e *entry[T]) bool {
	if !e.hasData {
		return true
	}
	return c.opts.Now().Sub(e.fetchedAt) > c.opts.StaleTime
}

func (c *Cache[T]) countLookup(e *entry[T]) {
	result := "hit"
	switch {
	case e == nil || !e.hasData:
		result = "miss"
	case c.isStale(e):
		result = "stale"
	}
	c.opts.Metrics.CacheLookups.WithLabelValues(c.opts.Namespace, result).Inc()
}

// startLocked marks key in flight under a new generation and launches the
// request. Any call still registered for key belongs to an older generation
// and is forgotten so that it cannot be joined.
func (c *Cache[T]) startLocked(key string, params Params) *entry[T] {
	e := c.entries[key]
	if e == nil {
		e = &entry[T]{params: params}
		c.entries[key] = e
	}
	c.gen++
	e.gen = c.gen
	e.inflight = true
	c.rev++
	e.rev = c.rev

	c.opts.Metrics.CacheRevalidations.WithLabelValues(c.opts.Namespace).Inc()
	logging.Debugf("cache %s: request %d for %s", c.opts.Namespace, e.gen, key)

	c.group.Forget(key)
	c.wg.Add(1)
	c.group.DoChan(key, c.requestFunc(key, params, e.gen))
	return e
}

func (c *Cache[T]) requestFunc(key string, params Params, gen uint64) func() (any, error) {
	return func() (any, error) {
		defer c.wg.Done()
		data, err := c.fetch(c.ctx, params)
		c.complete(key, gen, data, err)
		return data, err
	}
}

func (c *Cache[T]) complete(key string, gen uint64, data T, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.gen != gen {
		c.mu.Unlock()
		c.opts.Metrics.CacheDiscarded.WithLabelValues(c.opts.Namespace).Inc()
		logging.Debugf("cache %s: discarded superseded response %d for %s", c.opts.Namespace, gen, key)
		return
	}

	e.inflight = false
	if err != nil {
		e.err = err
		c.opts.Metrics.CacheFailures.WithLabelValues(c.opts.Namespace).Inc()
	} else {
		e.data = data
		e.hasData = true
		e.fetchedAt = c.opts.Now()
		e.err = nil
	}
	c.rev++
	e.rev = c.rev
	snap := c.snapshotLocked(key, e)
	subs := c.subscribersLocked(key)
	c.mu.Unlock()

	notify(subs, snap)
}

func (c *Cache[T]) snapshotLocked(key string, e *entry[T]) Entry[T] {
	snap := Entry[T]{
		Key:       key,
		Data:      e.data,
		HasData:   e.hasData,
		FetchedAt: e.fetchedAt,
		Err:       e.err,
		Revision:  e.rev,
	}
	switch {
	case e.inflight:
		snap.Status = StatusLoading
	case e.err != nil:
		snap.Status = StatusError
	case c.isStale(e):
		snap.Status = StatusStale
	default:
		snap.Status = StatusFresh
	}
	return snap
}

func (c *Cache[T]) subscribersLocked(key string) []func(Entry[T]) {
	subs := make([]func(Entry[T]), 0, len(c.subs[key]))
	for _, fn := range c.subs[key] {
		subs = append(subs, fn)
	}
	return subs
}

func notify[T any](subs []func(Entry[T]), snap Entry[T]) {
	for _, fn := range subs {
		fn(snap)
	}
}
