package querycache

import "sync"

// Observer follows one key at a time on behalf of a view. Switching params
// makes the new key authoritative: notifications for any other key are
// ignored, so a slow response for an old filter set never reaches the view.
// While the new key has no data yet, the previous key's data is kept as a
// placeholder.
type Observer[T any] struct {
	cache    *Cache[T]
	onChange func()

	mu          sync.Mutex
	key         string
	params      Params
	unsubscribe func()
	current     Entry[T]
	last        T
	hasLast     bool
	closed      bool
}

// Observe returns an Observer that calls onChange whenever its current entry
// changes. onChange runs on the goroutine that produced the change and
// should only signal; read the entry with Current.
func (c *Cache[T]) Observe(onChange func()) *Observer[T] {
	return &Observer[T]{cache: c, onChange: onChange}
}

// SetParams points the observer at params and fetches them.
func (o *Observer[T]) SetParams(params Params) Entry[T] {
	key := o.cache.Key(params)

	o.mu.Lock()
	if o.closed {
		cur := o.current
		o.mu.Unlock()
		return cur
	}
	if key != o.key || o.unsubscribe == nil {
		if o.unsubscribe != nil {
			o.unsubscribe()
		}
		o.key = key
		o.params = params
		o.current = Entry[T]{Key: key}
		o.unsubscribe = o.cache.Subscribe(key, o.receive)
	}
	o.mu.Unlock()

	o.receive(o.cache.Fetch(params))
	return o.Current()
}

// Refetch fetches the current params again, which only reaches the network
// when the entry is stale or missing.
func (o *Observer[T]) Refetch() Entry[T] {
	o.mu.Lock()
	params := o.params
	active := o.unsubscribe != nil && !o.closed
	o.mu.Unlock()
	if !active {
		return o.Current()
	}
	o.receive(o.cache.Fetch(params))
	return o.Current()
}

func (o *Observer[T]) Key() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.key
}

func (o *Observer[T]) Current() Entry[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Close stops delivery. It does not cancel the shared request.
func (o *Observer[T]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
}

func (o *Observer[T]) receive(e Entry[T]) {
	o.mu.Lock()
	if o.closed || e.Key != o.key {
		o.mu.Unlock()
		return
	}
	if o.current.Revision != 0 && e.Revision <= o.current.Revision {
		o.mu.Unlock()
		return
	}
	if e.HasData {
		o.last = e.Data
		o.hasLast = true
	} else if o.hasLast {
		e.Data = o.last
		e.Placeholder = true
	}
	o.current = e
	fn := o.onChange
	o.mu.Unlock()

	if fn != nil {
		fn()
	}
}
