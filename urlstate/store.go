// Package urlstate keeps committed search state in a shareable query string.
//
// The Store is the only owner of the query. Readers take immutable
// Snapshots; SetParams and ClearParams replace the whole query in one step,
// so a subscriber never observes a mix of two writes.
package urlstate

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Snapshot is an immutable view of the query at one version.
type Snapshot struct {
	values  map[string]string
	version uint64
}

// Get returns the value for key and whether it is present.
func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of present keys.
func (s Snapshot) Len() int { return len(s.values) }

// Version increases on every write to the owning Store.
func (s Snapshot) Version() uint64 { return s.version }

// Keys returns the present keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the snapshot as a plain map.
func (s Snapshot) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Encode returns the canonical query string: keys sorted, values escaped.
func (s Snapshot) Encode() string {
	q := url.Values{}
	for k, v := range s.values {
		q.Set(k, v)
	}
	return q.Encode()
}

// Store is the single source of truth for committed filter state.
type Store struct {
	mu       sync.RWMutex
	query    url.Values
	version  uint64
	snapshot *Snapshot

	nextSub int
	subs    map[int]func(Snapshot)
}

// New creates a store from a raw query string ("a=1&b=2", with or without
// the leading "?").
func New(rawQuery string) (*Store, error) {
	q, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return nil, err
	}
	return &Store{query: q, subs: make(map[int]func(Snapshot))}, nil
}

// GetParam returns the parsed value for key, or def when the key is missing
// or parse rejects it. A nil parse returns the raw string, which requires T
// to be string; any other T falls back to def.
func GetParam[T any](s *Store, key string, def T, parse func(string) (T, error)) T {
	raw, ok := s.lookup(key)
	if !ok {
		return def
	}
	if parse == nil {
		if v, ok := any(raw).(T); ok {
			return v
		}
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

// Get returns the raw value for key, or def when missing.
func (s *Store) Get(key, def string) string {
	return GetParam(s, key, def, nil)
}

// GetNumberParam parses key as a finite number. Missing, empty, NaN,
// infinite or otherwise unparsable values yield def without error.
func (s *Store) GetNumberParam(key string, def *float64) *float64 {
	return GetParam(s, key, def, parseFinite)
}

func parseFinite(raw string) (*float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, strconv.ErrSyntax
	}
	return &v, nil
}

func (s *Store) lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.query[key]; !ok {
		return "", false
	}
	return s.query.Get(key), true
}

// GetAllParams returns a snapshot of every present key. The snapshot is
// memoised and only rebuilt after the query changes.
func (s *Store) GetAllParams() Snapshot {
	s.mu.RLock()
	if snap := s.snapshot; snap != nil {
		s.mu.RUnlock()
		return *snap
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	if s.snapshot == nil {
		values := make(map[string]string, len(s.query))
		for k := range s.query {
			values[k] = s.query.Get(k)
		}
		s.snapshot = &Snapshot{values: values, version: s.version}
	}
	return *s.snapshot
}

// SetParams replaces the whole query with params. Keys with an empty value
// are omitted.
func (s *Store) SetParams(params map[string]string) {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	s.replace(q)
}

// ClearParams resets the query to empty.
func (s *Store) ClearParams() {
	s.replace(url.Values{})
}

func (s *Store) replace(q url.Values) {
	s.mu.Lock()
	s.query = q
	s.version++
	s.snapshot = nil
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Subscribe registers fn to receive every new snapshot after a write.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Encode returns the current canonical query string.
func (s *Store) Encode() string {
	return s.GetAllParams().Encode()
}

// URL renders the shareable address for base with the current query.
func (s *Store) URL(base string) string {
	q := s.Encode()
	if q == "" {
		return base
	}
	return base + "?" + q
}
