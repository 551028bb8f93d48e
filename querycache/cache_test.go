package querycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scooby/metrics"
)

type result struct {
	data []string
	err  error
}

type call struct {
	params Params
	reply  chan result
}

// gatedFetcher hands every request to the test and blocks until the test replies.
type gatedFetcher struct {
	calls chan call
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{calls: make(chan call, 16)}
}

func (g *gatedFetcher) fetch(ctx context.Context, params Params) ([]string, error) {
	c := call{params: params, reply: make(chan result, 1)}
	g.calls <- c
	select {
	case r := <-c.reply:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedFetcher) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a request")
		return call{}
	}
}

func (g *gatedFetcher) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-g.calls:
		t.Fatalf("unexpected request for %v", c.params)
	case <-time.After(50 * time.Millisecond):
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T) (*Cache[[]string], *gatedFetcher, *clock, *metrics.Metrics) {
	t.Helper()
	g := newGatedFetcher()
	clk := &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	m := metrics.New(nil)
	c := New(g.fetch, Options{
		Namespace: "properties",
		StaleTime: ListingStaleTime,
		Metrics:   m,
		Now:       clk.Now,
	})
	t.Cleanup(c.Close)
	return c, g, clk, m
}

func waitStatus(t *testing.T, c *Cache[[]string], params Params, want Status) Entry[[]string] {
	t.Helper()
	var e Entry[[]string]
	require.Eventually(t, func() bool {
		e, _ = c.Peek(params)
		return e.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return e
}

func TestKeyIsCanonical(t *testing.T) {
	a := Key("properties", Params{"region": "caldas", "city": "manizales", "min_price": ""})
	b := Key("properties", Params{"city": "manizales", "region": "caldas"})
	assert.Equal(t, "properties?city=manizales&region=caldas", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "stats-city", Key("stats-city", nil))
}

func TestFetchDeduplicatesConcurrentRequests(t *testing.T) {
	c, g, _, _ := newTestCache(t)
	params := Params{"city": "cali"}

	first := c.Fetch(params)
	second := c.Fetch(params)
	assert.Equal(t, StatusLoading, first.Status)
	assert.Equal(t, StatusLoading, second.Status)
	assert.False(t, first.HasData)

	req := g.next(t)
	assert.Equal(t, params, req.params)
	g.none(t)

	req.reply <- result{data: []string{"a"}}
	e := waitStatus(t, c, params, StatusFresh)
	assert.Equal(t, []string{"a"}, e.Data)
}

func TestFreshEntryServedWithoutRequest(t *testing.T) {
	c, g, clk, m := newTestCache(t)
	params := Params{"city": "cali"}

	c.Fetch(params)
	g.next(t).reply <- result{data: []string{"a"}}
	waitStatus(t, c, params, StatusFresh)

	clk.Advance(4 * time.Minute)
	e := c.Fetch(params)
	assert.Equal(t, StatusFresh, e.Status)
	assert.Equal(t, []string{"a"}, e.Data)
	g.none(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("properties", "hit")))
}

func TestStaleEntryServedWhileRevalidating(t *testing.T) {
	c, g, clk, _ := newTestCache(t)
	params := Params{"city": "cali"}

	c.Fetch(params)
	g.next(t).reply <- result{data: []string{"old"}}
	waitStatus(t, c, params, StatusFresh)

	clk.Advance(6 * time.Minute)
	peeked, _ := c.Peek(params)
	assert.Equal(t, StatusStale, peeked.Status)

	e := c.Fetch(params)
	assert.Equal(t, StatusLoading, e.Status)
	assert.True(t, e.HasData)
	assert.Equal(t, []string{"old"}, e.Data)

	c.Fetch(params)
	req := g.next(t)
	g.none(t)

	req.reply <- result{data: []string{"new"}}
	e = waitStatus(t, c, params, StatusFresh)
	assert.Equal(t, []string{"new"}, e.Data)
}

func TestFailedRequestKeepsPreviousData(t *testing.T) {
	c, g, clk, m := newTestCache(t)
	params := Params{"city": "cali"}

	c.Fetch(params)
	g.next(t).reply <- result{data: []string{"old"}}
	first := waitStatus(t, c, params, StatusFresh)

	clk.Advance(6 * time.Minute)
	c.Fetch(params)
	boom := errors.New("connection refused")
	g.next(t).reply <- result{err: boom}

	e := waitStatus(t, c, params, StatusError)
	assert.ErrorIs(t, e.Err, boom)
	assert.True(t, e.HasData)
	assert.Equal(t, []string{"old"}, e.Data)
	assert.Equal(t, first.FetchedAt, e.FetchedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheFailures.WithLabelValues("properties")))
}

func TestLoadJoinsInFlightRequest(t *testing.T) {
	c, g, _, _ := newTestCache(t)
	params := Params{"city": "cali"}

	c.Fetch(params)
	req := g.next(t)

	done := make(chan []string, 1)
	go func() {
		data, err := c.Load(context.Background(), params)
		assert.NoError(t, err)
		done <- data
	}()

	g.none(t)
	req.reply <- result{data: []string{"a"}}

	select {
	case data := <-done:
		assert.Equal(t, []string{"a"}, data)
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return")
	}

	data, err := c.Load(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, data)
	g.none(t)
}

func TestLoadReturnsRequestError(t *testing.T) {
	c, g, _, _ := newTestCache(t)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), nil)
		errc <- err
	}()
	g.next(t).reply <- result{err: errors.New("503")}

	select {
	case err := <-errc:
		assert.EqualError(t, err, "503")
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return")
	}
}

func TestInvalidateDiscardsSupersededResponse(t *testing.T) {
	c, g, _, m := newTestCache(t)
	params := Params{"city": "cali"}

	c.Fetch(params)
	stale := g.next(t)

	assert.Equal(t, 1, c.Invalidate("properties"))
	_, ok := c.Peek(params)
	assert.False(t, ok)

	c.Fetch(params)
	fresh := g.next(t)

	fresh.reply <- result{data: []string{"new"}}
	waitStatus(t, c, params, StatusFresh)

	stale.reply <- result{data: []string{"old"}}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.CacheDiscarded.WithLabelValues("properties")) == 1
	}, 2*time.Second, 5*time.Millisecond)

	e, _ := c.Peek(params)
	assert.Equal(t, []string{"new"}, e.Data)
}

func TestInvalidateMatchesPrefixOnly(t *testing.T) {
	c, g, _, _ := newTestCache(t)

	c.Fetch(Params{"city": "cali"})
	g.next(t).reply <- result{data: []string{"cali"}}
	c.Fetch(Params{"region": "caldas"})
	g.next(t).reply <- result{data: []string{"caldas"}}
	waitStatus(t, c, Params{"city": "cali"}, StatusFresh)
	waitStatus(t, c, Params{"region": "caldas"}, StatusFresh)

	assert.Equal(t, 1, c.Invalidate("properties?city="))
	_, ok := c.Peek(Params{"city": "cali"})
	assert.False(t, ok)
	_, ok = c.Peek(Params{"region": "caldas"})
	assert.True(t, ok)

	assert.Equal(t, 1, c.Invalidate(""))
	g.none(t)
}
