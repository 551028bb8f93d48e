// Package session owns the client-side state of one run: the URL store,
// the filter form, the query caches, the task pollers and job submission.
// Screens and commands drive it; it holds no rendering logic.
package session

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"scooby/config"
	"scooby/filters"
	"scooby/logging"
	"scooby/metrics"
	"scooby/models"
	"scooby/poller"
	"scooby/querycache"
	"scooby/scrape"
	"scooby/urlstate"
)

// Cache namespaces. Listing and statistics keys never share a prefix.
const (
	NamespaceProperties = "properties"
	NamespaceStatsCity  = "stats/city"
	NamespaceStatsPrice = "stats/price"
)

// API is everything the session needs from the remote service.
type API interface {
	ListProperties(ctx context.Context, params url.Values) ([]models.PropertyRecord, error)
	CityStats(ctx context.Context) ([]models.CityCount, error)
	PriceStats(ctx context.Context) ([]models.CityAvgPrice, error)
	scrape.Starter
	poller.Source
}

type View string

const (
	ViewListings View = "listings"
	ViewScraper  View = "scraper"
	ViewTasks    View = "tasks"
	ViewLogs     View = "logs"
)

// Views lists the screens in tab order.
var Views = []View{ViewListings, ViewScraper, ViewTasks, ViewLogs}

// Event names what changed.
type Event string

const (
	EventListings Event = "listings"
	EventStats    Event = "stats"
	EventTasks    Event = "tasks"
	EventLogs     Event = "logs"
	EventView     Event = "view"
)

type Options struct {
	// Notify is called from background goroutines whenever an Event occurs.
	// It must not block.
	Notify   func(Event)
	Reporter logging.Reporter
	// TaskID narrows the task and log views to one task.
	TaskID string
	// LogLimit overrides the configured log line count.
	LogLimit int
	// Registerer receives the metrics; nil keeps them private.
	Registerer prometheus.Registerer
	// Now is the clock the caches judge staleness by. Defaults to time.Now.
	Now func() time.Time
}

type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	api     API
	notify  func(Event)
	Metrics *metrics.Metrics

	Store     *urlstate.Store
	Filters   *filters.Controller
	Submitter *scrape.Submitter

	Listings   *querycache.Cache[[]models.PropertyRecord]
	CityStats  *querycache.Cache[[]models.CityCount]
	PriceStats *querycache.Cache[[]models.CityAvgPrice]

	listings   *querycache.Observer[[]models.PropertyRecord]
	cityStats  *querycache.Observer[[]models.CityCount]
	priceStats *querycache.Observer[[]models.CityAvgPrice]

	Tasks *poller.Poller
	Logs  *poller.Poller

	unsubscribe func()

	// switchMu serializes view switches and Close so that pollers stop and
	// start in the same order the view changes.
	switchMu sync.Mutex

	mu         sync.Mutex
	view       View
	taskStatus map[string]models.TaskStatus
	message    string
	closed     bool
}

// New builds a session on top of store. Nothing is fetched until a view
// asks for it.
func New(cfg *config.Config, api API, store *urlstate.Store, opts Options) *Session {
	if opts.Notify == nil {
		opts.Notify = func(Event) {}
	}
	if opts.Reporter == nil {
		opts.Reporter = logging.LogReporter
	}
	m := metrics.New(opts.Registerer)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		api:        api,
		notify:     opts.Notify,
		Metrics:    m,
		Store:      store,
		Filters:    filters.NewController(store),
		Submitter:  scrape.NewSubmitter(api, m),
		view:       ViewListings,
		taskStatus: make(map[string]models.TaskStatus),
	}

	s.Listings = querycache.New(func(ctx context.Context, p querycache.Params) ([]models.PropertyRecord, error) {
		q := url.Values{}
		for k, v := range p {
			q.Set(k, v)
		}
		return api.ListProperties(ctx, q)
	}, querycache.Options{Namespace: NamespaceProperties, StaleTime: querycache.ListingStaleTime, Metrics: m, Now: opts.Now})
	s.CityStats = querycache.New(func(ctx context.Context, _ querycache.Params) ([]models.CityCount, error) {
		return api.CityStats(ctx)
	}, querycache.Options{Namespace: NamespaceStatsCity, StaleTime: querycache.StatsStaleTime, Metrics: m, Now: opts.Now})
	s.PriceStats = querycache.New(func(ctx context.Context, _ querycache.Params) ([]models.CityAvgPrice, error) {
		return api.PriceStats(ctx)
	}, querycache.Options{Namespace: NamespaceStatsPrice, StaleTime: querycache.StatsStaleTime, Metrics: m, Now: opts.Now})

	s.listings = s.Listings.Observe(func() { s.notify(EventListings) })
	s.cityStats = s.CityStats.Observe(func() { s.notify(EventStats) })
	s.priceStats = s.PriceStats.Observe(func() { s.notify(EventStats) })

	logLimit := cfg.Poller.LogLimit
	if opts.LogLimit > 0 {
		logLimit = opts.LogLimit
	}
	s.Tasks = poller.New(api, poller.Options{
		View:       poller.ViewTasks,
		Interval:   cfg.Poller.Interval,
		TaskID:     opts.TaskID,
		OnSnapshot: s.onTasks,
		Reporter:   opts.Reporter,
		Metrics:    m,
	})
	s.Logs = poller.New(api, poller.Options{
		View:       poller.ViewLogs,
		Interval:   cfg.Poller.Interval,
		TaskID:     opts.TaskID,
		LogLimit:   logLimit,
		OnSnapshot: func(poller.Snapshot) { s.notify(EventLogs) },
		Reporter:   opts.Reporter,
		Metrics:    m,
	})

	s.Submitter.OnAccepted = func(ack *models.ScrapeAck) {
		if ack.TaskID == "" {
			return
		}
		s.mu.Lock()
		s.taskStatus[ack.TaskID] = models.TaskStatusPending
		s.mu.Unlock()
	}

	s.unsubscribe = store.Subscribe(func(urlstate.Snapshot) {
		// Only follow the URL once the listing is being watched.
		if s.listings.Key() != "" {
			s.listings.SetParams(s.ListingParams())
		}
	})
	return s
}

// LoadListing starts watching the listing for the current URL. From then on
// every URL change fetches the matching listing.
func (s *Session) LoadListing() {
	s.listings.SetParams(s.ListingParams())
}

// ListingParams returns the committed filter plus pagination, as sent to
// the listing endpoint.
func (s *Session) ListingParams() querycache.Params {
	p := querycache.Params(filters.FromStore(s.Store).Params())
	if skip := s.skip(); skip > 0 {
		p[models.ParamSkip] = strconv.Itoa(skip)
	}
	p[models.ParamLimit] = strconv.Itoa(s.pageSize())
	return p
}

func (s *Session) pageSize() int {
	def := s.cfg.PageSize
	if def <= 0 {
		def = config.DefaultPageSize
	}
	n := urlstate.GetParam(s.Store, models.ParamLimit, def, strconv.Atoi)
	if n <= 0 {
		return def
	}
	return n
}

func (s *Session) skip() int {
	n := urlstate.GetParam(s.Store, models.ParamSkip, 0, strconv.Atoi)
	if n < 0 {
		return 0
	}
	return n
}

// Listing returns the current listing entry. Data may be a placeholder from
// the previous filter while the new one loads.
func (s *Session) Listing() querycache.Entry[[]models.PropertyRecord] {
	return s.listings.Current()
}

// RefreshListing revalidates the listing if it is stale.
func (s *Session) RefreshListing() {
	s.listings.Refetch()
}

// Page returns the zero-based page of the listing.
func (s *Session) Page() int {
	return s.skip() / s.pageSize()
}

// NextPage moves the listing one page forward, keeping the filter.
func (s *Session) NextPage() { s.GoToPage(s.Page() + 1) }

// PrevPage moves the listing one page back. It stops at the first page.
func (s *Session) PrevPage() {
	if p := s.Page(); p > 0 {
		s.GoToPage(p - 1)
	}
}

// GoToPage sets the zero-based listing page, keeping the filter.
func (s *Session) GoToPage(page int) {
	if page < 0 {
		page = 0
	}
	params := s.Store.GetAllParams().Map()
	delete(params, models.ParamSkip)
	if page > 0 {
		params[models.ParamSkip] = strconv.Itoa(page * s.pageSize())
	}
	s.Store.SetParams(params)
}

// ApplyFilters commits the draft filter to the URL.
func (s *Session) ApplyFilters() {
	s.Filters.Apply()
	log.Printf("[session] filters applied: %s", s.Store.Encode())
}

// ClearFilters removes every query parameter, returning the listing to the
// unfiltered first page.
func (s *Session) ClearFilters() {
	s.Filters.Clear()
	log.Printf("[session] filters cleared")
}

// LoadStats starts (or refreshes) both aggregate queries.
func (s *Session) LoadStats() {
	s.cityStats.SetParams(nil)
	s.priceStats.SetParams(nil)
}

func (s *Session) Stats() (querycache.Entry[[]models.CityCount], querycache.Entry[[]models.CityAvgPrice]) {
	return s.cityStats.Current(), s.priceStats.Current()
}

// InvalidateResults evicts every listing and statistics entry. Observed
// queries are fetched again right away.
func (s *Session) InvalidateResults() {
	s.Listings.Invalidate(NamespaceProperties)
	s.CityStats.Invalidate(NamespaceStatsCity)
	s.PriceStats.Invalidate(NamespaceStatsPrice)
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView makes v the active view. The poller of the view being left is
// stopped before the poller of the new view starts.
func (s *Session) SetView(v View) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.closed || s.view == v {
		s.mu.Unlock()
		return
	}
	s.view = v
	s.mu.Unlock()

	s.Tasks.Stop()
	s.Logs.Stop()
	if p := s.pollerFor(v); p != nil {
		p.Start(s.ctx)
	}
	s.notify(EventView)
}

func (s *Session) pollerFor(v View) *poller.Poller {
	switch v {
	case ViewTasks:
		return s.Tasks
	case ViewLogs:
		return s.Logs
	}
	return nil
}

// Submit creates a scrape job. On success the task view becomes active and
// the task list is refreshed at once rather than on the next tick. On
// failure nothing changes and the error is returned for display.
func (s *Session) Submit(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeAck, error) {
	ack, err := s.Submitter.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	s.setMessage(ack.Message)
	s.SetView(ViewTasks)
	if _, err := s.Tasks.Refresh(ctx); err != nil {
		log.Printf("[session] task refresh after submit: %v", err)
	}
	return ack, nil
}

// Message returns the last submission acknowledgement.
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

func (s *Session) setMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// onTasks tracks task status across snapshots. A task seen completing
// invalidates listing and statistics results, since it may have added
// properties.
func (s *Session) onTasks(snap poller.Snapshot) {
	var completed []string
	s.mu.Lock()
	for _, t := range snap.Tasks {
		prev, seen := s.taskStatus[t.ID]
		if seen && prev != models.TaskStatusCompleted && t.Status == models.TaskStatusCompleted {
			completed = append(completed, t.ID)
		}
		s.taskStatus[t.ID] = t.Status
	}
	s.mu.Unlock()

	if len(completed) > 0 {
		log.Printf("[session] tasks completed %v, invalidating results", completed)
		s.InvalidateResults()
	}
	s.notify(EventTasks)
}

// Close stops the pollers and in-flight requests.
func (s *Session) Close() {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.unsubscribe()
	s.cancel()
	s.Tasks.Stop()
	s.Logs.Stop()
	s.listings.Close()
	s.cityStats.Close()
	s.priceStats.Close()
	s.Listings.Close()
	s.CityStats.Close()
	s.PriceStats.Close()
}
