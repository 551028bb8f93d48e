// Package poller refreshes the task list or the task log on a fixed cadence
// while the view that shows it is active.
package poller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"scooby/logging"
	"scooby/metrics"
	"scooby/models"
)

const DefaultInterval = 5 * time.Second

type View string

const (
	ViewTasks View = "tasks"
	ViewLogs  View = "logs"
)

type State string

const (
	StateStopped State = "stopped"
	StatePolling State = "polling"
)

// Source is the part of the API client the poller reads from.
type Source interface {
	ScrapeStatus(ctx context.Context, taskID string) (*models.TaskList, error)
	ScrapeLogs(ctx context.Context, taskID string, limit int) (*models.LogList, error)
}

// Snapshot is one full fetch. Each snapshot replaces the previous one.
type Snapshot struct {
	View      View
	Tasks     []models.ScrapeTask
	Total     int
	Logs      []string
	Seq       uint64
	FetchedAt time.Time
}

// PollError wraps a failed fetch. Polling continues after it is reported.
type PollError struct {
	View View
	Seq  uint64
	Err  error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll %s #%d: %v", e.View, e.Seq, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

type Options struct {
	View     View
	Interval time.Duration
	TaskID   string
	LogLimit int
	// OnSnapshot is called with every applied snapshot.
	OnSnapshot func(Snapshot)
	Reporter   logging.Reporter
	Metrics    *metrics.Metrics
}

type Poller struct {
	src  Source
	opts Options

	mu       sync.Mutex
	handle   *Handle
	seq      uint64 // last initiated
	doneSeq  uint64 // last initiated request that has completed
	applied  uint64
	snapshot Snapshot
	hasData  bool
	lastErr  error
}

func New(src Source, opts Options) *Poller {
	if opts.View == "" {
		opts.View = ViewTasks
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Reporter == nil {
		opts.Reporter = logging.LogReporter
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	return &Poller{src: src, opts: opts}
}

func (p *Poller) View() View { return p.opts.View }

// Handle is the token for one Start. The view that started polling owns it
// and must Stop it when the view is deactivated.
type Handle struct {
	ID string

	p       *Poller
	cancel  context.CancelFunc
	stopped atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup
}

// Start begins ticking every Interval. A previous handle on this poller is
// stopped first, so a view never owns two timers.
func (p *Poller) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{ID: uuid.NewString(), p: p, cancel: cancel}
	// The loop is counted before h is visible, so a concurrent Stop always
	// waits for it.
	h.wg.Add(1)

	p.mu.Lock()
	prev := p.handle
	p.handle = h
	p.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	go p.run(ctx, h)
	log.Printf("[poller] %s: started %s every %s", p.opts.View, h.ID[:8], p.opts.Interval)
	return h
}

// Stop stops the active handle, if any.
func (p *Poller) Stop() {
	p.mu.Lock()
	h := p.handle
	p.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Stop cancels the timer and any tick still in flight, and returns once they
// have exited. No fetch is issued for this handle after Stop returns. Safe to
// call more than once.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.stopped.Store(true)
		h.cancel()
		h.wg.Wait()

		h.p.mu.Lock()
		if h.p.handle == h {
			h.p.handle = nil
		}
		h.p.mu.Unlock()
		log.Printf("[poller] %s: stopped %s", h.p.opts.View, h.ID[:8])
	})
}

func (h *Handle) Stopped() bool { return h.stopped.Load() }

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle != nil {
		return StatePolling
	}
	return StateStopped
}

// Loading reports whether the most recently initiated fetch is still
// outstanding. Older fetches do not count.
func (p *Poller) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneSeq != p.seq
}

// Snapshot returns the last applied snapshot.
func (p *Poller) Snapshot() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot, p.hasData
}

// Err returns the error of the last failed fetch, cleared by the next success.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Refresh fetches a snapshot now, outside the tick cadence, and applies it.
func (p *Poller) Refresh(ctx context.Context) (Snapshot, error) {
	seq := p.begin()
	snap, err := p.get(ctx, seq)
	p.complete(nil, seq, snap, err)
	if err != nil {
		return Snapshot{}, &PollError{View: p.opts.View, Seq: seq, Err: err}
	}
	return snap, nil
}

func (p *Poller) run(ctx context.Context, h *Handle) {
	defer h.wg.Done()
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// The tick may have fired while Stop was in progress.
			if h.stopped.Load() {
				return
			}
			seq := p.begin()
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				snap, err := p.get(ctx, seq)
				p.complete(h, seq, snap, err)
			}()
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) begin() uint64 {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()
	p.opts.Metrics.PollTicks.WithLabelValues(string(p.opts.View)).Inc()
	return seq
}

func (p *Poller) get(ctx context.Context, seq uint64) (Snapshot, error) {
	snap := Snapshot{View: p.opts.View, Seq: seq}
	switch p.opts.View {
	case ViewLogs:
		list, err := p.src.ScrapeLogs(ctx, p.opts.TaskID, p.opts.LogLimit)
		if err != nil {
			return snap, err
		}
		snap.Logs = list.Logs
	default:
		list, err := p.src.ScrapeStatus(ctx, p.opts.TaskID)
		if err != nil {
			return snap, err
		}
		snap.Tasks = list.Tasks
		snap.Total = list.Total
	}
	snap.FetchedAt = time.Now()
	return snap, nil
}

// complete applies a finished fetch. Results for a stopped handle are
// dropped, and so is a result older than the one already applied.
func (p *Poller) complete(h *Handle, seq uint64, snap Snapshot, err error) {
	p.mu.Lock()
	if seq == p.seq {
		p.doneSeq = seq
	}
	if h != nil && h.stopped.Load() {
		p.mu.Unlock()
		return
	}
	if err != nil {
		// A newer snapshot already applied supersedes this failure.
		if seq >= p.applied {
			p.lastErr = err
		}
		p.mu.Unlock()
		p.opts.Metrics.PollErrors.WithLabelValues(string(p.opts.View)).Inc()
		p.opts.Reporter("poller/"+string(p.opts.View), &PollError{View: p.opts.View, Seq: seq, Err: err})
		return
	}
	if seq < p.applied {
		p.mu.Unlock()
		logging.Debugf("poller %s: dropped snapshot #%d, #%d already applied", p.opts.View, seq, p.applied)
		return
	}
	p.applied = seq
	p.snapshot = snap
	p.hasData = true
	p.lastErr = nil
	fn := p.opts.OnSnapshot
	p.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
