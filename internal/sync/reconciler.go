package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/benbjohnson/clock"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/puttnotify/internal/api"
)

// fetchTimeout is the maximum time allowed for a single count refresh.
const fetchTimeout = 30 * time.Second

// CountFetcher refreshes the unread counter.
type CountFetcher interface {
	FetchUnreadCount(ctx context.Context) (int, error)
}

// BadgeMsg is a tea.Msg sent after every unread count refresh.
type BadgeMsg struct {
	UnreadCount int
	Error       error
	At          time.Time
}

// AuthErrorMsg is a tea.Msg sent when the server rejected the session.
type AuthErrorMsg struct {
	Message string
}

// Reconciler periodically pulls the server's unread count so the badge
// heals even when pushes were missed.
type Reconciler struct {
	fetcher   CountFetcher
	interval  time.Duration
	clock     clock.Clock
	resultCh  chan tea.Msg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithClock replaces the wall clock driving the ticker.
func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// New creates a Reconciler. An interval of zero disables periodic
// refreshes; Refresh still works.
func New(fetcher CountFetcher, interval time.Duration, opts ...Option) *Reconciler {
	r := &Reconciler{
		fetcher:   fetcher,
		interval:  interval,
		clock:     clock.New(),
		resultCh:  make(chan tea.Msg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start launches the refresh loop and returns a command delivering the
// first result to the Bubble Tea runtime. Keep listening with Wait.
func (r *Reconciler) Start() tea.Cmd {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	go r.loop()

	return r.Wait()
}

// Stop halts the refresh loop.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	close(r.stopCh)
	r.running = false
}

// Refresh triggers an immediate refresh.
func (r *Reconciler) Refresh() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

func (r *Reconciler) loop() {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := r.clock.Ticker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Do an initial fetch immediately
	r.fetch()

	for {
		select {
		case <-r.stopCh:
			return
		case <-tick:
			r.fetch()
		case <-r.triggerCh:
			r.fetch()
		}
	}
}

func (r *Reconciler) fetch() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	count, err := r.fetcher.FetchUnreadCount(ctx)
	if err != nil && api.IsAuthError(err) {
		r.send(AuthErrorMsg{Message: "Session expired. Run `puttnotify login` to sign in again."})
		return
	}

	r.send(BadgeMsg{UnreadCount: count, Error: err, At: r.clock.Now()})
}

// send delivers a message without blocking.
func (r *Reconciler) send(msg tea.Msg) {
	select {
	case r.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the loop
	}
}

// Wait returns a tea.Cmd that waits for the next result. Callers re-issue
// it after each message to keep listening.
func (r *Reconciler) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-r.resultCh:
			return msg
		case <-r.stopCh:
			return nil
		}
	}
}
