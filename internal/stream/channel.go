// Package stream keeps a live connection to the notification event stream
// and reconnects after drops.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/nhle/puttnotify/internal/log"
	"github.com/nhle/puttnotify/internal/model"
)

// DefaultReconnectDelay is the wait between a drop and the next attempt.
const DefaultReconnectDelay = 5 * time.Second

// State is the connection state of a Channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Sink receives every notification delivered over the stream, in order.
type Sink interface {
	Deliver(n model.Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n model.Notification)

func (f SinkFunc) Deliver(n model.Notification) {
	f(n)
}

// TokenSource supplies the bearer token. A missing token means the player
// signed out and no reconnect is attempted.
type TokenSource interface {
	Token() (string, bool)
}

// Channel owns at most one streaming connection at a time.
type Channel struct {
	url          string
	tokens       TokenSource
	sinks        []Sink
	httpClient   *http.Client
	clock        clock.Clock
	backoff      backoff.BackOff
	tokenInQuery bool
	onState      func(State)

	mu     sync.Mutex
	state  State
	gen    uint64
	parent context.Context
	cancel context.CancelFunc
	timer  *clock.Timer

	// emitMu serializes OnState callbacks.
	emitMu sync.Mutex
}

// Option customizes a Channel.
type Option func(*Channel)

// WithClock replaces the wall clock used for reconnect timers.
func WithClock(c clock.Clock) Option {
	return func(ch *Channel) {
		ch.clock = c
	}
}

// WithBackOff replaces the reconnect policy. backoff.Stop disables
// reconnects.
func WithBackOff(b backoff.BackOff) Option {
	return func(ch *Channel) {
		ch.backoff = b
	}
}

// WithReconnectDelay sets a constant reconnect delay.
func WithReconnectDelay(d time.Duration) Option {
	return func(ch *Channel) {
		if d > 0 {
			ch.backoff = backoff.NewConstantBackOff(d)
		}
	}
}

// WithHTTPClient replaces the default http.Client. It must not set a
// Timeout since the response body stays open indefinitely.
func WithHTTPClient(hc *http.Client) Option {
	return func(ch *Channel) {
		ch.httpClient = hc
	}
}

// WithTokenInQuery sends the bearer as a token query parameter instead of
// an Authorization header.
func WithTokenInQuery(enabled bool) Option {
	return func(ch *Channel) {
		ch.tokenInQuery = enabled
	}
}

// WithOnState registers a callback run after each state transition. It is
// called without internal locks held.
func WithOnState(fn func(State)) Option {
	return func(ch *Channel) {
		ch.onState = fn
	}
}

// New returns a disconnected Channel for streamURL. Sinks are called in
// the given order for each notification.
func New(streamURL string, tokens TokenSource, sinks []Sink, opts ...Option) *Channel {
	ch := &Channel{
		url:        streamURL,
		tokens:     tokens,
		sinks:      sinks,
		httpClient: &http.Client{},
		clock:      clock.New(),
		backoff:    backoff.NewConstantBackOff(DefaultReconnectDelay),
	}

	for _, opt := range opts {
		opt(ch)
	}

	return ch
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Connect closes any existing connection and opens a new one. It returns
// immediately; the connection lives until Disconnect or ctx is done.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	c.closeLocked()
	c.gen++
	c.parent = ctx
	c.backoff.Reset()
	state := c.startLocked()
	c.mu.Unlock()

	c.emit(state)
}

// Disconnect cancels any pending reconnect and closes the connection.
// The channel stays down until the next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closeLocked()
	c.gen++
	c.parent = nil
	changed := c.state != Disconnected
	c.state = Disconnected
	c.mu.Unlock()

	if changed {
		c.emit(Disconnected)
	}
}

func (c *Channel) closeLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// startLocked begins a connection attempt for the current generation.
func (c *Channel) startLocked() State {
	token, ok := c.tokens.Token()
	if !ok || c.parent == nil || c.parent.Err() != nil {
		c.state = Disconnected
		return c.state
	}

	connCtx, cancel := context.WithCancel(c.parent)
	c.cancel = cancel
	c.state = Connecting

	go c.run(connCtx, c.gen, token)

	return c.state
}

func (c *Channel) run(ctx context.Context, gen uint64, token string) {
	connID := uuid.NewString()
	logger := slog.With(slog.String("conn", connID))

	resp, err := c.open(ctx, token)
	if err != nil {
		logger.Warn("Notification stream failed to open", log.ErrAttr(err))
		c.dropped(gen)
		return
	}
	defer resp.Body.Close()

	if !c.opened(gen) {
		return
	}
	logger.Info("Notification stream connected")

	decoder := NewDecoder(resp.Body)
	for {
		event, errNext := decoder.Next()
		if errNext != nil {
			if errors.Is(errNext, io.EOF) {
				logger.Info("Notification stream closed by server")
			} else if ctx.Err() == nil {
				logger.Warn("Notification stream read failed", log.ErrAttr(errNext))
			}
			break
		}

		if !c.current(gen) {
			return
		}
		c.dispatch(logger, event)
	}

	c.dropped(gen)
}

func (c *Channel) open(ctx context.Context, token string) (*http.Response, error) {
	target, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("parsing stream url: %w", err)
	}

	if c.tokenInQuery {
		query := target.Query()
		query.Set("token", token)
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if !c.tokenInQuery {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("opening stream: unexpected status %d", resp.StatusCode)
	}

	return resp, nil
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.gen == gen
}

// opened marks the handshake as done. It reports false when the attempt
// was superseded.
func (c *Channel) opened(gen uint64) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.state = Connected
	c.backoff.Reset()
	c.mu.Unlock()

	c.emit(Connected)

	return true
}

// dropped closes a failed attempt and schedules exactly one reconnect
// while the player is still signed in.
func (c *Channel) dropped(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}

	c.closeLocked()
	c.state = Disconnected

	_, authenticated := c.tokens.Token()
	alive := c.parent != nil && c.parent.Err() == nil

	if authenticated && alive {
		if delay := c.backoff.NextBackOff(); delay != backoff.Stop {
			slog.Debug("Scheduling notification stream reconnect", slog.Duration("delay", delay))
			c.timer = c.clock.AfterFunc(delay, func() {
				c.reconnect(gen)
			})
		}
	}
	c.mu.Unlock()

	c.emit(Disconnected)
}

func (c *Channel) reconnect(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.gen++
	state := c.startLocked()
	c.mu.Unlock()

	c.emit(state)
}

func (c *Channel) dispatch(logger *slog.Logger, event Event) {
	var msg model.StreamEvent
	if err := json.Unmarshal([]byte(event.Data), &msg); err != nil {
		logger.Warn("Ignoring malformed stream event", log.ErrAttr(err))
		return
	}

	switch msg.Type {
	case model.EventNotification:
		if msg.Notification == nil {
			logger.Warn("Ignoring notification event without payload")
			return
		}
		for _, sink := range c.sinks {
			sink.Deliver(*msg.Notification)
		}
	case model.EventConnected:
		logger.Debug("Notification stream acknowledged", slog.Int64("player_id", msg.PlayerID))
	default:
		logger.Debug("Ignoring unknown stream event", slog.String("type", msg.Type))
	}
}

func (c *Channel) emit(state State) {
	if c.onState == nil {
		return
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.onState(state)
}
