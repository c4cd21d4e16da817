package feed

// feed.go — Price Feed: live prices, per-asset rolling windows and the
// reconnect state machine.
//
// One goroutine (Run) drives the whole feed: it connects the stream, consumes
// ticks until the stream dies, and walks the explicit Disconnected →
// Connecting → Connected → Backoff cycle on every loss. Attempt count and
// delay live in the Feed struct so tests can observe them instead of hiding
// inside closures.

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/alejandrodnm/gapbot/internal/domain"
	"github.com/alejandrodnm/gapbot/internal/ports"
)

// ErrReconnectExhausted is the terminal signal raised after the maximum
// number of consecutive failed reconnect attempts. The orchestrator does not
// restart the feed on its own.
var ErrReconnectExhausted = errors.New("feed: reconnect attempts exhausted")

// State is the reconnect state machine's current state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBackoff
)

// String devuelve el nombre del estado para logs.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "disconnected"
	}
}

const eventBuffer = 256

// Config holds the feed's tunables.
type Config struct {
	SignificantMove       float64 // |change1m| that triggers a significant-move event
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectMaxAttempts  int
}

// Feed owns live prices and rolling windows per asset and emits price-update
// and significant-move events.
type Feed struct {
	stream ports.PriceStream
	cfg    Config

	mu      sync.RWMutex
	prices  map[string]domain.AssetPrice
	windows map[string]*window

	state    State
	attempts int

	updates chan domain.AssetPrice
	moves   chan domain.AssetPrice
	fatal   chan error
}

// New creates a Feed over the given stream.
func New(stream ports.PriceStream, cfg Config) *Feed {
	if cfg.ReconnectInitialDelay <= 0 {
		cfg.ReconnectInitialDelay = time.Second
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = time.Minute
	}
	if cfg.ReconnectMaxAttempts <= 0 {
		cfg.ReconnectMaxAttempts = 10
	}
	return &Feed{
		stream:  stream,
		cfg:     cfg,
		prices:  make(map[string]domain.AssetPrice),
		windows: make(map[string]*window),
		updates: make(chan domain.AssetPrice, eventBuffer),
		moves:   make(chan domain.AssetPrice, eventBuffer),
		fatal:   make(chan error, 1),
	}
}

// Updates returns the price-update event channel (one event per tick).
func (f *Feed) Updates() <-chan domain.AssetPrice { return f.updates }

// Moves returns the significant-move event channel.
func (f *Feed) Moves() <-chan domain.AssetPrice { return f.moves }

// Fatal returns the terminal-error channel (ErrReconnectExhausted).
func (f *Feed) Fatal() <-chan error { return f.fatal }

// CurrentPrice returns the last known price for an asset.
func (f *Feed) CurrentPrice(asset string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[asset]
	if !ok {
		return 0, false
	}
	return p.Price, true
}

// Snapshot returns the last full AssetPrice for an asset.
func (f *Feed) Snapshot(asset string) (domain.AssetPrice, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[asset]
	return p, ok
}

// State returns the reconnect machine's current state.
func (f *Feed) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Attempts returns the consecutive failed reconnect attempts so far.
func (f *Feed) Attempts() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.attempts
}

// Run drives the connect/consume/backoff cycle until ctx is cancelled or
// reconnection is exhausted. Blocking; callers run it in a goroutine.
func (f *Feed) Run(ctx context.Context) {
	defer f.stream.Close()

	for {
		f.setState(StateConnecting)
		err := f.stream.Connect(ctx)
		if err == nil {
			f.setState(StateConnected)
			f.resetAttempts()
			err = f.consume(ctx)
		}
		if ctx.Err() != nil {
			f.setState(StateDisconnected)
			return
		}

		f.setState(StateBackoff)
		attempt := f.bumpAttempts()
		if attempt >= f.cfg.ReconnectMaxAttempts {
			slog.Error("feed: giving up after max reconnect attempts",
				"attempts", attempt, "last_err", err)
			f.fatal <- ErrReconnectExhausted
			f.setState(StateDisconnected)
			return
		}

		delay := f.backoffDelay(attempt)
		slog.Warn("feed: stream lost, backing off",
			"attempt", attempt, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			f.setState(StateDisconnected)
			return
		case <-time.After(delay):
		}
	}
}

// consume drains ticks until the stream reports an error or ctx ends.
func (f *Feed) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick := <-f.stream.Ticks():
			f.handleTick(tick)
		case err := <-f.stream.Errs():
			return err
		}
	}
}

// handleTick updates price and window state for the tick's asset and emits
// the resulting events. Events are dropped, not blocked on, if the consumer
// falls behind.
func (f *Feed) handleTick(t ports.Tick) {
	if t.Price <= 0 {
		return
	}

	f.mu.Lock()
	prev, hadPrev := f.prices[t.Asset]

	w, ok := f.windows[t.Asset]
	if !ok {
		w = &window{}
		f.windows[t.Asset] = w
	}
	w.add(t.Price, t.Time)
	w.prune(t.Time)

	ap := domain.AssetPrice{
		Asset:     t.Asset,
		Price:     t.Price,
		Timestamp: t.Time,
		Change1m:  w.changeSince(t.Time, time.Minute, t.Price),
		Change5m:  w.changeSince(t.Time, 5*time.Minute, t.Price),
	}
	f.prices[t.Asset] = ap
	f.mu.Unlock()

	f.emit(f.updates, ap)

	if hadPrev && prev.Price > 0 && math.Abs(ap.Change1m) >= f.cfg.SignificantMove {
		slog.Info("feed: significant move",
			"asset", ap.Asset, "price", ap.Price, "change_1m", ap.Change1m)
		f.emit(f.moves, ap)
	}
}

// emit publishes without blocking; a full channel drops the event.
func (f *Feed) emit(ch chan domain.AssetPrice, ap domain.AssetPrice) {
	select {
	case ch <- ap:
	default:
		slog.Debug("feed: event buffer full, dropping", "asset", ap.Asset)
	}
}

// backoffDelay: initial × 2^(attempt-1) with jitter, capped at the max delay.
func (f *Feed) backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(f.cfg.ReconnectInitialDelay) * math.Pow(2, float64(attempt-1)))
	if d > f.cfg.ReconnectMaxDelay {
		d = f.cfg.ReconnectMaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

func (f *Feed) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Feed) resetAttempts() {
	f.mu.Lock()
	f.attempts = 0
	f.mu.Unlock()
}

func (f *Feed) bumpAttempts() int {
	f.mu.Lock()
	f.attempts++
	n := f.attempts
	f.mu.Unlock()
	return n
}
