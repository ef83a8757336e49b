package host

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultHistory is how many notifications a Bridge remembers.
const DefaultHistory = 128

// Observer is told about every completion and notification passing through
// a Bridge.
type Observer interface {
	Completed(req Request, status Status, elapsed time.Duration)
	Notified(event Event)
}

// Bridge is an in-process Host. Requests enter through Submit one at a
// time; completions are matched to their pending request by token;
// notifications are kept in a bounded history and fanned out to
// subscribers.
type Bridge struct {
	logger   *slog.Logger
	observer Observer
	history  int

	// submitMu serializes calls into the Handler
	submitMu sync.Mutex
	handler  Handler

	mu          sync.Mutex
	pending     map[Token]*pendingRequest
	recent      []Notification
	subscribers map[chan Notification]struct{}
	timers      map[*time.Timer]struct{}
	closed      bool
}

type pendingRequest struct {
	req   Request
	start time.Time
	done  chan Completion
}

type BridgeOption func(*Bridge)

// WithObserver reports completions and notifications to o.
func WithObserver(o Observer) BridgeOption {
	return func(b *Bridge) { b.observer = o }
}

// WithHistory bounds the notification history to n entries.
func WithHistory(n int) BridgeOption {
	return func(b *Bridge) {
		if n > 0 {
			b.history = n
		}
	}
}

func NewBridge(logger *slog.Logger, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		logger:      logger,
		history:     DefaultHistory,
		pending:     make(map[Token]*pendingRequest),
		subscribers: make(map[chan Notification]struct{}),
		timers:      make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetHandler installs the request handler. It must be called before Submit.
func (b *Bridge) SetHandler(h Handler) {
	b.submitMu.Lock()
	defer b.submitMu.Unlock()
	b.handler = h
}

// Submit hands a request to the Handler and waits for its completion. The
// Handler is entered by one request at a time; the wait for the completion
// itself does not hold up the next request.
//
// If ctx ends first the request stays with the Handler, but its eventual
// completion is dropped.
func (b *Bridge) Submit(ctx context.Context, req Request, data Payload) (Completion, error) {
	token := NewToken()
	p := &pendingRequest{req: req, start: time.Now(), done: make(chan Completion, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Completion{}, ErrClosed
	}
	b.pending[token] = p
	b.mu.Unlock()

	b.submitMu.Lock()
	handler := b.handler
	if handler == nil {
		b.submitMu.Unlock()
		b.forget(token)
		return Completion{}, ErrNoHandler
	}
	b.logger.Debug("Request submitted", "request", req, "token", token)
	handler.OnRequest(ctx, req, data, token)
	b.submitMu.Unlock()

	select {
	case c := <-p.done:
		return c, nil
	case <-ctx.Done():
		b.forget(token)
		return Completion{}, ctx.Err()
	}
}

func (b *Bridge) forget(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, token)
}

func (b *Bridge) Complete(token Token, status Status, result any) {
	b.mu.Lock()
	p, ok := b.pending[token]
	delete(b.pending, token)
	b.mu.Unlock()

	if !ok {
		b.logger.Warn("Dropped completion for unknown token", "token", token, "status", status)
		return
	}

	p.done <- Completion{Token: token, Request: p.req, Name: p.req.String(), Status: status, Result: result}
	elapsed := time.Since(p.start)
	b.logger.Debug("Request completed", "request", p.req, "status", status, "elapsed", elapsed)
	if b.observer != nil {
		b.observer.Completed(p.req, status, elapsed)
	}
}

func (b *Bridge) Notify(event Event, data any) {
	n := Notification{Event: event, Data: data, Time: time.Now()}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.recent = append(b.recent, n)
	if over := len(b.recent) - b.history; over > 0 {
		b.recent = slices.Delete(b.recent, 0, over)
	}
	for ch := range b.subscribers {
		select {
		case ch <- n:
		default:
			// slow subscriber
		}
	}
	b.mu.Unlock()

	b.logger.Debug("Notification", "event", event)
	if b.observer != nil {
		b.observer.Notified(event)
	}
}

func (b *Bridge) Schedule(delay time.Duration, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		b.mu.Lock()
		delete(b.timers, t)
		closed := b.closed
		b.mu.Unlock()
		if !closed {
			fn()
		}
	})
	b.timers[t] = struct{}{}
}

// Notifications returns up to limit of the most recent notifications,
// oldest first. A limit of zero or less returns the whole history.
func (b *Bridge) Notifications(limit int) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	recent := b.recent
	if limit > 0 && len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	return slices.Clone(recent)
}

// Subscribe returns a channel receiving every future notification and a
// function that ends the subscription. Notifications are dropped when the
// channel buffer is full.
func (b *Bridge) Subscribe(buffer int) (<-chan Notification, func()) {
	ch := make(chan Notification, buffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[ch]; ok {
				delete(b.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Close stops pending timers and ends all subscriptions. Later
// notifications and scheduled callbacks are ignored.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for t := range b.timers {
		t.Stop()
	}
	clear(b.timers)
	for ch := range b.subscribers {
		close(ch)
	}
	clear(b.subscribers)
}

var _ Host = (*Bridge)(nil)
