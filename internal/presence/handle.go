package presence

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/galaxyplayer/galaxyd/internal/metrics"
)

// DefaultCallTimeout bounds every transport call made through a guard
const DefaultCallTimeout = 5 * time.Second

// ErrGuardReleased is returned by a guard used after Release
var ErrGuardReleased = errors.New("presence guard already released")

// Handle owns the transport client and grants exclusive access to it.
// Waiting callers are served in arrival order.
type Handle struct {
	client      Client
	callTimeout time.Duration
	metrics     *metrics.Metrics

	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// HandleOption configures a Handle
type HandleOption func(*Handle)

// WithCallTimeout sets the per-call timeout; zero or negative keeps the default
func WithCallTimeout(d time.Duration) HandleOption {
	return func(h *Handle) {
		if d > 0 {
			h.callTimeout = d
		}
	}
}

// WithHandleMetrics records connection attempts
func WithHandleMetrics(m *metrics.Metrics) HandleOption {
	return func(h *Handle) { h.metrics = m }
}

// NewHandle wraps client
func NewHandle(client Client, opts ...HandleOption) *Handle {
	h := &Handle{
		client:      client,
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Client returns the wrapped transport. Calls on it bypass the handle's
// exclusion and should be limited to States and Close.
func (h *Handle) Client() Client {
	return h.client
}

// Acquire blocks until the caller holds the handle or ctx is done.
func (h *Handle) Acquire(ctx context.Context) (*Guard, error) {
	h.mu.Lock()
	if !h.held && len(h.waiters) == 0 {
		h.held = true
		h.mu.Unlock()
		return &Guard{h: h}, nil
	}
	ready := make(chan struct{})
	h.waiters = append(h.waiters, ready)
	h.mu.Unlock()

	select {
	case <-ready:
		return &Guard{h: h}, nil
	case <-ctx.Done():
	}

	h.mu.Lock()
	for i, w := range h.waiters {
		if w == ready {
			h.waiters = append(h.waiters[:i], h.waiters[i+1:]...)
			h.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	h.mu.Unlock()

	// ownership was handed to us while giving up; pass it on
	h.release()
	return nil, ctx.Err()
}

// Do runs fn while holding the handle
func (h *Handle) Do(ctx context.Context, fn func(g *Guard) error) error {
	g, err := h.Acquire(ctx)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn(g)
}

// Waiting returns the number of callers blocked in Acquire
func (h *Handle) Waiting() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiters)
}

// release hands the handle to the oldest waiter, or frees it
func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.waiters) > 0 {
		next := h.waiters[0]
		h.waiters = h.waiters[1:]
		close(next)
		return
	}
	h.held = false
}

func (h *Handle) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.callTimeout)
}

// Guard is exclusive access to the transport. It is not safe for
// concurrent use.
type Guard struct {
	h        *Handle
	released bool
}

// Connect connects the transport
func (g *Guard) Connect(ctx context.Context) error {
	if g.released {
		return ErrGuardReleased
	}
	ctx, cancel := g.h.callContext(ctx)
	defer cancel()

	err := g.h.client.Connect(ctx)
	g.h.metrics.ConnectAttempt(err)
	return err
}

// Update replaces the published activity
func (g *Guard) Update(ctx context.Context, activity *Activity) error {
	if g.released {
		return ErrGuardReleased
	}
	ctx, cancel := g.h.callContext(ctx)
	defer cancel()
	return g.h.client.SetActivity(ctx, activity)
}

// Clear removes the published activity
func (g *Guard) Clear(ctx context.Context) error {
	return g.Update(ctx, nil)
}

// Connected reports whether the transport is connected
func (g *Guard) Connected() bool {
	if g.released {
		return false
	}
	return g.h.client.Connected()
}

// Release gives up the handle. Further calls are no-ops.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.h.release()
}
