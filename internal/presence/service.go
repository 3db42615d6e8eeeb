package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/galaxyplayer/galaxyd/internal/events"
	"github.com/galaxyplayer/galaxyd/internal/metrics"
	"github.com/galaxyplayer/galaxyd/internal/types"
)

// Discord accepts five activity updates per twenty seconds
const (
	DefaultUpdatesPerWindow = 5
	DefaultUpdateWindow     = 20 * time.Second
)

// Mirror receives every status after it has been sent to Discord
type Mirror interface {
	Name() string
	Publish(ctx context.Context, status Status) error
}

// ServiceOptions configures a Service
type ServiceOptions struct {
	LargeImage       string
	UpdatesPerWindow int
	UpdateWindow     time.Duration
	Mirrors          []Mirror
	Emitter          events.Emitter
	Metrics          *metrics.Metrics
}

// Service publishes playback status to Discord and the configured mirrors.
// A nil handle disables the Discord side.
type Service struct {
	handle     *Handle
	limiter    *rate.Limiter
	largeImage string
	mirrors    []Mirror
	emitter    events.Emitter
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time

	state   atomic.Int32
	drained sync.WaitGroup
	last    atomic.Pointer[Status]
}

// NewService creates a presence service
func NewService(handle *Handle, opts ServiceOptions, log zerolog.Logger) *Service {
	n := opts.UpdatesPerWindow
	if n <= 0 {
		n = DefaultUpdatesPerWindow
	}
	window := opts.UpdateWindow
	if window <= 0 {
		window = DefaultUpdateWindow
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.EmitterFunc(func(string, any) {})
	}

	return &Service{
		handle:     handle,
		limiter:    rate.NewLimiter(rate.Every(window/time.Duration(n)), n),
		largeImage: opts.LargeImage,
		mirrors:    opts.Mirrors,
		emitter:    emitter,
		metrics:    opts.Metrics,
		log:        log,
		now:        time.Now,
	}
}

// Start launches the state drain. It returns immediately.
func (s *Service) Start() {
	if s.handle == nil {
		return
	}
	s.drained.Add(1)
	go func() {
		defer s.drained.Done()
		Drain(s.handle.Client().States(), s.log, s.observe)
	}()
}

func (s *Service) observe(state types.ConnState) {
	s.state.Store(int32(state))
	s.metrics.SetConnState(state)
}

// State returns the last reported transport state
func (s *Service) State() types.ConnState {
	return types.ConnState(s.state.Load())
}

// Enabled reports whether Discord publishing is configured
func (s *Service) Enabled() bool {
	return s.handle != nil
}

// Handle returns the connection handle, nil when Discord is disabled
func (s *Service) Handle() *Handle {
	return s.handle
}

// Last returns the most recent status passed to Update, or nil
func (s *Service) Last() *Status {
	return s.last.Load()
}

// Update publishes status. Discord errors are returned; mirrors are always
// notified and their errors only logged. A disconnected transport gets one
// reconnect attempt.
func (s *Service) Update(ctx context.Context, status Status) error {
	s.last.Store(&status)

	var err error
	if s.handle != nil {
		activity := BuildActivity(status, s.largeImage, s.now())
		err = s.handle.Do(ctx, func(g *Guard) error {
			if !g.Connected() {
				if err := g.Connect(ctx); err != nil {
					return err
				}
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			return g.Update(ctx, activity)
		})
		s.metrics.PresenceUpdate(err)
		if err != nil {
			s.log.Warn().Err(err).Str("details", status.Details).Msg("presence update failed")
		}
	}

	for _, m := range s.mirrors {
		if merr := m.Publish(ctx, status); merr != nil {
			s.log.Warn().Err(merr).Str("mirror", m.Name()).Msg("mirror publish failed")
		}
	}

	s.emitter.Emit(events.PresenceChanged, status)
	return err
}

// Clear removes the activity if connected
func (s *Service) Clear(ctx context.Context) error {
	if s.handle == nil {
		return nil
	}
	return s.handle.Do(ctx, func(g *Guard) error {
		if !g.Connected() {
			return nil
		}
		return g.Clear(ctx)
	})
}

// Close shuts the transport down and waits for the drain to finish
func (s *Service) Close() error {
	if s.handle == nil {
		return nil
	}
	err := s.handle.Client().Close()
	s.drained.Wait()
	return err
}
