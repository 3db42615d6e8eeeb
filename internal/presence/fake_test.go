package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

var errUnavailable = errors.New("discord not running")

// fakeClient fails the first failConnects Connect calls
type fakeClient struct {
	mu           sync.Mutex
	failConnects int
	connects     int
	connected    bool
	activities   []*Activity
	updateDelay  time.Duration
	updateErr    error
	closed       bool

	states    chan types.ConnState
	closeOnce sync.Once
}

func newFakeClient(failConnects int) *fakeClient {
	return &fakeClient{
		failConnects: failConnects,
		states:       make(chan types.ConnState, 64),
	}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connects <= f.failConnects {
		f.push(types.StateDisconnected)
		return errUnavailable
	}
	f.connected = true
	f.push(types.StateConnected)
	return nil
}

func (f *fakeClient) SetActivity(ctx context.Context, activity *Activity) error {
	if f.updateDelay > 0 {
		select {
		case <-time.After(f.updateDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	f.activities = append(f.activities, activity)
	return nil
}

func (f *fakeClient) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closed = true
	f.closeOnce.Do(func() { close(f.states) })
	return nil
}

func (f *fakeClient) States() <-chan types.ConnState {
	return f.states
}

// push must be called with f.mu held
func (f *fakeClient) push(state types.ConnState) {
	if f.closed {
		return
	}
	select {
	case f.states <- state:
	default:
	}
}

func (f *fakeClient) connectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeClient) sent() []*Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Activity(nil), f.activities...)
}
