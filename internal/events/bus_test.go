package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Emit(CoverArt, []byte{1, 2, 3})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case evt := <-ch:
			assert.Equal(t, CoverArt, evt.Name)
			assert.Equal(t, []byte{1, 2, 3}, evt.Payload)
		default:
			t.Fatal("expected an event")
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	require.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, bus.Subscribers())

	// emitting with no subscribers is fine
	bus.Emit(PresenceChanged, nil)
}

func TestFullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+3; i++ {
		bus.Emit(PresenceChanged, i)
	}

	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, uint64(3), bus.Dropped())

	first := <-ch
	assert.Equal(t, 0, first.Payload)
}

func TestEmitterFunc(t *testing.T) {
	var got []string
	var e Emitter = EmitterFunc(func(name string, _ any) {
		got = append(got, name)
	})

	e.Emit("a", nil)
	e.Emit("b", nil)

	assert.Equal(t, []string{"a", "b"}, got)
}
