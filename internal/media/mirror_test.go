package media

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxyplayer/galaxyd/internal/logging"
	"github.com/galaxyplayer/galaxyd/internal/types"
)

func TestFromStatus(t *testing.T) {
	state, md := FromStatus(types.PresenceStatus{Playing: true, Details: "Orbit", State: "Nova", Left: 90})
	assert.Equal(t, StatePlaying, state)
	assert.Equal(t, Metadata{Title: "Orbit", Artist: "Nova", Remaining: 90 * time.Second}, md)

	state, md = FromStatus(types.PresenceStatus{Details: "Orbit", Left: -4})
	assert.Equal(t, StatePaused, state)
	assert.Zero(t, md.Remaining)

	state, _ = FromStatus(types.PresenceStatus{})
	assert.Equal(t, StateStopped, state)
}

func TestMPRISPlayerApply(t *testing.T) {
	p := newMPRISPlayer(nil)

	changed := p.apply(types.PresenceStatus{Playing: true, Details: "Orbit", State: "Nova", Left: 30})
	require.Contains(t, changed, "PlaybackStatus")
	require.Contains(t, changed, "Metadata")
	assert.Equal(t, "Playing", changed["PlaybackStatus"].Value())

	md := changed["Metadata"].Value().(map[string]dbus.Variant)
	assert.Equal(t, "Orbit", md["xesam:title"].Value())
	assert.Equal(t, []string{"Nova"}, md["xesam:artist"].Value())
	assert.Equal(t, int64(30_000_000), md["mpris:length"].Value())

	assert.Empty(t, p.apply(types.PresenceStatus{Playing: true, Details: "Orbit", State: "Nova", Left: 30}))

	changed = p.apply(types.PresenceStatus{Playing: false, Details: "Orbit", State: "Nova", Left: 30})
	assert.Equal(t, map[string]dbus.Variant{"PlaybackStatus": dbus.MakeVariant("Paused")}, changed)
}

func TestMPRISPlayerCommands(t *testing.T) {
	var got []Command
	p := newMPRISPlayer(CommandHandlerFunc(func(cmd Command) error {
		got = append(got, cmd)
		if cmd == CmdStop {
			return errors.New("nothing to stop")
		}
		return nil
	}))

	assert.Nil(t, p.Next())
	assert.Nil(t, p.Previous())
	assert.Nil(t, p.PlayPause())
	assert.NotNil(t, p.Stop())
	assert.Equal(t, []Command{CmdNext, CmdPrevious, CmdPlayPause, CmdStop}, got)

	v, derr := p.Get(mprisPlayerInterface, "CanGoNext")
	require.Nil(t, derr)
	assert.Equal(t, true, v.Value())

	v, derr = p.Get(mprisInterface, "Identity")
	require.Nil(t, derr)
	assert.Equal(t, "galaxy", v.Value())

	_, derr = p.Get(mprisPlayerInterface, "Shuffle")
	assert.NotNil(t, derr)
	_, derr = p.GetAll("org.example.Nope")
	assert.NotNil(t, derr)
}

func TestMPRISPlayerWithoutHandler(t *testing.T) {
	p := newMPRISPlayer(nil)
	assert.Nil(t, p.Next())

	v, derr := p.Get(mprisPlayerInterface, "CanControl")
	require.Nil(t, derr)
	assert.Equal(t, false, v.Value())
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	connected    bool
	err          error
	messages     []published
	disconnected bool
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.messages = append(f.messages, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return newFakeToken(f.err)
}

func (f *fakePublisher) IsConnected() bool { return f.connected }

func (f *fakePublisher) Disconnect(uint) { f.disconnected = true }

func TestMQTTMirrorPublish(t *testing.T) {
	pub := &fakePublisher{connected: true}
	m := newMQTTMirror(pub, "galaxyd/now-playing", logging.Nop())
	m.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	require.NoError(t, m.Publish(context.Background(), types.PresenceStatus{Playing: true, Details: "Orbit", State: "Nova", Left: 12}))
	require.Len(t, pub.messages, 1)

	msg := pub.messages[0]
	assert.Equal(t, "galaxyd/now-playing", msg.topic)
	assert.True(t, msg.retained)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &body))
	assert.Equal(t, "Orbit", body["title"])
	assert.Equal(t, "Nova", body["artist"])
	assert.Equal(t, float64(1_700_000_000), body["updatedAt"])

	require.NoError(t, m.Close())
	assert.True(t, pub.disconnected)
}

func TestMQTTMirrorErrors(t *testing.T) {
	m := newMQTTMirror(&fakePublisher{}, "t", logging.Nop())
	assert.Error(t, m.Publish(context.Background(), types.PresenceStatus{}))

	m = newMQTTMirror(&fakePublisher{connected: true, err: errors.New("denied")}, "t", logging.Nop())
	assert.EqualError(t, m.Publish(context.Background(), types.PresenceStatus{}), "denied")
}

func TestNoOp(t *testing.T) {
	var m Mirror = NewNoOp()
	assert.Equal(t, "noop", m.Name())
	assert.NoError(t, m.Publish(context.Background(), types.PresenceStatus{}))
	assert.NoError(t, m.Close())
}
