package library

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxyplayer/galaxyd/internal/events"
	"github.com/galaxyplayer/galaxyd/internal/logging"
	"github.com/galaxyplayer/galaxyd/internal/metrics"
)

type recordedEvent struct {
	name    string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Emit(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: name, payload: payload})
}

func TestCoversEmitWithArtwork(t *testing.T) {
	dir := t.TempDir()
	path := writeMP3(t, dir, "cover.mp3", mp3Fixture{title: "T", artist: "A", cover: pngMagic, frames: 2})

	covers := NewCovers(nil, logging.Nop(), nil)
	rec := &recorder{}

	assert.True(t, covers.Emit(path, rec))
	require.Len(t, rec.events, 1)
	assert.Equal(t, events.CoverArt, rec.events[0].name)
	assert.Equal(t, pngMagic, rec.events[0].payload)
}

func TestCoversEmitWithoutArtwork(t *testing.T) {
	dir := t.TempDir()
	plain := writeMP3(t, dir, "plain.mp3", mp3Fixture{title: "T", frames: 2})
	junk := writeFile(t, dir, "junk.mp3", []byte("garbage garbage"))

	covers := NewCovers(nil, logging.Nop(), nil)
	rec := &recorder{}

	assert.False(t, covers.Emit(plain, rec))
	assert.False(t, covers.Emit(junk, rec))
	assert.False(t, covers.Emit(dir+"/missing.mp3", rec))
	assert.Empty(t, rec.events)
}

func TestCoversCachesLookups(t *testing.T) {
	dir := t.TempDir()
	path := writeMP3(t, dir, "cover.mp3", mp3Fixture{artist: "A", cover: pngMagic, frames: 1})

	m, err := metrics.New()
	require.NoError(t, err)
	covers := NewCovers(nil, logging.Nop(), m)
	lookups := func(label string) float64 {
		return counterValue(t, m, "galaxyd_cover_requests_total", "cache", label)
	}

	first, ok := covers.Get(path)
	require.True(t, ok)
	second, ok := covers.Get(path)
	require.True(t, ok)
	assert.Equal(t, first, second)

	assert.Equal(t, 1.0, lookups("hit"))
	assert.Equal(t, 1.0, lookups("miss"))

	covers.Flush()
	_, ok = covers.Get(path)
	require.True(t, ok)
	assert.Equal(t, 2.0, lookups("miss"))
}

func TestCoversEmitThroughBus(t *testing.T) {
	dir := t.TempDir()
	path := writeMP3(t, dir, "cover.mp3", mp3Fixture{artist: "A", cover: pngMagic, frames: 1})

	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	require.True(t, NewCovers(nil, logging.Nop(), nil).Emit(path, bus))

	ev := <-ch
	assert.Equal(t, events.CoverArt, ev.Name)
	assert.Equal(t, pngMagic, ev.Payload)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second event %q", extra.Name)
	default:
	}
}

func counterValue(t *testing.T, m *metrics.Metrics, name, label, value string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
