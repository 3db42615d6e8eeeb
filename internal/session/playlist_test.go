package session

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

func tracks(names ...string) []types.FileInfo {
	out := make([]types.FileInfo, len(names))
	for i, n := range names {
		out[i] = types.FileInfo{Path: "/music/" + n + ".mp3", Name: n, Artist: types.UnknownArtist}
	}
	return out
}

func TestPlaylistWrapAround(t *testing.T) {
	p := NewPlaylist()
	p.Load("/music", tracks("a", "b", "c"))

	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.Name)

	prev, ok := p.Prev()
	require.True(t, ok)
	assert.Equal(t, "c", prev.Name, "prev from the first track wraps to the last")

	next, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "a", next.Name, "next from the last track wraps to the first")

	p.Next()
	p.Next()
	idx, size := p.Position()
	assert.Equal(t, 2, idx)
	assert.Equal(t, 3, size)
}

func TestPlaylistEmpty(t *testing.T) {
	p := NewPlaylist()
	_, ok := p.Next()
	assert.False(t, ok)
	_, ok = p.Prev()
	assert.False(t, ok)
	_, ok = p.Current()
	assert.False(t, ok)
	assert.False(t, p.Jump(0))
}

func TestPlaylistRestoreRule(t *testing.T) {
	p := NewPlaylist()
	p.Restore(State{Directory: "/music", Index: 2, Volume: 80})

	p.Load("/music", tracks("a", "b", "c"))
	cur, _ := p.Current()
	assert.Equal(t, "c", cur.Name, "same directory keeps the saved index")

	p.Restore(State{Directory: "/music", Index: 7, Volume: 80})
	p.Load("/music", tracks("a", "b", "c"))
	idx, _ := p.Position()
	assert.Equal(t, 0, idx, "out of range index resets")

	p.Jump(1)
	p.Load("/other", tracks("x", "y"))
	idx, _ = p.Position()
	assert.Equal(t, 0, idx, "a new directory starts at the top")
	assert.Equal(t, 80, p.Snapshot().Volume)
}

func TestPlaylistVolumeClamp(t *testing.T) {
	p := NewPlaylist()
	assert.Equal(t, DefaultVolume, p.Snapshot().Volume)

	p.SetVolume(140)
	assert.Equal(t, 100, p.Snapshot().Volume)
	p.SetVolume(-3)
	assert.Equal(t, 0, p.Snapshot().Volume)
}

func TestPlaylistNotifiesChanges(t *testing.T) {
	p := NewPlaylist()
	var calls atomic.Int32
	p.SetOnChange(func() { calls.Add(1) })

	p.Load("/music", tracks("a", "b"))
	p.Next()
	p.Jump(0)
	p.SetVolume(10)
	p.Jump(9)

	assert.Equal(t, int32(4), calls.Load())
}
