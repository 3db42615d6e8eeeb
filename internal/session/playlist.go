// Package session remembers what the player was doing: the directory it
// last listed, the selected track and the volume.
package session

import (
	"sync"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

// DefaultVolume is used until the GUI sets one
const DefaultVolume = 50

// State is the persisted part of a session
type State struct {
	Directory string `json:"directory"`
	Index     int    `json:"index"`
	Volume    int    `json:"volume"`
}

// ChangeCallback is called after the session changes
type ChangeCallback func()

// Playlist holds the tracks of the last listed directory and the cursor
// into them. Navigation wraps around at both ends.
type Playlist struct {
	mu        sync.RWMutex
	directory string
	tracks    []types.FileInfo
	index     int
	volume    int
	onChange  ChangeCallback
}

// NewPlaylist creates an empty playlist
func NewPlaylist() *Playlist {
	return &Playlist{
		tracks: make([]types.FileInfo, 0),
		volume: DefaultVolume,
	}
}

// SetOnChange sets a callback to be called when the session changes
func (p *Playlist) SetOnChange(callback ChangeCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = callback
}

// notifyChange must be called without the lock held
func (p *Playlist) notifyChange() {
	p.mu.RLock()
	callback := p.onChange
	p.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

// Load replaces the tracks with a fresh listing of dir. The cursor is kept
// when dir is the directory the session was on and the index still fits,
// otherwise it goes back to the first track.
func (p *Playlist) Load(dir string, tracks []types.FileInfo) {
	p.mu.Lock()
	if dir != p.directory || p.index < 0 || p.index >= len(tracks) {
		p.index = 0
	}
	p.directory = dir
	p.tracks = append(make([]types.FileInfo, 0, len(tracks)), tracks...)
	p.mu.Unlock()

	p.notifyChange()
}

// Restore applies a persisted state. Tracks are not touched; the next Load
// validates the index against the real listing.
func (p *Playlist) Restore(state State) {
	p.mu.Lock()
	p.directory = state.Directory
	p.index = state.Index
	p.volume = clampVolume(state.Volume)
	p.mu.Unlock()
}

// Snapshot returns the persistable state
func (p *Playlist) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return State{Directory: p.directory, Index: p.index, Volume: p.volume}
}

// Current returns the selected track
func (p *Playlist) Current() (types.FileInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.index < 0 || p.index >= len(p.tracks) {
		return types.FileInfo{}, false
	}
	return p.tracks[p.index], true
}

// Next moves to the following track, wrapping to the first
func (p *Playlist) Next() (types.FileInfo, bool) {
	return p.step(1)
}

// Prev moves to the previous track, wrapping to the last
func (p *Playlist) Prev() (types.FileInfo, bool) {
	return p.step(-1)
}

func (p *Playlist) step(delta int) (types.FileInfo, bool) {
	p.mu.Lock()
	n := len(p.tracks)
	if n == 0 {
		p.mu.Unlock()
		return types.FileInfo{}, false
	}
	p.index = ((p.index+delta)%n + n) % n
	track := p.tracks[p.index]
	p.mu.Unlock()

	p.notifyChange()
	return track, true
}

// Jump selects the track at index. It reports false when out of range.
func (p *Playlist) Jump(index int) bool {
	p.mu.Lock()
	if index < 0 || index >= len(p.tracks) {
		p.mu.Unlock()
		return false
	}
	p.index = index
	p.mu.Unlock()

	p.notifyChange()
	return true
}

// SetVolume stores the volume, clamped to 0-100
func (p *Playlist) SetVolume(volume int) {
	p.mu.Lock()
	p.volume = clampVolume(volume)
	p.mu.Unlock()

	p.notifyChange()
}

// Position returns the cursor and the number of tracks
func (p *Playlist) Position() (index, size int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index, len(p.tracks)
}

func clampVolume(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
