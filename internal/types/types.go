// Package types provides shared type definitions used across the galaxyd daemon.
package types

// UnknownArtist replaces a missing or empty artist tag.
const UnknownArtist = "Unknown Artist"

// FileInfo describes one playable file found in a directory scan.
type FileInfo struct {
	Duration float64 `json:"duration"` // seconds
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Artist   string  `json:"artist"`
}

// PresenceStatus is the "now playing" state pushed by the GUI on every
// playback event.
type PresenceStatus struct {
	Playing bool   `json:"playing"`
	Details string `json:"details"`
	State   string `json:"state"`
	Left    int64  `json:"left"` // seconds remaining in the current track
}

// ConnState represents the connection state of a presence transport
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of the connection state
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

