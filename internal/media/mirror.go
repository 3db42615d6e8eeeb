// Package media mirrors the now-playing status outside Discord: the OS
// media session (MPRIS) and an optional MQTT topic.
package media

import (
	"context"
	"time"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

// PlaybackState represents the playback state for media sessions
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StatePlaying
	StatePaused
)

// String returns the MPRIS PlaybackStatus name
func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// Metadata contains track metadata for media session display
type Metadata struct {
	Title     string
	Artist    string
	Remaining time.Duration
}

// FromStatus maps a presence status onto media session terms. The GUI sends
// the track name as details and the artist as state.
func FromStatus(status types.PresenceStatus) (PlaybackState, Metadata) {
	state := StatePaused
	if status.Playing {
		state = StatePlaying
	}
	if status.Details == "" && status.State == "" {
		state = StateStopped
	}

	md := Metadata{Title: status.Details, Artist: status.State}
	if status.Left > 0 {
		md.Remaining = time.Duration(status.Left) * time.Second
	}
	return state, md
}

// Mirror receives every presence status
type Mirror interface {
	Name() string
	Publish(ctx context.Context, status types.PresenceStatus) error
	Close() error
}

// Command represents a media command from the OS
type Command int

const (
	CmdPlay Command = iota
	CmdPause
	CmdPlayPause
	CmdStop
	CmdNext
	CmdPrevious
)

// String returns the command name
func (c Command) String() string {
	switch c {
	case CmdPlay:
		return "Play"
	case CmdPause:
		return "Pause"
	case CmdPlayPause:
		return "PlayPause"
	case CmdStop:
		return "Stop"
	case CmdNext:
		return "Next"
	case CmdPrevious:
		return "Previous"
	default:
		return "Unknown"
	}
}

// CommandHandler handles media commands from the OS
type CommandHandler interface {
	OnCommand(cmd Command) error
}

// CommandHandlerFunc is a function adapter for CommandHandler
type CommandHandlerFunc func(cmd Command) error

func (f CommandHandlerFunc) OnCommand(cmd Command) error {
	return f(cmd)
}

// NoOp is a mirror that does nothing.
// Used when no media integration is available or configured.
type NoOp struct{}

// NewNoOp creates a new no-op mirror
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (NoOp) Name() string { return "noop" }

func (NoOp) Publish(ctx context.Context, status types.PresenceStatus) error {
	return nil
}

func (NoOp) Close() error {
	return nil
}
