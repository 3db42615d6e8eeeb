package presence

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

var (
	// ErrNotConnected is returned by transport calls made before a
	// successful Connect or after the connection dropped
	ErrNotConnected = errors.New("presence transport not connected")

	// ErrInvalidAppID is returned when the application ID is empty or
	// not a Discord snowflake
	ErrInvalidAppID = errors.New("invalid discord application id")
)

// Client is a rich presence transport
type Client interface {
	Connect(ctx context.Context) error
	// SetActivity replaces the current activity; a nil activity clears it
	SetActivity(ctx context.Context, activity *Activity) error
	Connected() bool
	Close() error
	// States reports connection state changes and is closed by Close
	States() <-chan types.ConnState
}

// DiscordError is an ERROR event returned by Discord in reply to a command
type DiscordError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *DiscordError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("discord error %d", e.Code)
	}
	return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
}
