package presence

import (
	"github.com/rs/zerolog"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

// Drain consumes transport state changes until the channel is closed,
// logging each one and handing it to observe.
func Drain(states <-chan types.ConnState, log zerolog.Logger, observe func(types.ConnState)) {
	for state := range states {
		log.Debug().Stringer("state", state).Msg("discord connection state")
		if observe != nil {
			observe(state)
		}
	}
	log.Debug().Msg("discord state stream closed")
}
