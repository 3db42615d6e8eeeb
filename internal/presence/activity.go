// Package presence mirrors the "now playing" status into Discord rich
// presence over Discord's local IPC channel.
package presence

import (
	"time"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

// DefaultLargeImage is the asset key of the application icon
const DefaultLargeImage = "galaxy"

// Status is the playback state pushed by the GUI
type Status = types.PresenceStatus

// Assets holds the image keys shown next to an activity
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
}

// Timestamps bounds an activity in unix seconds
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Activity is the SET_ACTIVITY payload
type Activity struct {
	State      string      `json:"state,omitempty"`
	Details    string      `json:"details,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
}

// BuildActivity translates status into an activity. Left counts the seconds
// remaining in the track, so the end timestamp is now plus left. A paused
// track carries no timestamps at all.
func BuildActivity(status Status, largeImage string, now time.Time) *Activity {
	if largeImage == "" {
		largeImage = DefaultLargeImage
	}

	activity := &Activity{
		State:   status.State,
		Details: status.Details,
		Assets:  &Assets{LargeImage: largeImage},
	}
	if status.Playing {
		activity.Timestamps = &Timestamps{End: now.Unix() + status.Left}
	}
	return activity
}
