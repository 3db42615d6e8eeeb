package media

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

const (
	mprisInterface       = "org.mpris.MediaPlayer2"
	mprisPlayerInterface = "org.mpris.MediaPlayer2.Player"
	mprisBusName         = "org.mpris.MediaPlayer2.galaxy"
	mprisObjectPath      = "/org/mpris/MediaPlayer2"
	mprisIdentity        = "galaxy"
)

var supportedMimeTypes = []string{"audio/mpeg", "audio/flac", "audio/x-wav", "audio/ogg", "audio/x-m4a"}

// mprisPlayer is the object exported on the bus. Its methods implement the
// MediaPlayer2, Player and Properties interfaces.
type mprisPlayer struct {
	mu       sync.RWMutex
	handler  CommandHandler
	state    PlaybackState
	metadata Metadata
	track    int
}

func newMPRISPlayer(handler CommandHandler) *mprisPlayer {
	return &mprisPlayer{handler: handler, state: StateStopped}
}

// apply stores status and returns the properties that changed
func (p *mprisPlayer) apply(status types.PresenceStatus) map[string]dbus.Variant {
	state, md := FromStatus(status)

	p.mu.Lock()
	defer p.mu.Unlock()

	changed := make(map[string]dbus.Variant)
	if md.Title != p.metadata.Title || md.Artist != p.metadata.Artist {
		p.track++
	}
	if md != p.metadata {
		p.metadata = md
		changed["Metadata"] = dbus.MakeVariant(p.metadataMap())
	}
	if state != p.state {
		p.state = state
		changed["PlaybackStatus"] = dbus.MakeVariant(state.String())
	}
	return changed
}

// metadataMap must be called with p.mu held
func (p *mprisPlayer) metadataMap() map[string]dbus.Variant {
	m := make(map[string]dbus.Variant)

	m["mpris:trackid"] = dbus.MakeVariant(dbus.ObjectPath(fmt.Sprintf("/org/galaxy/track/%d", p.track)))

	if p.metadata.Title != "" {
		m["xesam:title"] = dbus.MakeVariant(p.metadata.Title)
	}
	if p.metadata.Artist != "" {
		m["xesam:artist"] = dbus.MakeVariant([]string{p.metadata.Artist})
	}
	if p.metadata.Remaining > 0 {
		m["mpris:length"] = dbus.MakeVariant(p.metadata.Remaining.Microseconds())
	}
	return m
}

func (p *mprisPlayer) dispatch(cmd Command) *dbus.Error {
	if p.handler == nil {
		return nil
	}
	if err := p.handler.OnCommand(cmd); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// org.mpris.MediaPlayer2 methods

func (p *mprisPlayer) Raise() *dbus.Error {
	return nil
}

func (p *mprisPlayer) Quit() *dbus.Error {
	return nil
}

// org.mpris.MediaPlayer2.Player methods

func (p *mprisPlayer) Play() *dbus.Error {
	return p.dispatch(CmdPlay)
}

func (p *mprisPlayer) Pause() *dbus.Error {
	return p.dispatch(CmdPause)
}

func (p *mprisPlayer) PlayPause() *dbus.Error {
	return p.dispatch(CmdPlayPause)
}

func (p *mprisPlayer) Stop() *dbus.Error {
	return p.dispatch(CmdStop)
}

func (p *mprisPlayer) Next() *dbus.Error {
	return p.dispatch(CmdNext)
}

func (p *mprisPlayer) Previous() *dbus.Error {
	return p.dispatch(CmdPrevious)
}

// Seeking is not offered; the daemon does not own playback.
func (p *mprisPlayer) Seek(offset int64) *dbus.Error {
	return nil
}

func (p *mprisPlayer) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	return nil
}

// org.freedesktop.DBus.Properties methods

func (p *mprisPlayer) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	all, derr := p.GetAll(iface)
	if derr != nil {
		return dbus.Variant{}, derr
	}
	v, ok := all[prop]
	if !ok {
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown property: %s", prop))
	}
	return v, nil
}

func (p *mprisPlayer) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	switch iface {
	case mprisInterface:
		return rootProperties(), nil
	case mprisPlayerInterface:
		return p.playerProperties(), nil
	}
	return nil, dbus.MakeFailedError(fmt.Errorf("unknown interface: %s", iface))
}

// Set accepts no writable properties
func (p *mprisPlayer) Set(iface, prop string, value dbus.Variant) *dbus.Error {
	return nil
}

func rootProperties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"CanQuit":             dbus.MakeVariant(false),
		"CanRaise":            dbus.MakeVariant(false),
		"HasTrackList":        dbus.MakeVariant(false),
		"Identity":            dbus.MakeVariant(mprisIdentity),
		"DesktopEntry":        dbus.MakeVariant(mprisIdentity),
		"SupportedUriSchemes": dbus.MakeVariant([]string{"file"}),
		"SupportedMimeTypes":  dbus.MakeVariant(supportedMimeTypes),
	}
}

func (p *mprisPlayer) playerProperties() map[string]dbus.Variant {
	p.mu.RLock()
	defer p.mu.RUnlock()

	controllable := p.handler != nil
	return map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(p.state.String()),
		"Metadata":       dbus.MakeVariant(p.metadataMap()),
		"Position":       dbus.MakeVariant(int64(0)),
		"Rate":           dbus.MakeVariant(1.0),
		"MinimumRate":    dbus.MakeVariant(1.0),
		"MaximumRate":    dbus.MakeVariant(1.0),
		"Volume":         dbus.MakeVariant(1.0),
		"CanGoNext":      dbus.MakeVariant(controllable),
		"CanGoPrevious":  dbus.MakeVariant(controllable),
		"CanPlay":        dbus.MakeVariant(controllable),
		"CanPause":       dbus.MakeVariant(controllable),
		"CanSeek":        dbus.MakeVariant(false),
		"CanControl":     dbus.MakeVariant(controllable),
	}
}
