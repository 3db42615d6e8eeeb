//go:build linux

package media

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

// MPRISMirror publishes the status as an MPRIS media player on the session bus
type MPRISMirror struct {
	conn   *dbus.Conn
	player *mprisPlayer
	log    zerolog.Logger

	closeOnce sync.Once
}

// NewMPRIS claims the galaxy MPRIS bus name. Next and Previous requests from
// the desktop are passed to handler.
func NewMPRIS(handler CommandHandler, log zerolog.Logger) (Mirror, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "connect to session bus")
	}

	reply, err := conn.RequestName(mprisBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "request bus name")
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, errors.Errorf("bus name %s already taken", mprisBusName)
	}

	m := &MPRISMirror{
		conn:   conn,
		player: newMPRISPlayer(handler),
		log:    log,
	}

	path := dbus.ObjectPath(mprisObjectPath)
	for _, iface := range []string{mprisInterface, mprisPlayerInterface, "org.freedesktop.DBus.Properties"} {
		if err := conn.Export(m.player, path, iface); err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "export %s", iface)
		}
	}

	log.Info().Str("bus", mprisBusName).Msg("mpris session registered")
	return m, nil
}

// Name implements Mirror
func (m *MPRISMirror) Name() string { return "mpris" }

// Publish implements Mirror
func (m *MPRISMirror) Publish(ctx context.Context, status types.PresenceStatus) error {
	changed := m.player.apply(status)
	if len(changed) == 0 {
		return nil
	}
	return m.conn.Emit(
		dbus.ObjectPath(mprisObjectPath),
		"org.freedesktop.DBus.Properties.PropertiesChanged",
		mprisPlayerInterface,
		changed,
		[]string{},
	)
}

// Close releases the bus name and connection
func (m *MPRISMirror) Close() error {
	var err error
	m.closeOnce.Do(func() {
		_, _ = m.conn.ReleaseName(mprisBusName)
		err = m.conn.Close()
	})
	return err
}
