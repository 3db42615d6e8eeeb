// Package app implements the commands shared by the socket and HTTP
// surfaces on top of the library, session and presence services.
package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/galaxyplayer/galaxyd/internal/config"
	"github.com/galaxyplayer/galaxyd/internal/events"
	"github.com/galaxyplayer/galaxyd/internal/library"
	"github.com/galaxyplayer/galaxyd/internal/media"
	"github.com/galaxyplayer/galaxyd/internal/metrics"
	"github.com/galaxyplayer/galaxyd/internal/presence"
	"github.com/galaxyplayer/galaxyd/internal/session"
	"github.com/galaxyplayer/galaxyd/internal/types"
)

// ErrEmptyPlaylist is returned by navigation before any directory was read
var ErrEmptyPlaylist = errors.New("no tracks loaded")

// App wires the daemon's services together
type App struct {
	Version string

	config   *config.Manager
	scanner  *library.Scanner
	covers   *library.Covers
	presence *presence.Service
	playlist *session.Playlist
	store    *session.Store
	bus      *events.Bus
	metrics  *metrics.Metrics
	log      zerolog.Logger
	started  time.Time
}

// Deps are the services an App is built from
type Deps struct {
	Version  string
	Config   *config.Manager
	Scanner  *library.Scanner
	Covers   *library.Covers
	Presence *presence.Service
	Playlist *session.Playlist
	Store    *session.Store
	Bus      *events.Bus
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

// New creates an App. Scanner, Covers, Playlist and Bus get defaults when nil.
func New(d Deps) *App {
	if d.Scanner == nil {
		d.Scanner = library.NewScanner(d.Log, library.WithMetrics(d.Metrics))
	}
	if d.Covers == nil {
		d.Covers = library.NewCovers(nil, d.Log, d.Metrics)
	}
	if d.Playlist == nil {
		d.Playlist = session.NewPlaylist()
	}
	if d.Bus == nil {
		d.Bus = events.NewBus()
	}
	if d.Presence == nil {
		d.Presence = presence.NewService(nil, presence.ServiceOptions{Emitter: d.Bus, Metrics: d.Metrics}, d.Log)
	}

	a := &App{
		Version:  d.Version,
		config:   d.Config,
		scanner:  d.Scanner,
		covers:   d.Covers,
		presence: d.Presence,
		playlist: d.Playlist,
		store:    d.Store,
		bus:      d.Bus,
		metrics:  d.Metrics,
		log:      d.Log,
		started:  time.Now(),
	}
	a.playlist.SetOnChange(func() {
		a.bus.Emit(events.SessionChanged, a.Session())
	})
	return a
}

// Bus returns the event bus
func (a *App) Bus() *events.Bus { return a.bus }

// Metrics returns the metrics, possibly nil
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// ReadDirectory lists dir and makes it the current playlist. Failures are
// logged and yield an empty list.
func (a *App) ReadDirectory(ctx context.Context, dir string) []types.FileInfo {
	files, err := a.scanner.ReadDirectory(ctx, dir)
	if err != nil {
		a.log.Warn().Err(err).Str("dir", dir).Msg("read directory failed")
		return []types.FileInfo{}
	}
	a.loadDirectory(dir, files)
	return files
}

// loadDirectory makes a successful listing the playlist
func (a *App) loadDirectory(dir string, files []types.FileInfo) {
	if dir != a.playlist.Snapshot().Directory {
		a.covers.Flush()
	}
	a.playlist.Load(dir, files)
	a.saveSession()
	if a.config != nil {
		if err := a.config.AddLibraryPath(dir); err != nil {
			a.log.Warn().Err(err).Msg("failed to remember library path")
		}
	}
}

// Cover returns the embedded artwork of path
func (a *App) Cover(path string) ([]byte, bool) {
	return a.covers.Get(path)
}

// EmitCover sends one cover event to emitter when path has artwork
func (a *App) EmitCover(path string, emitter events.Emitter) bool {
	return a.covers.Emit(path, emitter)
}

// ChangePresence publishes the now-playing status
func (a *App) ChangePresence(ctx context.Context, status presence.Status) error {
	return a.presence.Update(ctx, status)
}

// SessionView is the session as reported to clients
type SessionView struct {
	session.State
	Tracks  int             `json:"tracks"`
	Current *types.FileInfo `json:"current,omitempty"`
}

// Session returns the current session
func (a *App) Session() SessionView {
	view := SessionView{State: a.playlist.Snapshot()}
	_, view.Tracks = a.playlist.Position()
	if cur, ok := a.playlist.Current(); ok {
		view.Current = &cur
	}
	return view
}

// SessionPatch changes parts of the session; nil fields are left alone
type SessionPatch struct {
	Directory *string `json:"directory,omitempty"`
	Index     *int    `json:"index,omitempty"`
	Volume    *int    `json:"volume,omitempty"`
}

// SetSession applies patch. A new directory is read immediately and the
// index is applied to its listing; without an index it starts at the first
// track. A directory that cannot be read leaves the session untouched.
func (a *App) SetSession(ctx context.Context, patch SessionPatch) (SessionView, error) {
	if patch.Directory != nil && *patch.Directory != a.playlist.Snapshot().Directory {
		dir := *patch.Directory
		files, err := a.scanner.ReadDirectory(ctx, dir)
		if err != nil {
			return a.Session(), errors.Wrapf(err, "read directory %s", dir)
		}

		state := a.playlist.Snapshot()
		state.Directory = dir
		state.Index = 0
		if patch.Index != nil {
			state.Index = *patch.Index
		}
		if patch.Volume != nil {
			state.Volume = *patch.Volume
		}
		// flush covers before Restore renames the session
		a.covers.Flush()
		a.playlist.Restore(state)
		a.loadDirectory(dir, files)
		return a.Session(), nil
	}

	if patch.Volume != nil {
		a.playlist.SetVolume(*patch.Volume)
	}
	if patch.Index != nil && !a.playlist.Jump(*patch.Index) {
		return a.Session(), errors.Errorf("index %d out of range", *patch.Index)
	}
	a.saveSession()
	return a.Session(), nil
}

// Next selects the following track, wrapping around
func (a *App) Next() (types.FileInfo, error) {
	return a.navigate(a.playlist.Next)
}

// Prev selects the previous track, wrapping around
func (a *App) Prev() (types.FileInfo, error) {
	return a.navigate(a.playlist.Prev)
}

func (a *App) navigate(step func() (types.FileInfo, bool)) (types.FileInfo, error) {
	track, ok := step()
	if !ok {
		return types.FileInfo{}, ErrEmptyPlaylist
	}
	a.saveSession()
	return track, nil
}

// OnCommand handles desktop media keys
func (a *App) OnCommand(cmd media.Command) error {
	var err error
	switch cmd {
	case media.CmdNext:
		_, err = a.Next()
	case media.CmdPrevious:
		_, err = a.Prev()
	default:
		// playback belongs to the GUI; it receives the rest as events
		a.log.Debug().Stringer("cmd", cmd).Msg("forwarding media command")
		a.bus.Emit(events.MediaCommand, cmd.String())
		return nil
	}
	return err
}

// StatusView summarises the daemon
type StatusView struct {
	Version  string               `json:"version"`
	Presence string               `json:"presence"`
	Discord  bool                 `json:"discord"`
	Playing  *presence.Status     `json:"nowPlaying,omitempty"`
	Session  SessionView          `json:"session"`
	LastScan *library.ScanSummary `json:"lastScan,omitempty"`
	Events   EventStats           `json:"events"`
	Uptime   int64                `json:"uptimeSeconds"`
}

// EventStats reports event bus delivery
type EventStats struct {
	Subscribers int    `json:"subscribers"`
	Dropped     uint64 `json:"dropped"`
}

// Status returns the daemon status
func (a *App) Status() StatusView {
	return StatusView{
		Version:  a.Version,
		Presence: a.presence.State().String(),
		Discord:  a.presence.Enabled(),
		Playing:  a.presence.Last(),
		Session:  a.Session(),
		LastScan: a.scanner.LastScan(),
		Events:   EventStats{Subscribers: a.bus.Subscribers(), Dropped: a.bus.Dropped()},
		Uptime:   int64(time.Since(a.started).Seconds()),
	}
}

// ConfigPatch changes parts of the configuration; nil fields are left alone
type ConfigPatch struct {
	LibraryPaths *[]string `json:"libraryPaths,omitempty"`
	LargeImage   *string   `json:"largeImage,omitempty"`
	LogLevel     *string   `json:"logLevel,omitempty"`
	MQTTBroker   *string   `json:"mqttBroker,omitempty"`

	RemoveLibraryPath *string `json:"removeLibraryPath,omitempty"`
}

// ConfigView is the configuration as reported to clients
type ConfigView struct {
	ConfigPath string `json:"configPath"`
	config.Config
}

// Config returns the current configuration
func (a *App) Config() (ConfigView, error) {
	if a.config == nil {
		return ConfigView{}, errors.New("configuration unavailable")
	}
	return ConfigView{ConfigPath: a.config.GetPath(), Config: a.config.Get()}, nil
}

// SetConfig applies patch and saves it. Presence and mirror settings take
// effect on restart.
func (a *App) SetConfig(patch ConfigPatch) (ConfigView, error) {
	if a.config == nil {
		return ConfigView{}, errors.New("configuration unavailable")
	}

	err := a.config.Update(func(cfg *config.Config) {
		if patch.LibraryPaths != nil {
			cfg.LibraryPaths = append([]string{}, *patch.LibraryPaths...)
		}
		if patch.LargeImage != nil {
			cfg.Discord.LargeImage = *patch.LargeImage
		}
		if patch.LogLevel != nil {
			cfg.Log.Level = *patch.LogLevel
		}
		if patch.MQTTBroker != nil {
			cfg.MQTT.Broker = *patch.MQTTBroker
		}
	})
	if err != nil {
		return ConfigView{}, errors.Wrap(err, "save config")
	}
	if patch.RemoveLibraryPath != nil {
		if err := a.config.RemoveLibraryPath(*patch.RemoveLibraryPath); err != nil {
			return ConfigView{}, errors.Wrap(err, "save config")
		}
	}
	a.log.Info().Msg("configuration updated")
	return a.Config()
}

func (a *App) saveSession() {
	if a.store == nil {
		return
	}
	if err := a.store.Save(); err != nil {
		a.log.Warn().Err(err).Msg("failed to save session")
	}
}
