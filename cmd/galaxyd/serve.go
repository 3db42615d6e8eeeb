package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/galaxyplayer/galaxyd/internal/app"
	"github.com/galaxyplayer/galaxyd/internal/config"
	"github.com/galaxyplayer/galaxyd/internal/events"
	"github.com/galaxyplayer/galaxyd/internal/httpapi"
	"github.com/galaxyplayer/galaxyd/internal/ipc"
	"github.com/galaxyplayer/galaxyd/internal/library"
	"github.com/galaxyplayer/galaxyd/internal/logging"
	"github.com/galaxyplayer/galaxyd/internal/media"
	"github.com/galaxyplayer/galaxyd/internal/metrics"
	"github.com/galaxyplayer/galaxyd/internal/presence"
	"github.com/galaxyplayer/galaxyd/internal/session"
)

const clearTimeout = 2 * time.Second

func serveCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
}

func runServe(cmd *cobra.Command, flags *globalFlags) error {
	e, err := setup(cmd, flags)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := e.config.Get()
	log := e.log

	log.Info().Str("version", Version).Str("config", e.config.GetPath()).Msg("galaxyd starting")

	m, err := metrics.New()
	if err != nil {
		return errors.Wrap(err, "register metrics")
	}
	bus := events.NewBus()

	playlist := session.NewPlaylist()
	store := session.NewStore(e.configDir, playlist)
	if err := store.Load(); err != nil {
		log.Warn().Err(err).Str("path", store.GetFilePath()).Msg("failed to load saved session")
	} else {
		log.Debug().Str("path", store.GetFilePath()).Str("dir", playlist.Snapshot().Directory).Msg("session restored")
	}

	// the MPRIS mirror dispatches media keys to the app built below
	var current atomic.Pointer[app.App]
	mirrors := startMirrors(ctx, cfg, media.CommandHandlerFunc(func(c media.Command) error {
		if a := current.Load(); a != nil {
			return a.OnCommand(c)
		}
		return nil
	}), log)
	defer closeMirrors(mirrors, log)

	handle, err := newPresenceHandle(cfg.Discord, m, log)
	if err != nil {
		return err
	}

	presenceMirrors := make([]presence.Mirror, 0, len(mirrors))
	for _, mirror := range mirrors {
		presenceMirrors = append(presenceMirrors, mirror)
	}
	svc := presence.NewService(handle, presence.ServiceOptions{
		LargeImage:       cfg.Discord.LargeImage,
		UpdatesPerWindow: cfg.Discord.UpdatesPerWindow,
		UpdateWindow:     cfg.Discord.UpdateWindow,
		Mirrors:          presenceMirrors,
		Emitter:          bus,
		Metrics:          m,
	}, logging.Component(log, "presence"))
	svc.Start()

	a := app.New(app.Deps{
		Version:  Version,
		Config:   e.config,
		Scanner:  library.NewScanner(logging.Component(log, "library"), library.WithMetrics(m)),
		Covers:   library.NewCovers(nil, logging.Component(log, "covers"), m),
		Presence: svc,
		Playlist: playlist,
		Store:    store,
		Bus:      bus,
		Metrics:  m,
		Log:      log,
	})
	current.Store(a)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ipc.NewServer(cfg.Server.SocketPath, a, logging.Component(log, "ipc")).Start(gctx)
	})

	if cfg.Server.HTTPAddr != "" {
		g.Go(func() error {
			return httpapi.New(a, logging.Component(log, "http")).Start(gctx, cfg.Server.HTTPAddr)
		})
	}

	if handle != nil {
		g.Go(func() error {
			presence.Bootstrap(gctx, handle, cfg.Discord.RetryAttempts, cfg.Discord.RetryInterval, logging.Component(log, "presence"))
			return nil
		})
	}

	// resume the directory the GUI had open
	if dir := playlist.Snapshot().Directory; dir != "" {
		g.Go(func() error {
			a.ReadDirectory(gctx, dir)
			return nil
		})
	}

	err = g.Wait()

	clearCtx, cancel := context.WithTimeout(context.Background(), clearTimeout)
	defer cancel()
	if cerr := svc.Clear(clearCtx); cerr != nil {
		log.Debug().Err(cerr).Msg("failed to clear presence")
	}
	if cerr := svc.Close(); cerr != nil {
		log.Debug().Err(cerr).Msg("failed to close presence transport")
	}
	if serr := store.Save(); serr != nil {
		log.Warn().Err(serr).Str("path", store.GetFilePath()).Msg("failed to save session on shutdown")
	}

	log.Info().Msg("galaxyd stopped")
	return err
}

// newPresenceHandle returns nil when Discord is disabled. An invalid
// application ID is a configuration error.
func newPresenceHandle(cfg config.DiscordConfig, m *metrics.Metrics, log zerolog.Logger) (*presence.Handle, error) {
	if !cfg.Enabled {
		log.Info().Msg("discord rich presence disabled")
		return nil, nil
	}

	client, err := presence.NewIPCClient(cfg.AppID, logging.Component(log, "discord"))
	if err != nil {
		return nil, errors.Wrap(err, "discord client")
	}
	return presence.NewHandle(client,
		presence.WithCallTimeout(cfg.CallTimeout),
		presence.WithHandleMetrics(m),
	), nil
}

func startMirrors(ctx context.Context, cfg config.Config, handler media.CommandHandler, log zerolog.Logger) []media.Mirror {
	var mirrors []media.Mirror

	if cfg.MPRIS.Enabled {
		mpris, err := media.NewMPRIS(handler, logging.Component(log, "mpris"))
		if err != nil {
			log.Warn().Err(err).Msg("continuing without media session integration")
		} else {
			mirrors = append(mirrors, mpris)
		}
	}

	if cfg.MQTT.Broker != "" {
		mqtt, err := media.NewMQTT(ctx, media.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		}, logging.Component(log, "mqtt"))
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("continuing without mqtt mirror")
		} else {
			mirrors = append(mirrors, mqtt)
		}
	}

	if len(mirrors) == 0 {
		mirrors = append(mirrors, media.NewNoOp())
	}
	return mirrors
}

func closeMirrors(mirrors []media.Mirror, log zerolog.Logger) {
	for _, m := range mirrors {
		if err := m.Close(); err != nil {
			log.Debug().Err(err).Str("mirror", m.Name()).Msg("failed to close mirror")
		}
	}
}
