package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/galaxyplayer/galaxyd/internal/logging"
	"github.com/galaxyplayer/galaxyd/internal/presence"
)

func presenceCommand(flags *globalFlags) *cobra.Command {
	var (
		status presence.Status
		hold   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Publish a rich presence status without the daemon",
		Long: "Publish a rich presence status without the daemon. Discord drops the " +
			"activity when the connection closes, so the command stays connected until " +
			"interrupted or --hold elapses.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			cfg := e.config.Get().Discord
			ctx := cmd.Context()

			client, err := presence.NewIPCClient(cfg.AppID, logging.Component(e.log, "discord"))
			if err != nil {
				return errors.Wrap(err, "discord client")
			}
			handle := presence.NewHandle(client, presence.WithCallTimeout(cfg.CallTimeout))
			svc := presence.NewService(handle, presence.ServiceOptions{LargeImage: cfg.LargeImage}, e.log)
			svc.Start()
			defer svc.Close()

			presence.Bootstrap(ctx, handle, cfg.RetryAttempts, cfg.RetryInterval, e.log)
			if err := svc.Update(ctx, status); err != nil {
				return err
			}
			e.log.Info().Str("details", status.Details).Str("state", status.State).Msg("presence published")

			if hold > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, hold)
				defer cancel()
			}
			<-ctx.Done()

			clearCtx, cancel := context.WithTimeout(context.Background(), clearTimeout)
			defer cancel()
			return svc.Clear(clearCtx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&status.Details, "details", "", "first line, usually the track title")
	f.StringVar(&status.State, "state", "", "second line, usually the artist")
	f.Int64Var(&status.Left, "left", 0, "seconds left in the track")
	f.BoolVar(&status.Playing, "playing", true, "show the remaining time")
	f.DurationVar(&hold, "hold", 0, "keep the status for this long (default: until interrupted)")
	return cmd
}
