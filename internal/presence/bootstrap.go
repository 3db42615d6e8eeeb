package presence

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Default bootstrap policy: Discord may still be starting alongside us
const (
	DefaultRetryAttempts = 10
	DefaultRetryInterval = 2 * time.Second
)

// Bootstrap connects the handle's transport, trying up to maxAttempts times
// with a fixed delay in between. The handle is released while sleeping.
// Giving up is logged, never returned.
func Bootstrap(ctx context.Context, h *Handle, maxAttempts int, delay time.Duration, log zerolog.Logger) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt := 0
	connect := func() error {
		attempt++
		return h.Do(ctx, func(g *Guard) error {
			if g.Connected() {
				return nil
			}
			return g.Connect(ctx)
		})
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(maxAttempts-1)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		log.Debug().Err(err).Int("attempt", attempt).Dur("retryIn", next).Msg("discord not reachable yet")
	}

	if err := backoff.RetryNotify(connect, policy, notify); err != nil {
		log.Warn().Err(err).Int("attempts", attempt).Msg("giving up on discord rich presence")
		return
	}
	log.Info().Int("attempts", attempt).Msg("discord rich presence ready")
}
