//go:build !linux

package media

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// NewMPRIS is only available on Linux
func NewMPRIS(handler CommandHandler, log zerolog.Logger) (Mirror, error) {
	return nil, errors.New("mpris is not supported on this platform")
}
