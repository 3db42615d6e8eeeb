package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/galaxyplayer/galaxyd/internal/library"
)

func coverCommand(flags *globalFlags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "cover FILE",
		Short: "Extract the embedded cover art of an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}

			data, ok := library.NewCovers(nil, e.log, nil).Get(args[0])
			if !ok {
				return errors.Errorf("%s has no cover art", args[0])
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return errors.Wrap(err, "write cover")
			}
			e.log.Info().Str("file", out).Int("bytes", len(data)).Msg("cover written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: stdout)")
	return cmd
}
