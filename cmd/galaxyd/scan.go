package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/galaxyplayer/galaxyd/internal/library"
)

func scanCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan DIR",
		Short: "List the audio files in a directory as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}

			files, err := library.NewScanner(e.log).ReadDirectory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(files)
		},
	}
}
