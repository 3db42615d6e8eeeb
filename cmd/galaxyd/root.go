package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/galaxyplayer/galaxyd/internal/config"
	"github.com/galaxyplayer/galaxyd/internal/logging"
)

type globalFlags struct {
	configDir string
	logLevel  string
	socket    string
}

// env is the state every subcommand starts from
type env struct {
	configDir string
	config    *config.Manager
	log       zerolog.Logger
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "galaxyd",
		Short:         "Music library and rich presence daemon for the galaxy player",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config", "", "configuration directory (default: ~/.config/galaxyd)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&flags.socket, "socket", "", "command socket path")

	root.AddCommand(
		serveCommand(flags),
		scanCommand(flags),
		coverCommand(flags),
		presenceCommand(flags),
		versionCommand(),
	)
	return root
}

// setup loads the configuration, letting global flags override it, and
// builds the root logger.
func setup(cmd *cobra.Command, flags *globalFlags) (*env, error) {
	dir := flags.configDir
	if dir == "" {
		var err error
		if dir, err = config.DefaultConfigDir(); err != nil {
			return nil, err
		}
	}

	mgr := config.NewManager(dir)
	pf := cmd.Root().PersistentFlags()
	if err := mgr.BindFlag("log.level", pf.Lookup("log-level")); err != nil {
		return nil, err
	}
	if err := mgr.BindFlag("server.socketPath", pf.Lookup("socket")); err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}

	cfg := mgr.Get()
	log := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	return &env{configDir: dir, config: mgr, log: log}, nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "galaxyd", Version)
		},
	}
}
