// Package cli holds the voro command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/brensch/voro/internal/config"
	"github.com/brensch/voro/logging"
	"github.com/brensch/voro/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const spinnerCharset = 14

// app carries the resolved configuration to every command.
type app struct {
	configPath string
	config     config.Config
	log        *logrus.Logger
}

func (a *app) openDB(ctx context.Context) (*store.DB, error) {
	db, err := store.Open(ctx, a.config.Database)
	if err != nil {
		return nil, err
	}
	a.log.WithField("database", a.config.Database).Debug("database opened")
	return db, nil
}

func Root() *cobra.Command {
	a := &app{log: logrus.StandardLogger()}

	root := &cobra.Command{
		Use:   "voro",
		Short: "Build Voronoi boards and referee connection games on them",
		Args:  cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	// global flags
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default "+config.DefaultPath+")")
	flags.String("database", "", "SQLite database path")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "Log format ("+logging.FormatText+" or "+logging.FormatPrettyJSON+")")
	flags.BoolP("trace", "t", false, "Show Trace Information")

	root.AddCommand(
		Build(a),
		Render(a),
		InitDB(a),
		AddBoard(a),
		NewGame(a),
		Verify(a),
		Serve(a),
		Export(a),
		Stats(a),
		Watch(a),
	)
	return root
}

// load layers flags over the config file and environment, then configures
// logging.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("database") {
		cfg.Database, _ = flags.GetString("database")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	// If --trace flag is provided, set logging level to Trace.
	if flags.Changed("trace") {
		cfg.Log.Level = logrus.TraceLevel.String()
	}

	if err := logging.Configure(a.log, cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	a.config = cfg
	return nil
}

func overrideString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func overrideInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}
