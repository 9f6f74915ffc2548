package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/brensch/voro/notify"
	"github.com/brensch/voro/referee"
	"github.com/brensch/voro/server"
	"github.com/brensch/voro/store"
	"github.com/spf13/cobra"
)

func Serve(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve boards, games and live game sockets",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`serve runs the HTTP API and the per-game websockets.

			With a redis url configured, events are also published on
			redis so several serve processes sharing one database can
			fan them out to their own sockets.

			With an archive directory configured, every game that
			completes is appended to rolling parquet shards there.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			overrideString(cmd, "listen", &cfg.Listen)
			overrideString(cmd, "redis", &cfg.RedisURL)
			overrideString(cmd, "static-dir", &cfg.StaticDir)
			overrideString(cmd, "archive-dir", &cfg.Archive.Dir)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			hub := notify.NewHub(notify.DefaultBuffer, a.log)
			var notifier referee.Notifier = hub
			bridgeErr := make(chan error, 1)
			if cfg.RedisURL != "" {
				client, err := notify.DialRedis(ctx, cfg.RedisURL)
				if err != nil {
					return err
				}
				defer client.Close()
				bridge := notify.NewRedisBridge(client, hub, a.log)
				notifier = bridge
				go func() {
					bridgeErr <- bridge.Run(ctx)
				}()
			}

			ref, err := referee.New(db, db, notifier, cfg.BoardCache, a.log)
			if err != nil {
				return err
			}
			if cfg.Archive.Dir != "" {
				archive, err := store.NewBatchWriter(cfg.Archive.Dir, cfg.Archive.Batch)
				if err != nil {
					return err
				}
				defer func() {
					path, games, err := archive.Flush()
					if err != nil {
						a.log.WithError(err).Error("failed to flush archive")
						return
					}
					if games > 0 {
						a.log.WithField("path", path).Info("archived " + plural(games, "game"))
					}
				}()
				ref.SetArchiver(archive)
			}
			srv := server.New(db, ref, hub, cfg.StaticDir, a.log)

			serveCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case err := <-bridgeErr:
					if err != nil {
						a.log.WithError(err).Error("redis bridge stopped")
						cancel()
					}
				case <-serveCtx.Done():
				}
			}()
			return srv.ListenAndServe(serveCtx, cfg.Listen)
		},
	}
	cmd.Flags().String("listen", "", "HTTP listen address")
	cmd.Flags().String("redis", "", "Redis url for cross-process event fan-out")
	cmd.Flags().String("static-dir", "", "Optional directory to serve as the web client")
	cmd.Flags().String("archive-dir", "", "Directory receiving parquet shards of finished games")
	return cmd
}
