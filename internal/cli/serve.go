package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/regqa/internal/server"
	"github.com/hyperjump/regqa/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		host  string
		port  int
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve answerable context over HTTP",
		Long: `Load the persisted index (or start an empty one) and serve it over HTTP.
With --watch, files created under the configured document directories are
added to the index and the snapshot is re-persisted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.initialize()
			if err != nil {
				return err
			}
			defer c.Close()
			if host != "" {
				c.cfg.Server.Host = host
			}
			if port != 0 {
				c.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			idx, err := c.loadOrBootstrap(ctx)
			if err != nil {
				return err
			}
			engine, err := c.engine(idx)
			if err != nil {
				return err
			}
			defer engine.Close()

			var srvOpts []server.Option
			if watch {
				if len(c.cfg.Documents.Directories) == 0 {
					c.logger.Warn("--watch given but documents.directories is empty")
				}
				appender := watcher.NewAppender(c.indexer, idx, c.cfg.Storage.Location, c.logger)
				w := watcher.NewWatcher(
					c.cfg.Documents.Directories,
					c.cfg.Documents.Extensions,
					c.cfg.Documents.RecursiveOrDefault(),
					appender.Callback(ctx),
					nil,
					watcher.WithLogger(c.logger),
				)
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()
				srvOpts = append(srvOpts, server.WithWatchService(w))
			}

			srv := server.NewServer(engine, c.indexer, c.cfg, c.logger, srvOpts...)
			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			c.logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				c.logger.Warn("server shutdown failed", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "add new files from documents.directories while serving")
	return cmd
}
