package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIndexCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index <file-or-directory>...",
		Short: "Build a new index from documents and persist it",
		Long: `Load every supported file under the given paths, split it into chunks,
embed the chunks and persist the index to the configured storage location.
An existing snapshot at that location is replaced.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.initialize()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			idx, err := c.indexer.BuildFromPaths(ctx, args...)
			if err != nil {
				return err
			}
			if err := c.store.Persist(ctx, idx, c.cfg.Storage.Location); err != nil {
				return err
			}
			c.logger.Info("index built", zap.Strings("paths", args), zap.Int("count", idx.Size()))
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks into %s\n", idx.Size(), c.cfg.Storage.Location)
			return nil
		},
	}
}

func newAddCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file-or-directory>...",
		Short: "Append documents to the persisted index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.initialize()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			idx, err := c.load(ctx)
			if err != nil {
				return err
			}
			n, err := c.indexer.AddFiles(ctx, idx, args...)
			if err != nil {
				return err
			}
			if n > 0 {
				if err := c.store.Persist(ctx, idx, c.cfg.Storage.Location); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d chunks (index size %d)\n", n, idx.Size())
			return nil
		},
	}
}
