package cli

import (
	"github.com/spf13/cobra"
)

// newResolveCmd creates the `tfmodel resolve` command.
func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <model-url>",
		Short: "Download (or reuse) a model and print its local entry path",
		Long: `Resolve a model manifest URL to a local filesystem path.

If the model is already cached and the remote reports it unchanged, the
cached path is printed without downloading anything. Otherwise the manifest
and every weight shard are fetched into the cache first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, err := openCache(ctx, configFromCmd(cmd))
			if err != nil {
				return err
			}

			path, err := cache.Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			cmd.Println(path)
			return nil
		},
	}
}
