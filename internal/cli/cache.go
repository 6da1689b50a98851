package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newCacheCmd creates the `tfmodel cache` command group.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the model cache",
	}
	cmd.AddCommand(newCacheListCmd(), newCacheRemoveCmd(), newCacheClearCmd())
	return cmd
}

func newCacheListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cache, err := openCache(ctx, configFromCmd(cmd))
			if err != nil {
				return err
			}

			entries := cache.Entries()
			if asJSON {
				data, marshalErr := json.MarshalIndent(entries, "", "  ")
				if marshalErr != nil {
					return marshalErr
				}
				cmd.Println(string(data))
				return nil
			}

			if len(entries) == 0 {
				cmd.Println("cache is empty")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "URL\tHASH\tSTATE\tLAST MODIFIED")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					entry.Key, entry.ContentHash, entry.State, entry.LastModified)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newCacheRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <model-url>",
		Short: "Evict one model from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, err := openCache(ctx, configFromCmd(cmd))
			if err != nil {
				return err
			}
			return cache.Remove(ctx, args[0])
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Evict every model from the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cache, err := openCache(ctx, configFromCmd(cmd))
			if err != nil {
				return err
			}
			return cache.Clear(ctx)
		},
	}
}
