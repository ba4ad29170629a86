package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MaTriXy/stagehand/api/schemas"
	"github.com/MaTriXy/stagehand/internal/cache"
	"github.com/MaTriXy/stagehand/internal/observability"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspects and maintains the resolution cache",
	}
	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheClearCmd())
	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Prints entry counts per namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sessionConfig(cmd)
			if err != nil {
				return err
			}

			c, err := cache.Open(cmd.Context(), cfg.Cache, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer c.Close()

			if !c.Enabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "cache is disabled")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "observations: %d\nactions: %d\n",
				c.Len(schemas.NamespaceObservations), c.Len(schemas.NamespaceActions))
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [namespace]",
		Short: "Removes entries from the cache",
		Long: `Clear wipes one namespace ("observations" or "actions"), or both when no
namespace is given. Clearing is the supported way to discard resolutions;
entries never expire on their own.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := sessionConfig(cmd)
			if err != nil {
				return err
			}

			c, err := cache.Open(ctx, cfg.Cache, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer c.Close()

			if !c.Enabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "cache is disabled; nothing to clear")
				return nil
			}

			targets := schemas.Namespaces()
			if len(args) == 1 {
				ns := schemas.Namespace(args[0])
				if !ns.Valid() {
					return fmt.Errorf("unknown namespace %q (want %q or %q)",
						args[0], schemas.NamespaceObservations, schemas.NamespaceActions)
				}
				targets = []schemas.Namespace{ns}
			}

			for _, ns := range targets {
				if err := c.Clear(ctx, ns); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", ns)
			}
			return nil
		},
	}
}
