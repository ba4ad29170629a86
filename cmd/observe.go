package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MaTriXy/stagehand/pkg/engine"
)

func newObserveCmd() *cobra.Command {
	var (
		pageURL string
		noCache bool
	)

	observeCmd := &cobra.Command{
		Use:   "observe <instruction>...",
		Short: "Resolves an instruction to one element and caches its locator",
		Long: `Observe names the single element an instruction refers to. The resolution
is cached under the exact instruction text; later runs verify the cached
locator against the live page instead of consulting the reasoning model.
Prints the cache key on success, or "no matching element" when the model
finds nothing (a normal outcome).`,
		Example: `  stagehand observe -u https://example.com/login the password field`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instruction := strings.Join(args, " ")
			return runInstruction(cmd, pageURL, noCache, func(ctx context.Context, eng *engine.Engine) error {
				key, found, err := eng.Observe(ctx, instruction)
				if err != nil {
					return err
				}
				if !found {
					fmt.Fprintln(cmd.OutOrStdout(), "no matching element")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(key))
				return nil
			})
		},
	}

	observeCmd.Flags().StringVarP(&pageURL, "url", "u", "", "page to drive (required)")
	observeCmd.Flags().BoolVar(&noCache, "no-cache", false, "resolve through the model even when a cached entry exists")
	_ = observeCmd.MarkFlagRequired("url")

	return observeCmd
}
