package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MaTriXy/stagehand/pkg/engine"
)

func newActCmd() *cobra.Command {
	var (
		pageURL string
		noCache bool
	)

	actCmd := &cobra.Command{
		Use:   "act <instruction>...",
		Short: "Carries out an instruction against the live page",
		Long: `Act resolves an instruction into an ordered command sequence and executes
it. A cached sequence replays without consulting the reasoning model; fresh
resolutions execute but are never written back, so only sequences cached by
an external writer replay.`,
		Example: `  stagehand act -u https://example.com/login click the login button`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instruction := strings.Join(args, " ")
			return runInstruction(cmd, pageURL, noCache, func(ctx context.Context, eng *engine.Engine) error {
				if err := eng.Act(ctx, instruction); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "done")
				return nil
			})
		},
	}

	actCmd.Flags().StringVarP(&pageURL, "url", "u", "", "page to drive (required)")
	actCmd.Flags().BoolVar(&noCache, "no-cache", false, "resolve through the model even when a cached entry exists")
	_ = actCmd.MarkFlagRequired("url")

	return actCmd
}
