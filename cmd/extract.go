package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MaTriXy/stagehand/pkg/engine"
)

func newExtractCmd() *cobra.Command {
	var (
		pageURL string
		noCache bool
	)

	extractCmd := &cobra.Command{
		Use:   "extract <instruction>...",
		Short: "Pulls instruction-described data out of the page as JSON",
		Long: `Extract asks the reasoning model to read data off the current document.
The result is printed as raw JSON on stdout. Extractions are never cached;
every call reads the live page.`,
		Example: `  stagehand extract -u https://example.com/cart the order total and item count`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instruction := strings.Join(args, " ")
			return runInstruction(cmd, pageURL, noCache, func(ctx context.Context, eng *engine.Engine) error {
				data, err := eng.Extract(ctx, instruction)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}

	extractCmd.Flags().StringVarP(&pageURL, "url", "u", "", "page to drive (required)")
	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "kept for symmetry; extractions are never cached")
	_ = extractCmd.MarkFlagRequired("url")

	return extractCmd
}
