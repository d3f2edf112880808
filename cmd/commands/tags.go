package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
)

// NewTagsCommand creates the tags command
func NewTagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, cc *cli.CommandContext) error {
				client, err := cc.Client()
				if err != nil {
					return err
				}
				tags, err := client.AllTags(ctx)
				if err != nil {
					return fmt.Errorf("failed to load tags: %w", err)
				}
				if cli.IsStructured(format) {
					return cli.OutputResults(cmd.OutOrStdout(), format, tags)
				}
				if len(tags) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tags found.")
					return nil
				}
				for _, tag := range tags {
					fmt.Fprintln(cmd.OutOrStdout(), cli.ColorizeTag(tag))
				}
				return nil
			})
		},
	}
}
