package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

var (
	syncImage bool
	syncMeta  bool
)

// NewSyncCommand creates the sync command
func NewSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <entry>",
		Short: "Fetch preview and metadata of an entry from Civitai",
		Long: `Look an entry up on Civitai by the hash of its file and store what
was found: the preview image with --image, the trigger words, tags and
download link with --meta. Without either flag both are synced.

Examples:
  loragallery sync style/ink.safetensors
  loragallery sync style/ink.safetensors --image`,
		Args: cobra.ExactArgs(1),
		RunE: runSync,
	}

	cmd.Flags().BoolVar(&syncImage, "image", false, "Sync the preview image")
	cmd.Flags().BoolVar(&syncMeta, "meta", false, "Sync trigger words, tags and download link")

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	opts := models.SyncOptions{Image: syncImage, Meta: syncMeta}
	if !opts.Image && !opts.Meta {
		opts.Image, opts.Meta = true, true
	}

	return withClient(cmd, func(ctx context.Context, cc *cli.CommandContext) error {
		client, err := cc.Client()
		if err != nil {
			return err
		}
		entry, err := cli.NewEntryResolver(client).Find(ctx, args[0])
		if err != nil {
			return err
		}

		meta, err := client.SyncExternal(ctx, entry.Name, opts)
		if err != nil {
			return fmt.Errorf("failed to sync %s: %w", entry.Name, err)
		}
		if cli.IsStructured(format) {
			return cli.OutputResults(cmd.OutOrStdout(), format, meta)
		}

		cli.PrintSuccess("Synced %s", entry.Name)
		out := cmd.OutOrStdout()
		if meta == nil {
			return nil
		}
		if meta.PreviewURL != "" {
			fmt.Fprintf(out, "Preview:  %s (%s)\n", meta.PreviewURL, meta.PreviewKind)
		}
		if meta.TriggerText != nil {
			fmt.Fprintf(out, "Trigger:  %s\n", *meta.TriggerText)
		}
		if len(meta.Tags) > 0 {
			fmt.Fprintf(out, "Tags:     %s\n", cli.FormatTags(meta.Tags))
		}
		if meta.DownloadURL != nil {
			fmt.Fprintf(out, "Download: %s\n", *meta.DownloadURL)
		}
		return nil
	})
}
