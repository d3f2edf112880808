package commands

import (
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/pkg/files"
)

var previewFile string

// NewPreviewCommand creates the preview command
func NewPreviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <entry>",
		Short: "Download the preview image or video of an entry",
		Long: `Download the preview of an entry. Without --file it is saved in the
current directory under the entry's base name and the preview's extension.

Examples:
  loragallery preview style/ink.safetensors
  loragallery preview style/ink.safetensors -f ink.png`,
		Args: cobra.ExactArgs(1),
		RunE: runPreview,
	}
	cmd.Flags().StringVarP(&previewFile, "file", "f", "", "File to save the preview to")
	return cmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, cc *cli.CommandContext) error {
		client, err := cc.Client()
		if err != nil {
			return err
		}
		entry, err := cli.NewEntryResolver(client).Find(ctx, args[0])
		if err != nil {
			return err
		}

		data, contentType, err := client.Preview(ctx, entry.PreviewURL)
		if err != nil {
			return fmt.Errorf("failed to download preview of %s: %w", entry.Name, err)
		}

		dest := previewFile
		if dest == "" {
			dest = previewName(entry.Name, contentType)
		}
		if err := files.WriteAtomic(dest, data); err != nil {
			return err
		}
		cli.PrintSuccess("Saved preview of %s to %s (%d bytes)", entry.Name, dest, len(data))
		return nil
	})
}

// previewName is the entry's base name with the extension of the content type
func previewName(entryName, contentType string) string {
	base := path.Base(entryName)
	base = base[:len(base)-len(path.Ext(base))]
	ext := ".preview"
	if media, _, err := mime.ParseMediaType(contentType); err == nil {
		if known, ok := previewExts[media]; ok {
			ext = known
		} else if exts, _ := mime.ExtensionsByType(media); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return base + ext
}

var previewExts = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}
