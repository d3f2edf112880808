package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

var infoTraining bool

// entryInfo is what the structured formats print
type entryInfo struct {
	Entry    models.CatalogEntry `json:"entry" yaml:"entry"`
	Training map[string]string   `json:"training,omitempty" yaml:"training,omitempty"`
}

// NewInfoCommand creates the info command
func NewInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "info <entry>",
		Aliases: []string{"show"},
		Short:   "Show the metadata of an entry",
		Long: `Show the stored metadata of an entry. With --training the metadata
embedded in the adapter file's header is listed as well.

Examples:
  loragallery info style/ink.safetensors
  loragallery info style/ink.safetensors --training -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runInfo,
	}
	cmd.Flags().BoolVar(&infoTraining, "training", false, "Include the training metadata of the file")
	return cmd
}

func runInfo(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
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

		info := entryInfo{Entry: entry}
		if infoTraining {
			if info.Training, err = client.TrainingInfo(ctx, entry.Name); err != nil {
				return err
			}
		}
		if cli.IsStructured(format) {
			return cli.OutputResults(cmd.OutOrStdout(), format, info)
		}
		return printInfo(cmd, info, cc.Settings.UI.ShowNotes)
	})
}

func printInfo(cmd *cobra.Command, info entryInfo, showNotes bool) error {
	out := cmd.OutOrStdout()
	e := info.Entry

	fmt.Fprintf(out, "Entry:     %s\n", e.Name)
	if e.Folder != "" {
		fmt.Fprintf(out, "Folder:    %s\n", e.Folder)
	}
	fmt.Fprintf(out, "Tags:      %s\n", cli.FormatTags(e.DisplayTags()))
	fmt.Fprintf(out, "Weight:    %s\n", cli.FormatStrength(e.PreferredWeight))
	fmt.Fprintf(out, "SD:        %s\n", e.SDVersion)
	if e.TriggerText != "" {
		fmt.Fprintf(out, "Trigger:   %s\n", e.TriggerText)
	}
	if e.NegativeText != "" {
		fmt.Fprintf(out, "Negative:  %s\n", e.NegativeText)
	}
	if e.DownloadURL != "" {
		fmt.Fprintf(out, "Download:  %s\n", e.DownloadURL)
	}
	if e.PreviewURL != "" {
		fmt.Fprintf(out, "Preview:   %s (%s)\n", e.PreviewURL, e.PreviewKind)
	}

	if showNotes && strings.TrimSpace(e.Notes) != "" {
		fmt.Fprintln(out)
		notes := e.Notes
		if !cli.NoColor() {
			if rendered, err := glamour.Render(e.Notes, "dark"); err == nil {
				notes = rendered
			}
		}
		fmt.Fprintln(out, strings.TrimRight(notes, "\n"))
	}

	if len(info.Training) > 0 {
		fmt.Fprintln(out, "\nTraining:")
		keys := make([]string, 0, len(info.Training))
		for k := range info.Training {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		table := cli.NewTableFormatter(out)
		for _, k := range keys {
			table.Row("  "+k, cli.TruncateString(info.Training[k], 80))
		}
		return table.Flush()
	}
	return nil
}
