package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

var (
	editTags        string
	editAddTags     []string
	editRemoveTags  []string
	editTrigger     string
	editWeight      float64
	editNegative    string
	editSDVersion   string
	editNotes       string
	editNotesEditor bool
	editDownloadURL string
)

// NewEditCommand creates the edit command
func NewEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <entry>",
		Short: "Edit the stored metadata of an entry",
		Long: `Edit the metadata the gallery service stores for an entry.

Only the fields given as flags are sent; the rest stay as they are.
Tags can be replaced as a whole with --tags or changed one at a time
with --add-tag and --remove-tag.

Examples:
  # Replace the tags
  loragallery edit style/ink.safetensors --tags "ink, style"

  # Add one tag and set the preferred weight
  loragallery edit style/ink.safetensors --add-tag favorite --weight 0.8

  # Write the notes in $EDITOR
  loragallery edit style/ink.safetensors --notes-editor`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("tags") && (len(editAddTags) > 0 || len(editRemoveTags) > 0) {
				return fmt.Errorf("--tags cannot be combined with --add-tag or --remove-tag")
			}
			if cmd.Flags().Changed("notes") && editNotesEditor {
				return fmt.Errorf("--notes cannot be combined with --notes-editor")
			}
			if cmd.Flags().Changed("sd-version") {
				if err := cli.ValidateSDVersion(editSDVersion); err != nil {
					return err
				}
			}
			for _, tag := range editAddTags {
				if err := models.ValidateTagName(tag); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: runEdit,
	}

	cmd.Flags().StringVar(&editTags, "tags", "", "Replace the tags with this comma separated list")
	cmd.Flags().StringSliceVar(&editAddTags, "add-tag", nil, "Add a tag (repeatable)")
	cmd.Flags().StringSliceVar(&editRemoveTags, "remove-tag", nil, "Remove a tag (repeatable)")
	cmd.Flags().StringVar(&editTrigger, "trigger", "", "Set the trigger text")
	cmd.Flags().Float64Var(&editWeight, "weight", models.DefaultPreferredWeight, "Set the preferred weight")
	cmd.Flags().StringVar(&editNegative, "negative", "", "Set the negative trigger text")
	cmd.Flags().StringVar(&editSDVersion, "sd-version", "", "Set the base model family")
	cmd.Flags().StringVar(&editNotes, "notes", "", "Set the notes")
	cmd.Flags().BoolVar(&editNotesEditor, "notes-editor", false, "Edit the notes in $EDITOR")
	cmd.Flags().StringVar(&editDownloadURL, "download-url", "", "Set the download url")

	return cmd
}

func runEdit(cmd *cobra.Command, args []string) error {
	name := args[0]
	return withClient(cmd, func(ctx context.Context, cc *cli.CommandContext) error {
		client, err := cc.Client()
		if err != nil {
			return err
		}
		entry, err := cli.NewEntryResolver(client).Find(ctx, name)
		if err != nil {
			return err
		}

		update, err := buildUpdate(cmd, entry)
		if err != nil {
			return err
		}
		if update.Empty() {
			cli.PrintInfo("No changes to %s", name)
			return nil
		}

		if err := client.UpdateMetadata(ctx, entry.Name, update); err != nil {
			return fmt.Errorf("failed to update %s: %w", entry.Name, err)
		}
		cli.PrintSuccess("Updated %s", entry.Name)
		return nil
	})
}

// buildUpdate collects the fields whose flags were given
func buildUpdate(cmd *cobra.Command, entry models.CatalogEntry) (models.MetadataUpdate, error) {
	var update models.MetadataUpdate
	flags := cmd.Flags()

	switch {
	case flags.Changed("tags"):
		tags := models.UniqueTags(models.ParseTagList(editTags))
		if tags == nil {
			tags = []string{}
		}
		update.Tags = tags
	case len(editAddTags) > 0 || len(editRemoveTags) > 0:
		tags := slices.Clone(entry.Tags)
		for _, tag := range editAddTags {
			if !slices.Contains(tags, tag) {
				tags = append(tags, tag)
			}
		}
		tags = slices.DeleteFunc(tags, func(t string) bool { return slices.Contains(editRemoveTags, t) })
		if tags == nil {
			tags = []string{}
		}
		if !slices.Equal(tags, entry.Tags) {
			update.Tags = tags
		}
	}

	if flags.Changed("trigger") {
		update.TriggerText = &editTrigger
	}
	if flags.Changed("weight") {
		w := gallery.ClampStrength(editWeight)
		update.PreferredWeight = &w
	}
	if flags.Changed("negative") {
		update.NegativeText = &editNegative
	}
	if flags.Changed("sd-version") {
		update.SDVersion = &editSDVersion
	}
	if flags.Changed("download-url") {
		update.DownloadURL = &editDownloadURL
	}

	switch {
	case flags.Changed("notes"):
		update.Notes = &editNotes
	case editNotesEditor:
		edited, err := cli.NewEditorLauncher().EditText("loragallery-notes-*.md", entry.Notes)
		if err != nil {
			return update, err
		}
		edited = strings.TrimRight(edited, "\n")
		if edited != entry.Notes {
			update.Notes = &edited
		}
	}
	return update, nil
}
