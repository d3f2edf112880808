package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/pkg/composer"
	"github.com/pluqqy/lora-gallery/pkg/host"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

var (
	composeWrite string
	composeCopy  bool
)

// NewComposeCommand creates the compose command
func NewComposeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Show what the node applies for its current stack",
		Long: `Compose the selection stack stored in the workflow node the way the
host applies it: enabled items in stack order with their strengths, and
the trigger words of the items that use them, joined with ", ".

Examples:
  # Print the composed stack
  loragallery compose

  # Copy the trigger words to the clipboard
  loragallery compose --copy

  # Write a markdown summary
  loragallery compose --write LORA_STACK.md`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := outputFormat(cmd)
			return err
		},
		RunE: runCompose,
	}

	cmd.Flags().StringVarP(&composeWrite, "write", "w", "", "Write the markdown summary to this file")
	cmd.Flags().Lookup("write").NoOptDefVal = composer.DefaultOutputFile
	cmd.Flags().BoolVarP(&composeCopy, "copy", "c", false, "Copy the trigger words to the clipboard")

	return cmd
}

func runCompose(cmd *cobra.Command, args []string) error {
	format, _ := outputFormat(cmd)
	return withClient(cmd, func(ctx context.Context, cc *cli.CommandContext) error {
		wf, err := host.Open(cc.Settings.Panel.Workflow)
		if err != nil {
			return fmt.Errorf("failed to open workflow %s: %w", cc.Settings.Panel.Workflow, err)
		}

		var (
			raw   string
			items []models.SelectionItem
		)
		modelOnly := cc.Settings.Panel.ModelOnly
		node, err := wf.Node(cc.Settings.Panel.NodeID)
		switch {
		case errors.Is(err, host.ErrNodeNotFound):
			cli.PrintWarning("Workflow has no gallery node %s", cc.Settings.Panel.NodeID)
		case err != nil:
			return err
		default:
			modelOnly = node.ModelOnly()
			if data, ok := node.SelectionData(); ok {
				raw = data
				if items, err = models.ParseSelection(raw); err != nil {
					cli.PrintWarning("Stored selection does not decode: %v", err)
				}
			}
		}

		var lookup composer.Lookup = composer.EntryMap{}
		if names := enabledTriggerNames(items); len(names) > 0 {
			client, err := cc.Client()
			if err != nil {
				return err
			}
			found, missing := cli.NewEntryResolver(client).Lookup(ctx, names)
			for _, name := range missing {
				cli.PrintWarning("No catalog entry %s; its trigger words are left out", name)
			}
			lookup = found
		}

		result := composer.ComposeJSON(raw, lookup, modelOnly)

		if composeWrite != "" {
			if err := composer.WriteOutput(result.Markdown(), composeWrite); err != nil {
				return err
			}
			cli.PrintSuccess("Wrote %s", composeWrite)
		}
		if composeCopy {
			if err := clipboard.WriteAll(result.TriggerWords); err != nil {
				return fmt.Errorf("failed to copy to clipboard: %w", err)
			}
			cli.PrintSuccess("Copied trigger words to clipboard")
		}

		if cli.IsStructured(format) {
			return cli.OutputResults(cmd.OutOrStdout(), format, result)
		}
		if composeWrite == "" && !composeCopy {
			fmt.Fprint(cmd.OutOrStdout(), result.Markdown())
		}
		return nil
	})
}

// enabledTriggerNames lists the items whose trigger words Compose reads
func enabledTriggerNames(items []models.SelectionItem) []string {
	var names []string
	for _, item := range items {
		if item.On && item.UseTrigger && item.EntryName != "" {
			names = append(names, item.EntryName)
		}
	}
	return names
}
