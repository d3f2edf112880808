package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

// NewPresetsCommand creates the presets command and its subcommands
func NewPresetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "presets",
		Aliases: []string{"preset"},
		Short:   "Manage named stack presets",
		Long: `Manage the named presets shared by every panel of the gallery service.

Examples:
  # Save the current stack
  loragallery presets save "ink portrait"

  # Replace the stack with a preset
  loragallery presets load "ink portrait"

  # Delete a preset without being asked
  loragallery presets delete "ink portrait" -y`,
		RunE: runPresetsList,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List presets",
			Args:  cobra.NoArgs,
			RunE:  runPresetsList,
		},
		&cobra.Command{
			Use:   "save <name>",
			Short: "Save the current stack as a preset",
			Args:  cobra.ExactArgs(1),
			PreRunE: func(cmd *cobra.Command, args []string) error {
				return cli.ValidatePresetName(args[0])
			},
			RunE: runPresetsSave,
		},
		&cobra.Command{
			Use:   "load <name>",
			Short: "Replace the stack with a preset",
			Args:  cobra.ExactArgs(1),
			RunE:  runPresetsLoad,
		},
		&cobra.Command{
			Use:     "delete <name>",
			Aliases: []string{"rm"},
			Short:   "Delete a preset",
			Args:    cobra.ExactArgs(1),
			RunE:    runPresetsDelete,
		},
	)
	return cmd
}

func runPresetsList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		book := s.Panel.Presets()
		if cli.IsStructured(format) {
			return cli.OutputResults(cmd.OutOrStdout(), format, book)
		}

		out := cmd.OutOrStdout()
		names := book.Names()
		if len(names) == 0 {
			fmt.Fprintln(out, "No presets saved.")
			return nil
		}
		table := cli.NewTableFormatter(out)
		table.Header("NAME", "ITEMS", "ENTRIES")
		for _, name := range names {
			items := book[name]
			table.Row(name, fmt.Sprint(len(items)), cli.TruncateString(strings.Join(itemNames(items), ", "), 60))
		}
		return table.Flush()
	})
}

func itemNames(items []models.SelectionItem) []string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.EntryName
	}
	return names
}

func runPresetsSave(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		if err := requireStack(s.Panel); err != nil {
			return err
		}
		if _, exists := s.Panel.Presets()[name]; exists {
			ok, err := cli.Confirm(fmt.Sprintf("Preset '%s' exists. Overwrite it?", name), false)
			if err != nil {
				return err
			}
			if !ok {
				cli.PrintInfo("Save cancelled")
				return nil
			}
		}
		if err := s.Panel.SavePreset(ctx, name); err != nil {
			return err
		}
		cli.PrintSuccess("Saved preset '%s' with %d item(s)", name, len(s.Panel.Stack()))
		return nil
	})
}

func runPresetsLoad(cmd *cobra.Command, args []string) error {
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		if err := dispatch(ctx, s.Panel, gallery.LoadPreset{Name: args[0]}); err != nil {
			return err
		}
		cli.PrintSuccess("Loaded preset '%s' (%d item(s))", args[0], len(s.Panel.Stack()))
		return nil
	})
}

func runPresetsDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		if _, exists := s.Panel.Presets()[name]; !exists {
			return fmt.Errorf("%w: %s", gallery.ErrPresetNotFound, name)
		}
		confirmed, err := cli.Confirm(fmt.Sprintf("Delete preset '%s'?", name), false)
		if err != nil {
			return err
		}
		if !confirmed {
			cli.PrintInfo("Deletion cancelled")
			return nil
		}
		if err := s.Panel.DeletePreset(ctx, name, confirmed); err != nil {
			return err
		}
		cli.PrintSuccess("Deleted preset '%s'", name)
		return nil
	})
}
