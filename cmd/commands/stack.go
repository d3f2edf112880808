package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

var nudgeClip bool

type stackListing struct {
	ActivePreset string                 `json:"active_preset,omitempty" yaml:"active_preset,omitempty"`
	PrimaryOnly  bool                   `json:"primary_only" yaml:"primary_only"`
	Items        []models.SelectionItem `json:"items" yaml:"items"`
}

// NewStackCommand creates the stack command and its subcommands
func NewStackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Show and edit the selection stack of the panel",
		Long: `Show and edit the selection stack stored in the workflow node.

Positions are 1-based, as printed by 'loragallery stack show'. Every
change is written back to the workflow file.

Examples:
  # Add an entry at its preferred weight
  loragallery stack add style/ink.safetensors

  # Move the third item to the top
  loragallery stack move 3 1

  # Set the clip strength of the first item
  loragallery stack set 1 strength_clip 0.6`,
		RunE: runStackShow,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the stack",
			Args:  cobra.NoArgs,
			RunE:  runStackShow,
		},
		&cobra.Command{
			Use:   "add <entry>",
			Short: "Append a catalog entry to the stack",
			Args:  cobra.ExactArgs(1),
			RunE:  runStackAdd,
		},
		&cobra.Command{
			Use:     "remove <position>",
			Aliases: []string{"rm"},
			Short:   "Remove an item from the stack",
			Args:    cobra.ExactArgs(1),
			RunE:    runStackRemove,
		},
		&cobra.Command{
			Use:   "move <from> <to>",
			Short: "Move an item to another position",
			Args:  cobra.ExactArgs(2),
			RunE:  runStackMove,
		},
		&cobra.Command{
			Use:   "toggle <position>",
			Short: "Enable or disable an item",
			Args:  cobra.ExactArgs(1),
			RunE:  runStackToggle,
		},
		&cobra.Command{
			Use:   "toggle-all",
			Short: "Disable every item, or enable them all when any is off",
			Args:  cobra.NoArgs,
			RunE:  runStackToggleAll,
		},
		&cobra.Command{
			Use:   "set <position> <field> <value>",
			Short: "Set on, use_trigger, strength or strength_clip of an item",
			Args:  cobra.ExactArgs(3),
			RunE:  runStackSet,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every item",
			Args:  cobra.NoArgs,
			RunE:  runStackClear,
		},
	)

	nudge := &cobra.Command{
		Use:   "nudge <position> <steps>",
		Short: "Step a strength up or down by 0.05 per step",
		Args:  cobra.ExactArgs(2),
		RunE:  runStackNudge,
	}
	nudge.Flags().BoolVar(&nudgeClip, "clip", false, "Step the clip strength instead")
	cmd.AddCommand(nudge)

	return cmd
}

func runStackShow(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		listing := stackListing{
			ActivePreset: s.Panel.ActivePreset(),
			PrimaryOnly:  s.Panel.PrimaryOnly(),
			Items:        s.Panel.Stack(),
		}
		if cli.IsStructured(format) {
			return cli.OutputResults(cmd.OutOrStdout(), format, listing)
		}
		return printStack(cmd, listing)
	})
}

func printStack(cmd *cobra.Command, listing stackListing) error {
	out := cmd.OutOrStdout()
	if len(listing.Items) == 0 {
		fmt.Fprintln(out, "Stack is empty.")
		return nil
	}
	if listing.ActivePreset != "" {
		fmt.Fprintf(out, "Preset: %s\n\n", listing.ActivePreset)
	}

	table := cli.NewTableFormatter(out)
	if listing.PrimaryOnly {
		table.Header("#", "ON", "ENTRY", "STRENGTH", "TRIGGER")
	} else {
		table.Header("#", "ON", "ENTRY", "STRENGTH", "CLIP", "TRIGGER")
	}
	for i, item := range listing.Items {
		row := []string{strconv.Itoa(i + 1), cli.CheckMark(item.On), item.EntryName, cli.FormatStrength(item.Strength)}
		if !listing.PrimaryOnly {
			row = append(row, cli.FormatStrength(item.ClipStrength()))
		}
		row = append(row, cli.CheckMark(item.UseTrigger))
		table.Row(row...)
	}
	return table.Flush()
}

func runStackAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		if s.Panel.IsSelected(name) {
			return fmt.Errorf("%s is already in the stack", name)
		}
		entry, err := cli.NewEntryResolver(s.Client).Find(ctx, name)
		if err != nil {
			return err
		}

		if err := dispatch(ctx, s.Panel, gallery.ToggleEntry{Name: entry.Name}); err != nil {
			return err
		}
		// The panel only knows the weights of entries it has loaded
		if _, loaded := s.Panel.Entry(entry.Name); !loaded && entry.PreferredWeight != models.DefaultPreferredWeight {
			i := len(s.Panel.Stack()) - 1
			if err := dispatch(ctx, s.Panel, gallery.SetItemField{Index: i, Field: gallery.FieldStrength, Value: entry.PreferredWeight}); err != nil {
				return err
			}
			if !s.Panel.PrimaryOnly() {
				if err := dispatch(ctx, s.Panel, gallery.SetItemField{Index: i, Field: gallery.FieldStrengthClip, Value: entry.PreferredWeight}); err != nil {
					return err
				}
			}
		}

		cli.PrintSuccess("Added %s at %s", entry.Name, cli.FormatStrength(entry.PreferredWeight))
		return nil
	})
}

func runStackRemove(cmd *cobra.Command, args []string) error {
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		stack := s.Panel.Stack()
		i, err := cli.ParseIndex(args[0], len(stack))
		if err != nil {
			return err
		}
		if err := dispatch(ctx, s.Panel, gallery.RemoveItem{Index: i}); err != nil {
			return err
		}
		cli.PrintSuccess("Removed %s", stack[i].EntryName)
		return nil
	})
}

func runStackMove(cmd *cobra.Command, args []string) error {
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		size := len(s.Panel.Stack())
		from, err := cli.ParseIndex(args[0], size)
		if err != nil {
			return err
		}
		to, err := cli.ParseIndex(args[1], size)
		if err != nil {
			return err
		}
		if err := dispatch(ctx, s.Panel, gallery.MoveItem{From: from, To: to}); err != nil {
			return err
		}
		cli.PrintSuccess("Moved item %d to position %d", from+1, to+1)
		return nil
	})
}

func runStackToggle(cmd *cobra.Command, args []string) error {
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		stack := s.Panel.Stack()
		i, err := cli.ParseIndex(args[0], len(stack))
		if err != nil {
			return err
		}
		on := !stack[i].On
		if err := dispatch(ctx, s.Panel, gallery.SetItemField{Index: i, Field: gallery.FieldOn, Value: on}); err != nil {
			return err
		}
		state := "disabled"
		if on {
			state = "enabled"
		}
		cli.PrintSuccess("%s %s", stack[i].EntryName, state)
		return nil
	})
}

func runStackToggleAll(cmd *cobra.Command, args []string) error {
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		if err := requireStack(s.Panel); err != nil {
			return err
		}
		return dispatch(ctx, s.Panel, gallery.ToggleAll{})
	})
}

func runStackSet(cmd *cobra.Command, args []string) error {
	field, err := gallery.ParseItemField(args[1])
	if err != nil {
		return err
	}
	value, err := cli.ParseFieldValue(field, args[2])
	if err != nil {
		return err
	}
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		i, err := cli.ParseIndex(args[0], len(s.Panel.Stack()))
		if err != nil {
			return err
		}
		if f, ok := value.(float64); ok {
			value = gallery.ClampStrength(f)
		}
		if err := dispatch(ctx, s.Panel, gallery.SetItemField{Index: i, Field: field, Value: value}); err != nil {
			return err
		}
		cli.PrintSuccess("Set %s of item %d to %v", field, i+1, value)
		return nil
	})
}

func runStackNudge(cmd *cobra.Command, args []string) error {
	steps, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid steps %q: must be a whole number", args[1])
	}
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		stack := s.Panel.Stack()
		i, err := cli.ParseIndex(args[0], len(stack))
		if err != nil {
			return err
		}
		field, current := gallery.FieldStrength, stack[i].Strength
		if nudgeClip {
			field, current = gallery.FieldStrengthClip, stack[i].ClipStrength()
		}
		next := gallery.StepStrength(current, steps)
		if err := dispatch(ctx, s.Panel, gallery.SetItemField{Index: i, Field: field, Value: next}); err != nil {
			return err
		}
		cli.PrintSuccess("%s %s -> %s", field, cli.FormatStrength(current), cli.FormatStrength(next))
		return nil
	})
}

func runStackClear(cmd *cobra.Command, args []string) error {
	return withPanel(cmd, func(ctx context.Context, s *cli.PanelSession) error {
		n := len(s.Panel.Stack())
		if n == 0 {
			cli.PrintInfo("Stack is already empty")
			return nil
		}
		ok, err := cli.Confirm(fmt.Sprintf("Remove all %d item(s) from the stack?", n), false)
		if err != nil {
			return err
		}
		if !ok {
			cli.PrintInfo("Clear cancelled")
			return nil
		}
		if err := dispatch(ctx, s.Panel, gallery.ClearStack{}); err != nil {
			return err
		}
		cli.PrintSuccess("Cleared %d item(s)", n)
		return nil
	})
}
