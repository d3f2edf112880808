package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
)

// outputFormat reads the persistent --output flag, validated
func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	if format == "" {
		return string(cli.FormatText), nil
	}
	if err := cli.ValidateOutputFormat(format); err != nil {
		return "", err
	}
	return format, nil
}

// withPanel restores the configured panel, runs fn and waits for the state
// writes fn queued before returning
func withPanel(cmd *cobra.Command, fn func(ctx context.Context, s *cli.PanelSession) error) error {
	cc, err := cli.NewCommandContext()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := cc.OpenPanel(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	return fn(ctx, session)
}

// withClient runs fn against the configured gallery service
func withClient(cmd *cobra.Command, fn func(ctx context.Context, cc *cli.CommandContext) error) error {
	cc, err := cli.NewCommandContext()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, cc)
}

// dispatch applies a panel command and runs the fresh fetch it asks for, so
// the view the stack excludes stays in step with the host
func dispatch(ctx context.Context, p *gallery.Panel, c gallery.Command) error {
	eff, err := p.Dispatch(c)
	if err != nil {
		return err
	}
	if eff.FreshFetch {
		p.Fetch(ctx, true)
	}
	return nil
}

func requireStack(p *gallery.Panel) error {
	if len(p.Stack()) == 0 {
		return fmt.Errorf("%w: add entries with 'loragallery stack add'", gallery.ErrEmptyStack)
	}
	return nil
}
