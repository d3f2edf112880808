package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/internal/config"
)

var (
	initPath  string
	initForce bool
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file",
		Long: `Write the effective settings to a config file, by default
$HOME/.loragallery.yaml. Global flags such as --server and --workflow
are written along with the defaults.

Examples:
  loragallery init --server http://192.168.1.20:8188
  loragallery init --path ./loragallery.yaml --force`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
	cmd.Flags().StringVar(&initPath, "path", "", "Where to write the config file")
	cmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	cc, err := cli.NewCommandContext()
	if err != nil {
		return err
	}

	path := initPath
	if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := config.Write(path, cc.Settings, initForce); err != nil {
		return err
	}
	cli.PrintSuccess("Wrote %s", path)
	cli.PrintInfo("Run 'loragallery serve' to host a catalog, or 'loragallery' to open the panel.")
	return nil
}
