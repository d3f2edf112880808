package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pluqqy/lora-gallery/cmd/commands"
	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/internal/config"
	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/models"
	"github.com/pluqqy/lora-gallery/pkg/tui"
)

// Version is set during build with -ldflags
var version = "dev"

var (
	cfgFile     string
	quiet       bool
	noColor     bool
	skipConfirm bool
	logFile     io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "loragallery",
	Short: "Terminal gallery for browsing LoRA adapters and building stacks",
	Long: `loragallery browses the adapter catalog of a gallery service, lets you
filter it by tags, folder and name, and builds the selection stack of a
gallery node in a workflow file: which adapters to apply, in what order
and at what strengths.

Run without a command to open the interactive panel.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
	RunE: runPanel,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "loragallery version %s\n", version)
	},
}

// setupLogging keeps the terminal clear while the panel runs: it logs to a
// file then. The backend logs json to stdout, other commands text to stderr.
func setupLogging(cmd *cobra.Command, s *models.Settings) error {
	switch {
	case cmd == rootCmd:
		path := s.Log.File
		if path == "" {
			path = logger.DefaultFile()
		}
		f, err := logger.OpenFile(path)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		logger.Initialize(logger.Options{Level: s.Log.Level, Output: f, JSON: true})
	case cmd.Name() == "serve":
		logger.Initialize(logger.Options{Level: s.Log.Level, Output: os.Stdout, JSON: true})
	default:
		level := s.Log.Level
		if quiet {
			level = "error"
		}
		logger.Initialize(logger.Options{Level: level, Output: os.Stderr})
	}
	return nil
}

func runPanel(cmd *cobra.Command, args []string) error {
	cc, err := cli.NewCommandContext()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	session, err := cc.OpenPanel(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	var events <-chan models.MetadataChangedEvent
	sub, err := session.Client.Subscribe(ctx)
	if err != nil {
		cc.Log.Warn("live updates unavailable", "error", err)
	} else {
		defer sub.Close()
		events = sub.Events
	}

	app := tui.NewApp(ctx, tui.Options{
		Panel:          session.Panel,
		Remote:         session.Client,
		Info:           session.Client,
		Events:         events,
		SearchDebounce: cc.Settings.Panel.SearchDebounce,
		ShowNotes:      cc.Settings.UI.ShowNotes,
		Title:          fmt.Sprintf("lora gallery · node %s", session.Node.ID()),
		Logger:         cc.Log,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to start the terminal user interface: %w", err)
	}
	return nil
}

func init() {
	// Assigned here rather than in the literal: setupLogging compares against
	// rootCmd, which would otherwise be an initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cli.SetGlobalFlags(quiet, noColor, skipConfirm)
		settings, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		return setupLogging(cmd, settings)
	}

	cobra.OnInitialize(func() {
		if err := config.Init(viper.GetViper(), cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.loragallery.yaml)")
	flags.String("server", "", "Gallery service url")
	flags.String("workflow", "", "Workflow file holding the gallery node")
	flags.String("node", "", "Id of the gallery node")
	flags.StringP("output", "o", "text", "Output format: text, json or yaml")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&skipConfirm, "yes", "y", false, "Answer yes to every confirmation")

	viper.BindPFlag("server.url", flags.Lookup("server"))
	viper.BindPFlag("panel.workflow", flags.Lookup("workflow"))
	viper.BindPFlag("panel.node_id", flags.Lookup("node"))

	rootCmd.AddCommand(
		commands.NewInitCommand(),
		commands.NewServeCommand(),
		commands.NewCatalogCommand(),
		commands.NewTagsCommand(),
		commands.NewInfoCommand(),
		commands.NewPreviewCommand(),
		commands.NewEditCommand(),
		commands.NewSyncCommand(),
		commands.NewStackCommand(),
		commands.NewPresetsCommand(),
		commands.NewComposeCommand(),
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
