package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/server"
)

var (
	serveAddr      string
	serveLoraDirs  []string
	serveStateDir  string
	serveStore     string
	serveMigrate   string
	serveAccessLog bool
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local gallery backend",
		Long: `Serve one or more directories of adapter files over the gallery
HTTP API: catalog pages, tags, previews, metadata edits, Civitai sync,
panel UI state, presets and a change event stream. Prometheus metrics
are served at /metrics.

Examples:
  loragallery serve --lora-dir ~/models/loras
  loragallery serve --lora-dir ./loras --store sqlite --state-dir ./state
  loragallery serve --lora-dir ./loras --migrate ./lora_metadata.json`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on")
	cmd.Flags().StringSliceVarP(&serveLoraDirs, "lora-dir", "d", nil, "Directory of adapter files (repeatable)")
	cmd.Flags().StringVar(&serveStateDir, "state-dir", "", "Directory for UI state and presets")
	cmd.Flags().StringVar(&serveStore, "store", "", "State backend: json or sqlite")
	cmd.Flags().StringVar(&serveMigrate, "migrate", "", "Copy a legacy combined metadata file into sidecars first")
	cmd.Flags().BoolVar(&serveAccessLog, "access-log", false, "Log every request")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cc, err := cli.NewCommandContext()
	if err != nil {
		return err
	}
	opts := cc.Settings.Serve
	if cmd.Flags().Changed("addr") {
		opts.Addr = serveAddr
	}
	if cmd.Flags().Changed("lora-dir") {
		opts.LoraDirs = serveLoraDirs
	}
	if cmd.Flags().Changed("state-dir") {
		opts.StateDir = serveStateDir
	}
	if cmd.Flags().Changed("store") {
		opts.Store = serveStore
	}
	if len(opts.LoraDirs) == 0 {
		return fmt.Errorf("no lora directory: pass --lora-dir or set serve.lora_dirs")
	}
	for _, dir := range opts.LoraDirs {
		if err := cli.ValidateDirectoryPath(dir); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(opts.StateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.With("component", "serve")
	store, err := server.OpenStore(ctx, opts.Store, opts.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := server.New(server.Options{
		LoraDirs:   opts.LoraDirs,
		Prefix:     cc.Settings.Server.Prefix,
		Store:      store,
		CivitaiURL: opts.CivitaiURL,
		Logger:     log,
		AccessLog:  serveAccessLog,
	})
	if err != nil {
		return err
	}

	if serveMigrate != "" {
		n, err := srv.Catalog().MigrateLegacy(serveMigrate)
		if err != nil {
			return fmt.Errorf("failed to migrate %s: %w", serveMigrate, err)
		}
		log.Info("migrated legacy metadata", "file", serveMigrate, "entries", n)
	}

	return srv.ListenAndServe(ctx, opts.Addr)
}
