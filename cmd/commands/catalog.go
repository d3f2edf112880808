package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pluqqy/lora-gallery/internal/cli"
	"github.com/pluqqy/lora-gallery/pkg/models"
	"github.com/pluqqy/lora-gallery/pkg/search"
)

var (
	catalogTags   string
	catalogMode   string
	catalogFolder string
	catalogName   string
	catalogPage   int
	catalogAll    bool
	catalogQuery  string
)

// catalogListing is what the structured formats print
type catalogListing struct {
	Query       string                `json:"query,omitempty" yaml:"query,omitempty"`
	Entries     []models.CatalogEntry `json:"loras" yaml:"loras"`
	Folders     []string              `json:"folders" yaml:"folders"`
	CurrentPage int                   `json:"current_page" yaml:"current_page"`
	TotalPages  int                   `json:"total_pages" yaml:"total_pages"`
}

// NewCatalogCommand creates the catalog command
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "catalog",
		Aliases: []string{"ls"},
		Short:   "List catalog entries",
		Long: `List the adapters the gallery service knows about.

Filters work the way they do in the panel: tags are comma separated and
matched with OR (any tag) or AND (every tag), the name filter is a case
insensitive substring and the folder narrows to one directory.

Examples:
  # First page of the catalog
  loragallery catalog

  # Entries tagged both anime and style, every page
  loragallery catalog --tags anime,style --mode and --all

  # Entries in the characters folder, as json
  loragallery catalog --folder characters -o json

  # The same filters as one query
  loragallery catalog -Q 'tag:anime tag:style mode:and'`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cli.ValidateTagMode(catalogMode); err != nil {
				return err
			}
			if catalogQuery != "" {
				if _, err := search.NewParser().Parse(catalogQuery); err != nil {
					return fmt.Errorf("invalid query: %w", err)
				}
			}
			if catalogPage < 1 {
				return fmt.Errorf("--page must be at least 1")
			}
			_, err := outputFormat(cmd)
			return err
		},
		RunE: runCatalog,
	}

	cmd.Flags().StringVarP(&catalogTags, "tags", "t", "", "Comma separated tags to filter by")
	cmd.Flags().StringVarP(&catalogMode, "mode", "m", "OR", "Tag match mode: OR or AND")
	cmd.Flags().StringVar(&catalogFolder, "folder", "", "Only list entries in this folder")
	cmd.Flags().StringVarP(&catalogName, "name", "n", "", "Only list entries whose name contains this text")
	cmd.Flags().IntVarP(&catalogPage, "page", "p", 1, "Page to list")
	cmd.Flags().BoolVarP(&catalogAll, "all", "a", false, "List every page")
	cmd.Flags().StringVarP(&catalogQuery, "query", "Q", "", "Filters as one query, e.g. 'tag:ink folder:styles mode:and hero'")
	for _, f := range []string{"tags", "mode", "folder", "name"} {
		cmd.MarkFlagsMutuallyExclusive("query", f)
	}

	return cmd
}

func runCatalog(cmd *cobra.Command, args []string) error {
	format, _ := outputFormat(cmd)
	mode, _ := cli.ValidateTagMode(catalogMode)

	return withClient(cmd, func(ctx context.Context, cc *cli.CommandContext) error {
		client, err := cc.Client()
		if err != nil {
			return err
		}
		filters := models.FilterState{
			TagText:    catalogTags,
			Mode:       mode,
			Folder:     catalogFolder,
			NameFilter: catalogName,
		}
		if catalogQuery != "" {
			filters, _ = search.NewParser().Parse(catalogQuery)
		}

		result := client.FetchPage(ctx, filters, catalogPage, nil)
		listing := catalogListing{
			Query:       search.Format(filters),
			Entries:     result.Entries,
			Folders:     result.Folders,
			CurrentPage: result.CurrentPage,
			TotalPages:  result.TotalPages,
		}
		if catalogAll {
			for page := catalogPage + 1; page <= result.TotalPages; page++ {
				next := client.FetchPage(ctx, filters, page, nil)
				listing.Entries = append(listing.Entries, next.Entries...)
				listing.CurrentPage = next.CurrentPage
			}
		}

		if cli.IsStructured(format) {
			return cli.OutputResults(cmd.OutOrStdout(), format, listing)
		}
		return printCatalog(cmd, listing)
	})
}

func printCatalog(cmd *cobra.Command, listing catalogListing) error {
	out := cmd.OutOrStdout()
	if len(listing.Entries) == 0 {
		fmt.Fprintln(out, "No entries match the current filters.")
		return nil
	}
	if listing.Query != "" {
		fmt.Fprintf(out, "Query: %s\n\n", listing.Query)
	}

	table := cli.NewTableFormatter(out)
	table.Header("NAME", "TAGS", "WEIGHT", "SD", "TRIGGER")
	for _, e := range listing.Entries {
		table.Row(
			e.Name,
			cli.FormatTags(e.DisplayTags()),
			cli.FormatStrength(e.PreferredWeight),
			e.SDVersion,
			cli.TruncateString(strings.ReplaceAll(e.TriggerText, "\n", " "), 40),
		)
	}
	if err := table.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nPage %d of %d", listing.CurrentPage, listing.TotalPages)
	if len(listing.Folders) > 0 {
		fmt.Fprintf(out, "  folders: %s", strings.Join(listing.Folders, ", "))
	}
	fmt.Fprintln(out)
	return nil
}
