package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ichi0g0y/slot-roulette/internal/catalog"
	"github.com/spf13/cobra"
)

func newCatalogCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or update the game catalog",
	}
	cmd.AddCommand(newCatalogLookupCommand(opts))
	cmd.AddCommand(newCatalogMergeCommand(opts))
	return cmd
}

func newCatalogLookupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <name>",
		Short: "Print the provider category for a game name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog(cmd, opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cat.Lookup(args[0]))
			return err
		},
	}
}

func newCatalogMergeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <file.json>",
		Short: "Merge scraped provider lists into the catalog file",
		Long: `Merge a JSON object of {"<providerId>": ["Game", ...]} into the catalog.

The current catalog file is copied to <path>.backup before it is rewritten.
Requires --catalog or CATALOG_PATH.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog(cmd, opts)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			var scraped map[string][]string
			if err := json.Unmarshal(data, &scraped); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			result, err := cat.MergeAndSave(scraped)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func openCatalog(cmd *cobra.Command, opts *rootOptions) (*catalog.Catalog, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	return catalog.Load(cfg.CatalogPath)
}
