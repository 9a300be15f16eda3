package main

import (
	"fmt"

	"github.com/ichi0g0y/slot-roulette/internal/env"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/shared/paths"
	"github.com/ichi0g0y/slot-roulette/internal/version"
	"github.com/spf13/cobra"
)

// rootOptions はサブコマンド共通のフラグ
type rootOptions struct {
	port    int
	dataDir string
	catalog string
	debug   bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "slot-roulette",
		Short:         "Roulette queue and scoreboard server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().IntVarP(&opts.port, "port", "p", 0, "listen port (overrides SERVER_PORT)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (overrides DATA_DIR)")
	cmd.PersistentFlags().StringVar(&opts.catalog, "catalog", "", "catalog YAML path (overrides CATALOG_PATH)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newCatalogCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}

// loadConfig は env を読み込み、フラグで上書きする
func loadConfig(cmd *cobra.Command, opts *rootOptions) (env.Config, error) {
	cfg, err := env.Load()
	if err != nil {
		return env.Config{}, err
	}

	if cmd.Flags().Changed("port") {
		cfg.ServerPort = opts.port
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.catalog != "" {
		cfg.CatalogPath = opts.catalog
	}
	if opts.debug {
		cfg.DebugMode = true
	}
	if err := cfg.Validate(); err != nil {
		return env.Config{}, err
	}

	if cfg.DebugMode {
		logger.Init(true)
		logger.Debug("Debug mode enabled")
	}
	paths.SetDataDir(cfg.DataDir)
	return cfg, nil
}
