package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"xs2a/internal/cms"
	"xs2a/internal/common/database"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "xs2a",
		Short:        "XS2A authorisation service",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply the CMS schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(database.Up), string(database.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
			return database.Migrate(cfg.Database.URL, cms.Migrations, cms.MigrationsDir, database.Direction(args[0]), logger)
		},
	}
}
