package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/leihbot/core/buildinfo"
	corecmd "github.com/m3rciful/leihbot/core/cmd"
	"github.com/m3rciful/leihbot/core/database"
	"github.com/m3rciful/leihbot/core/logger"
	"github.com/m3rciful/leihbot/internal/app"
)

const defaultConfigPath = "config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "leihbot",
	Short:         "leihbot tracks lent items in Telegram chats",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the YAML config (default $CONFIG_PATH or "+defaultConfigPath+")")
	rootCmd.AddCommand(newServeCmd(), newMigrateCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return corecmd.Run(corecmd.Options{
				Context:           cmd.Context(),
				ConfigPath:        configPath,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return app.Load(path)
				},
				Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					appCfg, ok := cfg.(*app.Config)
					if !ok {
						return nil, fmt.Errorf("unexpected config type %T", cfg)
					}
					return app.Bootstrap(appCfg, app.BootstrapOptions{SkipMigrations: skipMigrations})
				},
			})
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := corecmd.ResolveConfigPath(corecmd.Options{
				ConfigPath:        configPath,
				DefaultConfigPath: defaultConfigPath,
			})
			if err != nil {
				return err
			}
			cfg, err := app.Load(path)
			if err != nil {
				return err
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			return database.RunMigrations(cfg.Database)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			date := buildinfo.Date
			if date == "" {
				date = "unknown"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "leihbot %s (%s, built %s)\n", buildinfo.Version, buildinfo.Commit, date)
		},
	}
}
