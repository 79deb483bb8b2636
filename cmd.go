package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vibelink/config"
	"vibelink/migrations"
)

// app carries what every subcommand needs once flags and config are read.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

func newCmd() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	var configFile string

	cmd := &cobra.Command{
		Use:           "vibelink",
		Short:         "Backend for the VibeLink icebreaker game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				a.v.SetConfigFile(configFile)
				if err := a.v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config %s: %w", configFile, err)
				}
			}
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
			slog.SetDefault(a.logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a.cfg, a.logger)
		},
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&configFile, "config", "c", "", "path to a config file (yaml, json or toml)")
	fs.StringP("bind", "b", "0.0.0.0", "address to bind to (env: BIND_ADDRESS)")
	fs.IntP("port", "p", 5000, "port to listen on (env: PORT)")
	fs.String("environment", config.EnvDevelopment, "development, production or test (env: NODE_ENV)")
	fs.String("db-driver", config.DriverPostgres, "postgres or memory (env: DB_DRIVER)")
	fs.String("log-level", "info", "debug, info, warn or error (env: LOG_LEVEL)")
	fs.String("log-format", "text", "text or json (env: LOG_FORMAT)")
	fs.String("nats-url", "", "NATS server for domain events, empty disables (env: NATS_URL)")
	fs.Bool("redis-enabled", true, "use redis for caches and session snapshots (env: REDIS_ENABLED)")
	fs.Bool("auto-migrate", true, "apply pending migrations on startup (env: AUTO_MIGRATE)")

	// Only flags given on the command line override env and config file.
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		_ = a.v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	cmd.AddCommand(newMigrateCmd(a))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("vibelink v{{.Version}}\n")

	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema.",
	}

	run := func(fn func(m *migrations.Migrator) error) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			if a.cfg.DBDriver != config.DriverPostgres {
				return errors.New("migrations need DB_DRIVER=postgres")
			}
			m, err := migrations.New(a.cfg.DatabaseURL(), a.logger)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(m)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations.",
			Args:  cobra.NoArgs,
			RunE:  run(func(m *migrations.Migrator) error { return m.Up() }),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration.",
			Args:  cobra.NoArgs,
			RunE:  run(func(m *migrations.Migrator) error { return m.Down() }),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version.",
			Args:  cobra.NoArgs,
			RunE: run(func(m *migrations.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Printf("version %d (dirty: %t)\n", version, dirty)
				return nil
			}),
		},
	)
	return cmd
}
