package main

import (
	"fmt"
	"strings"

	"gog/cmd/internal/app"
	"gog/cmd/internal/auth/session"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Starts gog with the configured session backend and serves health, readiness and metrics endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return app.Run(cfg)
		},
	}

	cmd.Flags().String("addr", "", "HTTP listen address (e.g. 0.0.0.0:8080)")
	cmd.Flags().String("session-backend", "", "Session backend (memory, postgres, redis)")
	cmd.Flags().Duration("session-ttl", 0, "Sliding session lifetime")
	cmd.Flags().String("session-cleanup-interval", "", `Reaper interval; "off" disables it`)
	return cmd
}

// resolveConfig applies, lowest first: defaults, --config file, environment, flags.
func resolveConfig(cmd *cobra.Command) (app.Config, error) {
	cfg := app.DefaultConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		fileCfg, err := app.LoadConfigFile(path, cfg)
		if err != nil {
			return app.Config{}, err
		}
		cfg = fileCfg
	}

	cfg, err := app.LoadConfigOver(cfg)
	if err != nil {
		return app.Config{}, fmt.Errorf("invalid environment configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("addr") {
		cfg.HTTPAddr, _ = flags.GetString("addr")
	}
	if flags.Changed("session-backend") {
		v, _ := flags.GetString("session-backend")
		cfg.Session.Backend = session.Backend(strings.ToLower(strings.TrimSpace(v)))
	}
	if flags.Changed("session-ttl") {
		cfg.Session.TTL, _ = flags.GetDuration("session-ttl")
	}
	if flags.Changed("session-cleanup-interval") {
		v, _ := flags.GetString("session-cleanup-interval")
		d, err := session.ParseCleanupInterval(v)
		if err != nil {
			return app.Config{}, fmt.Errorf("invalid --session-cleanup-interval %q: %w", v, err)
		}
		cfg.Session.CleanupInterval = d
	}

	if err := cfg.Session.Validate(); err != nil {
		return app.Config{}, fmt.Errorf("invalid session configuration: %w", err)
	}
	return cfg, nil
}
