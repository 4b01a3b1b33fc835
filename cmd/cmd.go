package cmd

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/facet/internal/app"
	"github.com/stupside/facet/internal/version"
)

// Root returns the root CLI command.
func Root() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "facet",
		Usage:   "Launch browser profiles with stable identities and per-session noise",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to configuration file",
				Value:       "config.yaml",
				Destination: &configPath,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := app.Load(configPath)
			if err != nil {
				return ctx, err
			}
			a, err := app.Build(cfg, app.ChromeDriver(cfg))
			if err != nil {
				return ctx, err
			}
			cmd.Metadata["config"] = cfg
			cmd.Metadata["app"] = a
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			a, ok := cmd.Metadata["app"].(*app.App)
			if !ok {
				return nil
			}
			return a.Close()
		},
		Commands: []*cli.Command{
			profileCommand(),
			proxyCommand(),
			openCommand(),
			serveCommand(),
			{
				Name:  "info",
				Usage: "Print build information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					slog.Info("build",
						"version", version.Version,
						"commit", version.Commit,
						"build_time", version.BuildTime,
					)
					return nil
				},
			},
		},
		Metadata: map[string]any{},
	}
}
