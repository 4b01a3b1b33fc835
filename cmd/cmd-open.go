package cmd

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/facet/internal/app"
)

// openCommand returns the "open" CLI subcommand.
func openCommand() *cli.Command {
	var url string

	return &cli.Command{
		Name:      "open",
		Usage:     "Launch one or more profiles and wait until their browsers close",
		ArgsUsage: "<profile>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "Page to open (defaults to browser.default_url)",
				Destination: &url,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			names := cmd.Args().Slice()
			if len(names) == 0 {
				return cli.Exit("provide at least one profile name", 1)
			}

			opened := 0
			for _, r := range a.Launcher.OpenAll(ctx, names, url) {
				printResult(r)
				if r.Success {
					opened++
				}
			}
			if opened == 0 {
				return cli.Exit("no browser opened", 1)
			}

			for _, s := range a.Launcher.Sessions() {
				select {
				case <-s.Done():
				case <-ctx.Done():
					slog.InfoContext(ctx, "closing browsers", "count", len(a.Launcher.Sessions()))
					return a.Launcher.Close()
				}
			}
			slog.InfoContext(ctx, "all browsers closed")
			return nil
		},
	}
}
