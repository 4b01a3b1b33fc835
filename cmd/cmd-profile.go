package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/stupside/facet/internal/app"
	"github.com/stupside/facet/internal/fingerprint"
	"github.com/stupside/facet/internal/launcher"
	"github.com/stupside/facet/internal/store"
)

// profileCommand returns the "profile" CLI subcommand.
func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage browser profiles",
		Commands: []*cli.Command{
			profileCreateCommand(),
			profileListCommand(),
			profileShowCommand(),
			profileUpdateCommand(),
			profileDeleteCommand(),
		},
	}
}

func settingsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "proxy", Usage: "Name of the proxy to route through"},
		&cli.StringFlag{Name: "hardware", Usage: "GPU class, e.g. rtx3080 or uhd630 (auto picks one)"},
		&cli.StringFlag{Name: "resolution", Usage: "Screen resolution as WIDTHxHEIGHT"},
		&cli.StringFlag{Name: "language", Usage: "Primary language tag, e.g. fr-FR"},
		&cli.StringFlag{Name: "user-agent", Usage: "User agent string"},
		&cli.StringFlag{Name: "timezone", Usage: "IANA timezone, e.g. Europe/Paris"},
		&cli.StringFlag{Name: "browser", Usage: "Browser type (chrome, edge, opera, brave)"},
	}
}

// applySettings copies the flags the user set onto c.
func applySettings(cmd *cli.Command, c *store.CustomSettings) {
	for name, dst := range map[string]*string{
		"hardware":   &c.Hardware,
		"resolution": &c.ScreenResolution,
		"language":   &c.Language,
		"user-agent": &c.UserAgent,
		"timezone":   &c.TimezoneID,
		"browser":    &c.Browser,
	} {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}
}

func profileArg(cmd *cli.Command) (string, error) {
	name := cmd.Args().First()
	if name == "" {
		return "", cli.Exit("provide a profile name argument", 1)
	}
	return name, nil
}

func profileCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a profile with a freshly generated fingerprint",
		ArgsUsage: "<name>",
		Flags:     settingsFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			name, err := profileArg(cmd)
			if err != nil {
				return err
			}

			var custom store.CustomSettings
			applySettings(cmd, &custom)
			if _, err := launcher.ParseFamily(custom.Browser); err != nil {
				return err
			}

			var proxyName *string
			if p := cmd.String("proxy"); p != "" {
				if _, err := a.Proxies.Get(p); err != nil {
					return fmt.Errorf("proxy %s: %w", p, err)
				}
				proxyName = &p
			}

			p, err := a.Profiles.Create(name, proxyName, custom)
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
}

func profileListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List profiles",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			names, err := a.Profiles.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				p, err := a.Profiles.Get(name)
				if err != nil {
					fmt.Printf("%s\t%s\n", name, failure.Sprint(err))
					continue
				}
				proxyName := "-"
				if p.ProxyName != nil && *p.ProxyName != "" {
					proxyName = *p.ProxyName
				}
				fmt.Printf("%s\t%s\t%s\t%s\n",
					label.Sprint(name),
					p.Fingerprint.Screen.Resolution(),
					p.Fingerprint.Hardware.Renderer,
					proxyName,
				)
			}
			return nil
		},
	}
}

func profileShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a profile record",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			name, err := profileArg(cmd)
			if err != nil {
				return err
			}
			p, err := a.Profiles.Get(name)
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
}

func profileUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change the proxy or overrides of a profile; the fingerprint is kept",
		ArgsUsage: "<name>",
		Flags:     settingsFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			name, err := profileArg(cmd)
			if err != nil {
				return err
			}

			if p := cmd.String("proxy"); p != "" {
				if _, err := a.Proxies.Get(p); err != nil {
					return fmt.Errorf("proxy %s: %w", p, err)
				}
			}

			p, err := a.Profiles.Update(name, func(p *store.Profile) error {
				applySettings(cmd, &p.CustomSettings)
				// Overrides the generator rejects would fail every launch.
				if _, err := fingerprint.Generate(p.CustomSettings.Constraints()); err != nil {
					return err
				}
				if _, err := launcher.ParseFamily(p.CustomSettings.Browser); err != nil {
					return err
				}
				if cmd.IsSet("proxy") {
					p.ProxyName = nil
					if v := cmd.String("proxy"); v != "" {
						p.ProxyName = &v
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
}

func profileDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a profile and its browser data",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			name, err := profileArg(cmd)
			if err != nil {
				return err
			}
			if err := a.Profiles.Delete(name); err != nil {
				return err
			}
			fmt.Println(success.Sprintf("deleted %s", name))
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
