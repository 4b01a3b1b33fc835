package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/stupside/facet/internal/app"
	"github.com/stupside/facet/internal/proxy"
)

// proxyCommand returns the "proxy" CLI subcommand.
func proxyCommand() *cli.Command {
	return &cli.Command{
		Name:  "proxy",
		Usage: "Manage named proxies",
		Commands: []*cli.Command{
			proxyAddCommand(),
			proxyUpdateCommand(),
			proxyListCommand(),
			proxyDeleteCommand(),
		},
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "username", Usage: "Proxy username"},
		&cli.StringFlag{Name: "password", Usage: "Proxy password"},
	}
}

func proxyAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a proxy; the server may be a URL or host:port[:user:pass]",
		ArgsUsage: "<name> <server>",
		Flags:     credentialFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			if cmd.Args().Len() != 2 {
				return cli.Exit("provide a proxy name and a server", 1)
			}

			b := proxy.Binding{
				Name:     cmd.Args().Get(0),
				Server:   cmd.Args().Get(1),
				Username: cmd.String("username"),
				Password: cmd.String("password"),
			}
			if !strings.Contains(b.Server, "://") {
				if server, user, pass, err := proxy.ParseShorthand(b.Server); err == nil {
					b.Server = server
					if user != "" {
						b.Username, b.Password = user, pass
					}
				}
			}

			b, err = a.Proxies.Add(ctx, b)
			if err != nil {
				return err
			}
			printBinding(b)
			return nil
		},
	}
}

func proxyUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change a proxy; a new server re-resolves its location",
		ArgsUsage: "<name>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "New proxy name"},
			&cli.StringFlag{Name: "server", Usage: "New proxy server"},
		}, credentialFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			name := cmd.Args().First()
			if name == "" {
				return cli.Exit("provide a proxy name argument", 1)
			}

			var u proxy.Update
			for flag, dst := range map[string]**string{
				"name":     &u.Name,
				"server":   &u.Server,
				"username": &u.Username,
				"password": &u.Password,
			} {
				if cmd.IsSet(flag) {
					v := cmd.String(flag)
					*dst = &v
				}
			}

			b, err := a.Proxies.Update(ctx, name, u)
			if err != nil {
				return err
			}
			printBinding(b)
			return nil
		},
	}
}

func proxyListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List proxies",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			bindings, err := a.Proxies.List()
			if err != nil {
				return err
			}
			for _, b := range bindings {
				printBinding(b)
			}
			return nil
		},
	}
}

func proxyDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a proxy; profiles using it launch without a proxy",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.From(cmd)
			if err != nil {
				return err
			}
			name := cmd.Args().First()
			if name == "" {
				return cli.Exit("provide a proxy name argument", 1)
			}
			if err := a.Proxies.Delete(ctx, name); err != nil {
				return err
			}
			fmt.Println(success.Sprintf("deleted %s", name))
			return nil
		},
	}
}

func printBinding(b proxy.Binding) {
	auth := ""
	if b.HasCredentials() {
		auth = " (auth)"
	}
	location := "-"
	if g := b.Geo(); g != nil {
		location = fmt.Sprintf("%s %s", g.CountryCode, g.TimezoneID)
	}
	fmt.Printf("%s\t%s%s\t%s\n", label.Sprint(b.Name), b.Server, auth, location)
}
