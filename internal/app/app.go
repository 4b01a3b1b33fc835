package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/facet/internal/geo"
	"github.com/stupside/facet/internal/launcher"
	"github.com/stupside/facet/internal/proxy"
	"github.com/stupside/facet/internal/store"
)

// App holds the components built from a Config.
type App struct {
	Profiles *store.ProfileStore
	Proxies  *proxy.Service
	Launcher *launcher.Launcher

	closers []func() error
}

// Build opens the stores and wires the launcher. The browser executable is
// resolved lazily so commands that never launch work without one.
func Build(cfg *Config, driver launcher.Driver) (*App, error) {
	a := &App{}

	profiles, err := store.OpenProfileStore(cfg.Storage.ProfilesDir)
	if err != nil {
		return nil, err
	}
	a.Profiles = profiles

	proxies, err := store.OpenProxyStore(cfg.Storage.ProxiesDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, proxies.Close)

	var chain geo.Chain
	if cfg.Geo.MMDBPath != "" {
		mm, err := geo.OpenMaxMind(cfg.Geo.MMDBPath)
		if err != nil {
			slog.Warn("offline geo database unavailable", "path", cfg.Geo.MMDBPath, "error", err)
		} else {
			chain = append(chain, mm)
			a.closers = append(a.closers, mm.Close)
		}
	}
	chain = append(chain, geo.NewIPAPI(cfg.Geo.Endpoint, cfg.Geo.Timeout))

	hosts := geo.NewHostResolver(cfg.Geo.DNSServer, cfg.Geo.Timeout)
	a.Proxies = proxy.NewService(proxies, hosts, chain)

	a.Launcher = launcher.New(launcher.Options{
		Profiles:      profiles,
		Proxies:       proxies,
		Driver:        driver,
		DefaultURL:    cfg.Browser.DefaultURL,
		LaunchTimeout: cfg.Browser.LaunchTimeout,
	})
	a.closers = append(a.closers, a.Launcher.Close)

	return a, nil
}

// ChromeDriver returns the Chromium driver configured by cfg.
func ChromeDriver(cfg *Config) launcher.Driver {
	return &lazyChrome{cfg: cfg.Browser}
}

// lazyChrome defers executable lookup to the first launch.
type lazyChrome struct {
	cfg BrowserConfig
}

func (l *lazyChrome) Supports(f launcher.Family) bool {
	return f == launcher.Chromium
}

func (l *lazyChrome) Launch(ctx context.Context, p launcher.Params) (launcher.Browser, error) {
	path, err := launcher.ResolveExecPath(l.cfg.ChromePath)
	if err != nil {
		return nil, err
	}
	return launcher.NewChrome(launcher.ChromeConfig{
		ExecPath:   path,
		Headless:   l.cfg.Headless,
		NoSandbox:  l.cfg.NoSandbox,
		OutputTail: l.cfg.OutputTail,
	}).Launch(ctx, p)
}

// Close releases every component, latest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// From extracts the App from the CLI command metadata.
func From(cmd *cli.Command) (*App, error) {
	v, ok := cmd.Root().Metadata["app"]
	if !ok {
		return nil, fmt.Errorf("app not found in command metadata")
	}
	a, ok := v.(*App)
	if !ok {
		return nil, fmt.Errorf("app has unexpected type %T", v)
	}
	return a, nil
}
