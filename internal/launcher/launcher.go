// Package launcher opens profile-bound browser processes with the session
// hook installed on every page.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stupside/facet/internal/hook"
	"github.com/stupside/facet/internal/proxy"
	"github.com/stupside/facet/internal/session"
	"github.com/stupside/facet/internal/store"
)

var (
	ErrLaunchFailed      = errors.New("launch failed")
	ErrHookInstallFailed = errors.New("hook install failed")
	ErrProfileBusy       = errors.New("profile already open")
	ErrNotOpen           = errors.New("profile not open")
)

// DefaultURL is opened when a launch names no target.
const DefaultURL = "https://whoer.net/"

// Profiles is the read side of the profile store.
type Profiles interface {
	Get(name string) (*store.Profile, error)
	UserDataDir(name string) string
}

// Proxies resolves proxy names.
type Proxies interface {
	Get(name string) (proxy.Binding, error)
}

type Options struct {
	Profiles Profiles
	Proxies  Proxies
	Driver   Driver

	DefaultURL    string
	LaunchTimeout time.Duration
}

// Launcher opens sessions. Different profiles launch concurrently; a
// profile with a live session cannot be opened again until it closes.
type Launcher struct {
	opts Options

	mu    sync.Mutex
	busy  map[string]bool
	live  map[string]*Session
	order []string
}

func New(opts Options) *Launcher {
	if opts.DefaultURL == "" {
		opts.DefaultURL = DefaultURL
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = time.Minute
	}
	return &Launcher{
		opts: opts,
		busy: map[string]bool{},
		live: map[string]*Session{},
	}
}

func (l *Launcher) reserve(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy[name] {
		return fmt.Errorf("%w: %s", ErrProfileBusy, name)
	}
	l.busy[name] = true
	return nil
}

func (l *Launcher) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.busy, name)
}

// drop forgets s and frees its profile, unless a newer session already
// took the name.
func (l *Launcher) drop(s *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.live[s.name] != s {
		return
	}
	delete(l.busy, s.name)
	delete(l.live, s.name)
	l.order = slices.DeleteFunc(l.order, func(n string) bool { return n == s.name })
}

// Open launches a profile. The steps run strictly in order: load and
// validate the profile, sanitize its storage, derive the perturbation,
// resolve the effective parameters, start the browser, install the hook,
// navigate. Anything failing after the browser started closes it before
// the error is returned.
func (l *Launcher) Open(ctx context.Context, name, url string) (*Session, error) {
	if err := l.reserve(name); err != nil {
		return nil, err
	}
	s, err := l.open(ctx, name, url)
	if err != nil {
		l.release(name)
		return nil, err
	}

	l.mu.Lock()
	l.live[name] = s
	l.order = append(l.order, name)
	l.mu.Unlock()

	go l.watch(s)
	return s, nil
}

func (l *Launcher) open(ctx context.Context, name, url string) (*Session, error) {
	p, err := l.opts.Profiles.Get(name)
	if err != nil {
		return nil, err
	}

	dir := l.opts.Profiles.UserDataDir(name)
	Sanitize(dir)

	pert := session.Derive()
	log := slog.With("profile", name, "session", pert.SessionID)

	binding, warnings := l.binding(ctx, p)
	params, more, err := Resolve(p, binding)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, more...)
	for _, w := range more {
		log.WarnContext(ctx, "launch degraded", "warning", w)
	}

	if !l.opts.Driver.Supports(params.Family) {
		return nil, fmt.Errorf("%w: %w: %s", ErrLaunchFailed, ErrUnsupportedFamily, params.Family)
	}

	params.UserDataDir = dir
	params.URL = url
	if params.URL == "" {
		params.URL = l.opts.DefaultURL
	}
	if params.Geolocation != nil {
		params.Geolocation.Accuracy = 10 + rand.Float64()*30
	}

	spec, script, err := hook.Build(hook.Input{
		Languages:           params.Languages,
		Platform:            params.Platform,
		DeviceMemory:        params.DeviceMemory,
		HardwareConcurrency: params.HardwareConcurrency,
		Screen:              params.Screen,
		Hardware:            params.Hardware,
		Perturbation:        pert,
	})
	if err != nil {
		log.WarnContext(ctx, "hook install failed", "error", fmt.Errorf("%w: %w", ErrHookInstallFailed, err))
		script = ""
	}

	launchCtx, cancel := context.WithTimeout(ctx, l.opts.LaunchTimeout)
	defer cancel()

	log.InfoContext(ctx, "launching browser",
		"family", params.Family,
		"resolution", params.Screen.Resolution(),
		"renderer", params.Hardware.Renderer,
		"timezone", params.TimezoneID,
		"proxy", params.Proxy != nil,
	)

	b, err := l.opts.Driver.Launch(launchCtx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	s := &Session{
		name:         name,
		profile:      p,
		params:       params,
		perturbation: pert,
		spec:         spec,
		warnings:     warnings,
		browser:      b,
		done:         make(chan struct{}),
	}

	initial := b.InitialPage()
	s.install(launchCtx, initial, script)
	go s.follow(context.WithoutCancel(ctx), script, l.opts.LaunchTimeout)

	if err := initial.Navigate(launchCtx, params.URL); err != nil {
		s.shutdown()
		return nil, fmt.Errorf("%w: navigating to %s: %w", ErrLaunchFailed, params.URL, err)
	}

	log.InfoContext(ctx, "browser opened", "url", params.URL)
	return s, nil
}

// binding looks up the profile's proxy. A reference to a deleted proxy is a
// warning and the launch goes out without a proxy.
func (l *Launcher) binding(ctx context.Context, p *store.Profile) (*proxy.Binding, []string) {
	if p.ProxyName == nil || *p.ProxyName == "" || l.opts.Proxies == nil {
		return nil, nil
	}
	b, err := l.opts.Proxies.Get(*p.ProxyName)
	if err != nil {
		w := fmt.Sprintf("proxy %s unavailable, launching without proxy: %v", *p.ProxyName, err)
		slog.WarnContext(ctx, "launch degraded", "profile", p.Name, "warning", w)
		return nil, []string{w}
	}
	return &b, nil
}

func (l *Launcher) watch(s *Session) {
	<-s.browser.Done()
	s.shutdown()
	l.drop(s)
	slog.Info("browser closed", "profile", s.name, "session", s.perturbation.SessionID)
}

// Session returns the live session of a profile.
func (l *Launcher) Session(name string) (*Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.live[name]
	return s, ok
}

// Sessions returns the live sessions in launch order.
func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Session, 0, len(l.order))
	for _, n := range l.order {
		out = append(out, l.live[n])
	}
	return out
}

// CloseProfile closes the live session of a profile.
func (l *Launcher) CloseProfile(name string) error {
	s, ok := l.Session(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOpen, name)
	}
	err := s.Close()
	l.drop(s)
	return err
}

// Close closes every live session.
func (l *Launcher) Close() error {
	var errs []error
	for _, s := range l.Sessions() {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
		l.drop(s)
	}
	return errors.Join(errs...)
}

// OpenResult is the launch outcome reported across the invocation boundary.
type OpenResult struct {
	Profile      string        `json:"profile,omitempty"`
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	Fingerprints *Fingerprints `json:"fingerprints,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// Fingerprints are the identifiers of a launched session.
type Fingerprints struct {
	session.Summary
	WebGLVendor   string `json:"webglVendor"`
	WebGLRenderer string `json:"webglRenderer"`
}

// OpenBrowser is Open with errors turned into values.
func (l *Launcher) OpenBrowser(ctx context.Context, name, url string) OpenResult {
	s, err := l.Open(ctx, name, url)
	if err != nil {
		slog.ErrorContext(ctx, "launch failed", "profile", name, "error", err)
		return OpenResult{Profile: name, Message: err.Error()}
	}
	fp := s.Fingerprints()
	return OpenResult{
		Profile:      name,
		Success:      true,
		Message:      fmt.Sprintf("browser opened for %s", name),
		Fingerprints: &fp,
		Warnings:     s.Warnings(),
	}
}

// OpenAll launches several profiles concurrently. Results follow the order
// of names.
func (l *Launcher) OpenAll(ctx context.Context, names []string, url string) []OpenResult {
	results := make([]OpenResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			results[i] = l.OpenBrowser(gctx, name, url)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
