package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/stupside/facet/internal/fingerprint"
)

// ChromeConfig configures the chromedp driver.
type ChromeConfig struct {
	ExecPath   string
	Headless   bool
	NoSandbox  bool
	OutputTail int
}

// Chrome drives Chromium-family browsers over the DevTools protocol.
type Chrome struct {
	cfg ChromeConfig
}

func NewChrome(cfg ChromeConfig) *Chrome {
	return &Chrome{cfg: cfg}
}

func (c *Chrome) Supports(f Family) bool {
	return f == Chromium
}

func (c *Chrome) allocatorOpts(p Params, tail *outputTail) []chromedp.ExecAllocatorOption {
	var headless any = false
	if c.cfg.Headless {
		headless = "new"
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(c.cfg.ExecPath),
		chromedp.UserDataDir(p.UserDataDir),

		chromedp.Flag("headless", headless),
		chromedp.Flag("no-sandbox", c.cfg.NoSandbox),

		chromedp.WindowSize(p.Screen.Width, p.Screen.Height),
		chromedp.UserAgent(p.UserAgent),
		chromedp.Flag("lang", p.Locale()),

		chromedp.CombinedOutput(tail),
	}
	for _, f := range LaunchFlags() {
		if f.Value == "" {
			opts = append(opts, chromedp.Flag(f.Name, true))
		} else {
			opts = append(opts, chromedp.Flag(f.Name, f.Value))
		}
	}
	if p.Proxy != nil {
		opts = append(opts, chromedp.ProxyServer(p.Proxy.Server))
	}
	return opts
}

// Launch starts the process and attaches to its first tab. On failure the
// process is stopped and the error carries the tail of its output.
func (c *Chrome) Launch(ctx context.Context, p Params) (Browser, error) {
	tail := newOutputTail(c.cfg.OutputTail)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), c.allocatorOpts(p, tail)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	b := &chromeBrowser{
		params: p,
		ctx:    browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		pages: make(chan Page, 8),
		done:  make(chan struct{}),
		seen:  map[target.ID]bool{},
	}

	if err := runWithin(ctx, browserCtx); err != nil {
		b.cancel()
		if out := tail.String(); out != "" {
			return nil, fmt.Errorf("starting browser: %w; browser output: %s", err, out)
		}
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	cc := chromedp.FromContext(browserCtx)
	b.initial = &chromePage{id: cc.Target.TargetID, ctx: browserCtx, params: p}
	b.seen[cc.Target.TargetID] = true

	if p.Geolocation != nil {
		grant := browser.GrantPermissions([]browser.PermissionType{browser.PermissionTypeGeolocation})
		if err := grant.Do(cdp.WithExecutor(browserCtx, cc.Browser)); err != nil {
			slog.WarnContext(ctx, "granting geolocation permission failed", "error", err)
		}
	}

	// New pages are held before their first document until the hook is
	// registered and Resume releases them.
	chromedp.ListenBrowser(browserCtx, b.onBrowserEvent)
	follow := target.SetAutoAttach(true, true).
		WithFlatten(true).
		WithFilter(target.Filter{{Type: "page"}})
	if err := follow.Do(cdp.WithExecutor(browserCtx, cc.Browser)); err != nil {
		slog.WarnContext(ctx, "following new pages failed", "error", err)
	}
	go b.watch(cc.Browser.LostConnection)

	slog.DebugContext(ctx, "browser started", "user_data_dir", p.UserDataDir, "target", cc.Target.TargetID)
	return b, nil
}

type chromeBrowser struct {
	params  Params
	ctx     context.Context
	cancel  func()
	initial *chromePage

	mu     sync.Mutex
	seen   map[target.ID]bool
	closed bool
	pages  chan Page

	done      chan struct{}
	closeOnce sync.Once
}

func (b *chromeBrowser) InitialPage() Page { return b.initial }
func (b *chromeBrowser) Pages() <-chan Page { return b.pages }
func (b *chromeBrowser) Done() <-chan struct{} { return b.done }

// onBrowserEvent must not block: attaching runs commands, so it happens on
// its own goroutine.
func (b *chromeBrowser) onBrowserEvent(ev any) {
	e, ok := ev.(*target.EventAttachedToTarget)
	if !ok || e.TargetInfo == nil {
		return
	}
	info := e.TargetInfo
	var hold target.SessionID
	if e.WaitingForDebugger {
		hold = e.SessionID
	}

	b.mu.Lock()
	follow := !b.closed && !b.seen[info.TargetID] && info.Type == "page"
	if follow {
		b.seen[info.TargetID] = true
	}
	b.mu.Unlock()

	switch {
	case follow:
		go b.attach(info.TargetID, hold)
	case hold != "":
		go b.release(hold)
	}
}

func (b *chromeBrowser) attach(id target.ID, hold target.SessionID) {
	pageCtx, cancel := chromedp.NewContext(b.ctx, chromedp.WithTargetID(id))
	if err := chromedp.Run(pageCtx); err != nil {
		cancel()
		slog.Warn("attaching to new page failed", "target", id, "error", err)
		b.release(hold)
		return
	}

	p := &chromePage{id: id, ctx: pageCtx, cancel: cancel, params: b.params, hold: hold}
	if !b.deliver(p) {
		cancel()
	}
}

// deliver hands p to the Pages consumer. It gives up once the browser is
// gone.
func (b *chromeBrowser) deliver(p Page) bool {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return false
	}

	select {
	case b.pages <- p:
		return true
	case <-b.done:
		return false
	}
}

// release drops the auto-attach session holding a target, which lets the
// target load.
func (b *chromeBrowser) release(hold target.SessionID) {
	if hold == "" {
		return
	}
	c := chromedp.FromContext(b.ctx)
	if c == nil || c.Browser == nil {
		return
	}
	if err := target.DetachFromTarget().WithSessionID(hold).Do(cdp.WithExecutor(b.ctx, c.Browser)); err != nil {
		slog.Debug("releasing held target failed", "session", hold, "error", err)
	}
}

func (b *chromeBrowser) watch(lost <-chan struct{}) {
	select {
	case <-lost:
		slog.Debug("browser connection lost")
	case <-b.ctx.Done():
	}
	b.shutdown()
}

func (b *chromeBrowser) shutdown() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		b.cancel()
		close(b.done)
	})
}

// Close asks the browser to exit, then releases the allocator.
func (b *chromeBrowser) Close() error {
	var err error
	if b.ctx.Err() == nil {
		err = chromedp.Cancel(b.ctx)
	}
	b.shutdown()
	if err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

type chromePage struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
	params Params

	// hold is the auto-attach session keeping the page before its first
	// document; empty once released or for pages that were never held.
	mu   sync.Mutex
	hold target.SessionID
}

func (p *chromePage) ID() string { return string(p.id) }

func (p *chromePage) Emulate(ctx context.Context) error {
	return runWithin(ctx, p.ctx, p.emulation(), p.proxyAuth())
}

func (p *chromePage) emulation() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		w, h := int64(p.params.Screen.Width), int64(p.params.Screen.Height)
		metrics := emulation.SetDeviceMetricsOverride(w, h, 1, false).
			WithScreenWidth(w).
			WithScreenHeight(h)
		if err := metrics.Do(ctx); err != nil {
			return fmt.Errorf("device metrics: %w", err)
		}

		if err := emulation.SetAutomationOverride(false).Do(ctx); err != nil {
			return fmt.Errorf("automation override: %w", err)
		}
		if err := emulation.SetFocusEmulationEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("focus emulation: %w", err)
		}
		if err := emulation.SetHardwareConcurrencyOverride(int64(p.params.HardwareConcurrency)).Do(ctx); err != nil {
			return fmt.Errorf("hardware concurrency: %w", err)
		}

		if tz := p.params.TimezoneID; tz != "" {
			if err := emulation.SetTimezoneOverride(tz).Do(ctx); err != nil {
				return fmt.Errorf("timezone %s: %w", tz, err)
			}
		}
		if loc := p.params.Locale(); loc != "" {
			if err := emulation.SetLocaleOverride().WithLocale(loc).Do(ctx); err != nil {
				return fmt.Errorf("locale %s: %w", loc, err)
			}
		}

		if g := p.params.Geolocation; g != nil {
			geo := emulation.SetGeolocationOverride().
				WithLatitude(g.Latitude).
				WithLongitude(g.Longitude).
				WithAccuracy(g.Accuracy)
			if err := geo.Do(ctx); err != nil {
				return fmt.Errorf("geolocation: %w", err)
			}
		}

		hints := p.params.Hints
		ua := emulation.SetUserAgentOverride(p.params.UserAgent).
			WithAcceptLanguage(p.params.AcceptLanguage).
			WithPlatform(p.params.Platform).
			WithUserAgentMetadata(&emulation.UserAgentMetadata{
				Brands:          brandList(hints.Brands),
				FullVersionList: brandList(hints.FullVersionList),
				Platform:        hints.Platform,
				PlatformVersion: hints.PlatformVersion,
				Architecture:    hints.Architecture,
				Model:           "",
				Mobile:          false,
				Bitness:         hints.Bitness,
			})
		if err := ua.Do(ctx); err != nil {
			return fmt.Errorf("user agent: %w", err)
		}
		return nil
	}
}

// proxyAuth answers proxy authentication challenges through the fetch
// domain. It is a no-op for proxies without credentials.
func (p *chromePage) proxyAuth() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		px := p.params.Proxy
		if px == nil || px.Username == "" {
			return nil
		}

		chromedp.ListenTarget(p.ctx, func(ev any) {
			switch e := ev.(type) {
			case *fetch.EventRequestPaused:
				go p.exec(fetch.ContinueRequest(e.RequestID))
			case *fetch.EventAuthRequired:
				go p.exec(fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: px.Username,
					Password: px.Password,
				}))
			}
		})

		enable := fetch.Enable().
			WithHandleAuthRequests(true).
			WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}})
		if err := enable.Do(ctx); err != nil {
			return fmt.Errorf("proxy auth: %w", err)
		}
		return nil
	}
}

func (p *chromePage) exec(a chromedp.Action) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return
	}
	if err := a.Do(cdp.WithExecutor(p.ctx, c.Target)); err != nil {
		slog.Debug("fetch command failed", "target", p.id, "error", err)
	}
}

// AddInitScript registers the script for every new document.
func (p *chromePage) AddInitScript(ctx context.Context, script string) error {
	return runWithin(ctx, p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
		return err
	}))
}

// Resume lets a held page load its first document. The page's own session
// asks the renderer to run and the auto-attach session is dropped, which
// lifts the navigation hold.
func (p *chromePage) Resume(ctx context.Context) error {
	p.mu.Lock()
	hold := p.hold
	p.hold = ""
	p.mu.Unlock()
	if hold == "" {
		return nil
	}

	return runWithin(ctx, p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := runtime.RunIfWaitingForDebugger().Do(ctx); err != nil {
			return fmt.Errorf("run if waiting: %w", err)
		}
		c := chromedp.FromContext(p.ctx)
		if err := target.DetachFromTarget().WithSessionID(hold).Do(cdp.WithExecutor(ctx, c.Browser)); err != nil {
			return fmt.Errorf("releasing hold: %w", err)
		}
		return nil
	}))
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := runWithin(ctx, p.ctx, chromedp.Navigate(url)); err != nil {
		return err
	}
	debugSnapshot(p.ctx, "after_nav")
	return nil
}

func brandList(brands []fingerprint.Brand) []*emulation.UserAgentBrandVersion {
	out := make([]*emulation.UserAgentBrandVersion, len(brands))
	for i, b := range brands {
		out[i] = &emulation.UserAgentBrandVersion{Brand: b.Name, Version: b.Version}
	}
	return out
}

// runWithin runs actions on the chromedp context cctx while honoring ctx. A
// child of a chromedp context cannot carry the deadline: canceling it breaks
// the target.
func runWithin(ctx, cctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(cctx, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
