package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/stupside/facet/internal/hook"
	"github.com/stupside/facet/internal/session"
	"github.com/stupside/facet/internal/store"
)

// Session is one running browser of a profile. Its perturbation lives only
// here and dies with it.
type Session struct {
	name         string
	profile      *store.Profile
	params       Params
	perturbation session.Perturbation
	spec         *hook.Spec
	warnings     []string
	browser      Browser

	mu        sync.Mutex
	installed int
	failed    int

	done      chan struct{}
	closeOnce sync.Once
}

func (s *Session) ID() string { return s.perturbation.SessionID }
func (s *Session) Name() string { return s.name }
func (s *Session) Profile() *store.Profile { return s.profile }
func (s *Session) Params() Params { return s.params }
func (s *Session) Perturbation() session.Perturbation { return s.perturbation }

// Spec is the compiled hook, nil when compilation failed.
func (s *Session) Spec() *hook.Spec { return s.spec }

func (s *Session) Warnings() []string { return slices.Clone(s.warnings) }

// Done is closed when the browser has gone away.
func (s *Session) Done() <-chan struct{} { return s.done }

// Hooks reports how many pages got the hook and how many did not.
func (s *Session) Hooks() (installed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installed, s.failed
}

// Fingerprints reports the session identifiers and the claimed GPU.
func (s *Session) Fingerprints() Fingerprints {
	fp := Fingerprints{Summary: s.perturbation.Summary(s.params.Screen.Resolution())}
	if s.spec != nil {
		fp.WebGLVendor = s.spec.WebGL.Vendor
		fp.WebGLRenderer = s.spec.WebGL.Renderer
	}
	return fp
}

// install applies per-page emulation and registers the hook. A failure is
// logged and the page carries on unprotected.
func (s *Session) install(ctx context.Context, p Page, script string) {
	log := slog.With("profile", s.name, "session", s.ID(), "page", p.ID())

	err := p.Emulate(ctx)
	if err == nil && script == "" {
		err = fmt.Errorf("no compiled hook")
	}
	if err == nil {
		err = p.AddInitScript(ctx, script)
	}

	// A held page must load even without the hook.
	if rerr := p.Resume(context.WithoutCancel(ctx)); rerr != nil {
		log.WarnContext(ctx, "resuming page failed", "error", rerr)
	}

	s.mu.Lock()
	if err != nil {
		s.failed++
	} else {
		s.installed++
	}
	s.mu.Unlock()

	if err != nil {
		log.WarnContext(ctx, "hook install failed", "error", fmt.Errorf("%w: %w", ErrHookInstallFailed, err))
		return
	}
	log.DebugContext(ctx, "hook installed")
}

// follow installs the hook on every page created after launch, until the
// browser goes away.
func (s *Session) follow(ctx context.Context, script string, timeout time.Duration) {
	for {
		select {
		case p, ok := <-s.browser.Pages():
			if !ok {
				return
			}
			pctx, cancel := context.WithTimeout(ctx, timeout)
			s.install(pctx, p, script)
			cancel()
		case <-s.browser.Done():
			return
		}
	}
}

func (s *Session) shutdown() {
	if err := s.Close(); err != nil {
		slog.Debug("closing browser", "profile", s.name, "error", err)
	}
}

// Close stops the browser. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.browser.Close()
		close(s.done)
	})
	return err
}
