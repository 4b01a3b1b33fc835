package launcher

import "context"

// Driver starts browser processes. It hides the browser control protocol
// from the launch procedure.
type Driver interface {
	// Supports reports whether the driver can launch f.
	Supports(f Family) bool
	// Launch starts a browser bound to p.UserDataDir with p applied. The
	// browser outlives ctx; only Browser.Close stops it.
	Launch(ctx context.Context, p Params) (Browser, error)
}

// Browser is a running browser process.
type Browser interface {
	// InitialPage is the page opened with the process.
	InitialPage() Page
	// Pages delivers every page created after launch, until Done is
	// closed. A delivered page may be held before its first document until
	// Resume is called.
	Pages() <-chan Page
	// Done is closed when the browser process exits or its connection is
	// lost.
	Done() <-chan struct{}
	Close() error
}

// Page is a single tab of a Browser.
type Page interface {
	ID() string
	// Emulate applies the launch parameters that are set per page.
	Emulate(ctx context.Context) error
	// AddInitScript registers script to run in every document of the page
	// before any page script.
	AddInitScript(ctx context.Context, script string) error
	// Resume releases a page held at creation so it loads. Pages that were
	// never held ignore it.
	Resume(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
}
