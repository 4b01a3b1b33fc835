package launcher

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFamily is returned for a browser family without a driver.
var ErrUnsupportedFamily = errors.New("unsupported browser family")

// Family is the engine family of a requested browser type.
type Family int

const (
	Chromium Family = iota
	Firefox
	WebKit
)

func (f Family) String() string {
	switch f {
	case Chromium:
		return "chromium"
	case Firefox:
		return "firefox"
	case WebKit:
		return "webkit"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// ParseFamily maps a browser type such as "Google Chrome" or "Microsoft
// Edge" to its family. An empty type is Chromium.
func ParseFamily(browser string) (Family, error) {
	b := strings.ToLower(strings.TrimSpace(browser))
	switch {
	case b == "" || b == "auto":
		return Chromium, nil
	case strings.Contains(b, "chrom"), strings.Contains(b, "edge"),
		strings.Contains(b, "opera"), strings.Contains(b, "brave"):
		return Chromium, nil
	case strings.Contains(b, "firefox"):
		return Firefox, nil
	case strings.Contains(b, "safari"), strings.Contains(b, "webkit"):
		return WebKit, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFamily, browser)
	}
}
