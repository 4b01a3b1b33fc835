package launcher

import (
	"fmt"
	"os"

	rodlauncher "github.com/go-rod/rod/lib/launcher"
)

// ResolveExecPath returns configured when it points at a file, or looks for
// an installed Chromium-family browser.
func ResolveExecPath(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("%w: browser executable %s: %w", ErrLaunchFailed, configured, err)
		}
		return configured, nil
	}
	if path, ok := rodlauncher.LookPath(); ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: no browser executable found, set browser.chrome_path", ErrLaunchFailed)
}
