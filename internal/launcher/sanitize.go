package launcher

import (
	"log/slog"
	"os"
	"path/filepath"
)

// staleArtifacts are browser-written state under the user data directory
// that is removed before every launch. Cookies and the rest of the profile
// are kept.
var staleArtifacts = []string{
	filepath.Join("Default", "Preferences"),
	filepath.Join("Default", "Session Storage"),
	filepath.Join("Default", "Local Storage"),
	filepath.Join("Default", "Sessions"),
}

// Sanitize removes stale artifacts from dir and makes sure dir exists.
// Failures are logged and never stop a launch.
func Sanitize(dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("creating user data directory failed", "dir", dir, "error", err)
		return
	}
	for _, rel := range staleArtifacts {
		p := filepath.Join(dir, rel)
		if err := os.RemoveAll(p); err != nil {
			slog.Warn("sanitize: removing artifact failed", "path", p, "error", err)
			continue
		}
		slog.Debug("sanitize: removed", "path", p)
	}
}
