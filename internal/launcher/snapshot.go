package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
)

var (
	snapshotDir  string
	snapshotOnce sync.Once
	snapshotSeq  atomic.Int64
)

// debugSnapshot writes a screenshot and the outer HTML of the page in ctx.
// It only runs when debug logging is enabled and never fails the caller.
func debugSnapshot(ctx context.Context, label string) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}

	snapshotOnce.Do(func() {
		dir := filepath.Join(".debug", fmt.Sprintf("facet-debug-%d", time.Now().UnixMilli()))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Debug("snapshot: creating debug directory failed", "error", err)
			return
		}
		snapshotDir = dir
	})
	if snapshotDir == "" {
		return
	}

	prefix := filepath.Join(snapshotDir, fmt.Sprintf("%02d-%s", snapshotSeq.Add(1), label))

	var png []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&png)); err != nil {
		slog.Debug("snapshot: screenshot failed", "label", label, "error", err)
	} else if err := os.WriteFile(prefix+".png", png, 0o644); err != nil {
		slog.Debug("snapshot: writing screenshot failed", "error", err)
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		slog.Debug("snapshot: outer HTML failed", "label", label, "error", err)
	} else if err := os.WriteFile(prefix+".html", []byte(html), 0o644); err != nil {
		slog.Debug("snapshot: writing HTML failed", "error", err)
	}

	slog.Debug("snapshot: saved", "prefix", prefix)
}
