package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"dexfren/backend/internal/middleware"
	"dexfren/backend/internal/tracker"
)

const DefaultDebounce = 2 * time.Second

// PDFWatcher publishes an incremental reindex task when PDFs are added,
// changed or removed. Bursts of events (a large copy) collapse into one task.
type PDFWatcher struct {
	dir       string
	publisher Publisher
	debounce  time.Duration
}

func NewPDFWatcher(dir string, p Publisher, debounce time.Duration) *PDFWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &PDFWatcher{dir: dir, publisher: p, debounce: debounce}
}

// Start begins watching and returns once the directory is registered. The
// watcher stops when ctx is done.
func (w *PDFWatcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	slog.InfoContext(ctx, "watching pdf directory", "dir", w.dir)

	go w.loop(ctx, fw)
	return nil
}

func (w *PDFWatcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer fw.Close()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending []string
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			pending = append(pending, filepath.Base(ev.Name))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.WarnContext(ctx, "pdf watcher error", "dir", w.dir, "error", err)
		case <-fire:
			fire = nil
			tctx := middleware.NewCorrelationID(ctx)
			slog.InfoContext(tctx, "pdf directory changed", "files", pending)
			pending = nil
			if err := PublishReindex(tctx, w.publisher, ModeIncremental, "pdf directory changed"); err != nil {
				slog.ErrorContext(tctx, "failed to publish reindex", "error", err)
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !tracker.IsPDF(ev.Name) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
