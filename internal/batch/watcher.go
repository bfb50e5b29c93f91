package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a workbook must stay unchanged before it is
// processed. Spreadsheet programs write a file in several steps.
const DefaultSettle = 500 * time.Millisecond

// Watcher runs a Runner on every workbook created or rewritten in a
// directory.
type Watcher struct {
	dir    string
	runner *Runner
	settle time.Duration
	onDone func(Result, error)
	logger *slog.Logger
}

// NewWatcher creates a watcher for dir. onDone, if not nil, is called after
// each workbook has been processed.
func NewWatcher(dir string, runner *Runner, settle time.Duration, onDone func(Result, error), logger *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:    dir,
		runner: runner,
		settle: settle,
		onDone: onDone,
		logger: logger.With(slog.String("component", "batch_watcher")),
	}
}

// Backfill processes the workbooks already present in the directory.
func (w *Watcher) Backfill(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(w.dir, "*"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if isWorkbook(path) {
			w.process(ctx, path)
		}
	}
	return nil
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.InfoContext(ctx, "watching directory", slog.String("dir", w.dir))

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	// last change per workbook that has not been processed yet
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && isWorkbook(evt.Name) {
				pending[evt.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "watcher error", slog.String("error", err.Error()))

		case now := <-ticker.C:
			for path, changed := range pending {
				if now.Sub(changed) >= w.settle {
					delete(pending, path)
					w.process(ctx, path)
				}
			}
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	res, err := w.runner.ProcessFile(ctx, path)
	if err != nil {
		w.logger.WarnContext(ctx, "workbook not exported",
			slog.String("workbook", path),
			slog.String("error", err.Error()))
	}
	if w.onDone != nil {
		w.onDone(res, err)
	}
}

// isWorkbook ignores Excel lock files and anything that is not .xlsx.
func isWorkbook(path string) bool {
	name := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(name), ".xlsx") && !strings.HasPrefix(name, "~$")
}
