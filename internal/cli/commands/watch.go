package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long the watcher waits for further events before
// re-running.
var watchDebounce = 100 * time.Millisecond

// watchDirs returns the directories to watch for args: directories as given,
// files through their parent.
func watchDirs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", arg, err)
		}
		dir := arg
		if !info.IsDir() {
			dir = filepath.Dir(arg)
		}
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// watchDocuments blocks until ctx is done, calling onChange with the
// documents affected by each debounced batch of file events. discover is
// re-run per batch so that new designs in watched directories are picked up.
func watchDocuments(ctx context.Context, args []string, discover func() ([]Document, error),
	onChange func([]Document), logger *slog.Logger) error {
	dirs, err := watchDirs(args)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logger.Info("watching", "dir", dir)
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]bool)
		timer   *time.Timer
		running sync.Mutex
	)

	flush := func() {
		mu.Lock()
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		pending = make(map[string]bool)
		mu.Unlock()

		running.Lock()
		defer running.Unlock()
		if ctx.Err() != nil {
			return
		}
		docs, err := discover()
		if err != nil {
			logger.Error("discover failed", "error", err)
			return
		}
		if affected := affectedDocuments(docs, changed); len(affected) > 0 {
			logger.Debug("inputs changed", "files", len(changed), "documents", len(affected))
			onChange(affected)
		}
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isInputFile(event.Name) {
				continue
			}

			mu.Lock()
			pending[filepath.Clean(event.Name)] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, flush)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
