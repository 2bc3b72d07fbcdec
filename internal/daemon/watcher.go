package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the base directory for topic/manifest changes and
// triggers debounced re-resolutions.
type Watcher struct {
	baseDir      string
	watcher      *fsnotify.Watcher
	trigger      func()
	debounceTime time.Duration
	changeChan   chan struct{}
	stopChan     chan struct{}
}

// NewWatcher creates a watcher over baseDir. trigger is called after each
// debounced batch of changes.
func NewWatcher(baseDir string, debounce time.Duration, trigger func()) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	return &Watcher{
		baseDir:      abs,
		watcher:      w,
		trigger:      trigger,
		debounceTime: debounce,
		changeChan:   make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
	}, nil
}

// Start begins monitoring. Subdirectories present at start are watched;
// directories created later are added as their create events arrive.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.baseDir, err)
	}

	slog.Info("watching for topic changes", "base_dir", w.baseDir, "debounce", w.debounceTime)
	go w.watchLoop(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stopChan)
	_ = w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
					continue
				}
			}
			if !isRelevant(event) {
				continue
			}
			slog.Debug("topic change detected", "file", event.Name, "op", event.Op.String())
			select {
			case w.changeChan <- struct{}{}:
			default: // a change is already pending
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-w.changeChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounceTime)
			timerC = timer.C
		case <-timerC:
			timerC = nil
			w.trigger()
		}
	}
}

func isRelevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".xml")
}
