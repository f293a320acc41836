package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a policy file into a Table whenever the file changes.
// It watches the file's directory so that editors which replace the file
// through a rename are picked up too.
type Watcher struct {
	path     string
	table    *Table
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	logger   *slog.Logger

	// OnReload, if set, is called after every reload attempt.
	OnReload func(err error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for path that reloads into table.
// debounce defaults to 250ms.
func NewWatcher(path string, table *Table, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve policy path %q: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		table:    table,
		watcher:  fw,
		debounce: NewDebouncer(debounce),
		logger:   slog.Default().With("component", "mailbox.policy.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Reload loads the file once and replaces the table contents.
func (w *Watcher) Reload() error {
	policies, err := LoadFile(w.path)
	if err != nil {
		return err
	}

	retained, err := w.table.Replace(policies)
	if err != nil {
		return err
	}
	if len(retained) > 0 {
		w.logger.Warn("policy file dropped categories, keeping existing policies",
			"categories", retained,
		)
	}

	w.logger.Info("retention policies reloaded",
		"path", w.path,
		"policies", w.table.Len(),
	)
	return nil
}

// Watch blocks until ctx is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("policy watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path || event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				// The replacement shows up as a later Create.
				continue
			}

			w.logger.Debug("policy file event", "op", event.Op.String())
			w.debounce.Trigger(func() {
				err := w.Reload()
				if err != nil {
					w.logger.Error("policy reload failed, keeping previous policies", "error", err)
				}
				if w.OnReload != nil {
					w.OnReload(err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// Stop stops a running watcher and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Debouncer collapses bursts of events into one callback fired after a
// quiet period.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger (re)arms the timer; fn runs once no new trigger arrives within
// the interval.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
