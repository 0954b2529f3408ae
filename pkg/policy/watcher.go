package policy

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a policy file for changes and reloads it.
// On every successful reload the new Policy is handed to the callback; a
// reload failure (unreadable file, bad regex) is logged and the previously
// loaded policy stays in effect.
type Watcher struct {
	path     string
	onReload func(*Policy)
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWatcher creates a watcher for the policy file at path.
// onReload is invoked from the watcher goroutine; callers that share the
// policy across goroutines must swap it atomically.
func NewWatcher(path string, onReload func(*Policy), logger *slog.Logger) (*Watcher, error) {
	if onReload == nil {
		return nil, fmt.Errorf("onReload callback cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory, not the file: editors and config rollouts often
	// replace the file via rename, which drops a file-level watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch policy directory: %w", err)
	}

	w := &Watcher{
		path:     path,
		onReload: onReload,
		logger:   logger.With("component", "policy.watcher"),
		watcher:  fsw,
		stopCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// run processes file events until Close.
func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isPolicyEvent(event) {
				continue
			}
			w.reload(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// isPolicyEvent reports whether event concerns the watched policy file with
// an operation that can change its content.
func (w *Watcher) isPolicyEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

// reload loads the policy file and invokes the callback on success.
func (w *Watcher) reload(event fsnotify.Event) {
	w.logger.Info("policy file changed", "op", event.Op.String(), "path", w.path)

	p, err := Load(w.path)
	if err != nil {
		w.logger.Error("policy reload failed, keeping previous policy",
			"error", err,
			"path", w.path,
		)
		return
	}

	w.onReload(p)
	w.logger.Info("policy reloaded", "version", p.Version)
}

// Close stops the watcher and waits for the event goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
