package services

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// SubscriberWatcher hot-reloads the subscriber list when the file changes.
// It watches the containing directory because editors commonly replace the
// file rather than write it in place.
type SubscriberWatcher struct {
	filePath string
	store    *SubscriberStore
	watcher  *fsnotify.Watcher
}

func NewSubscriberWatcher(filePath string, store *SubscriberStore) *SubscriberWatcher {
	return &SubscriberWatcher{filePath: filePath, store: store}
}

// Start begins watching on its own goroutine and returns immediately. The
// watcher stops when the context is cancelled. A watch setup failure is
// logged but not fatal: the list loaded at startup keeps serving.
func (w *SubscriberWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	dir := filepath.Dir(w.filePath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	logrus.Infof("Started watching %s for changes...", w.filePath)

	go func() {
		defer watcher.Close()
		target := filepath.Clean(w.filePath)

		for {
			select {
			case <-ctx.Done():
				logrus.Info("Stopped file watcher")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logrus.Infof("%s changed, reloading email list...", w.filePath)
				w.store.Replace(LoadSubscriberFile(w.filePath))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.Errorf("File watcher error: %v", err)
			}
		}
	}()

	return nil
}
