package msgcat

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce window for editors that write override files in several bursts.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the catalog whenever a YAML file in the override directory
// changes. It returns immediately; the watcher goroutine stops when ctx is
// cancelled. No-op when the catalog has no override directory.
func (c *Catalog) Watch(ctx context.Context, logger *zap.Logger) error {
	if c.overrideDir == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(c.overrideDir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		var pending *time.Timer
		var pendingC <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !relevantEvent(ev) {
					continue
				}
				if pending == nil {
					pending = time.NewTimer(reloadDebounce)
					pendingC = pending.C
				} else {
					pending.Reset(reloadDebounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("msgcat watch error", zap.Error(err))
			case <-pendingC:
				pending = nil
				pendingC = nil
				if err := c.rebuild(); err != nil {
					logger.Warn("msgcat reload failed", zap.Error(err))
					continue
				}
				logger.Info("msgcat reloaded", zap.String("dir", c.overrideDir))
			}
		}
	}()
	return nil
}

func relevantEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	return ext == ".yaml" || ext == ".yml"
}
