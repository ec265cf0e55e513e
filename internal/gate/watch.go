package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Watch reloads the policy file whenever it changes. Blocks until ctx is
// cancelled. Rapid successive writes are coalesced into one reload.
func (g *Gate) Watch(ctx context.Context) error {
	if g.path == "" {
		return fmt.Errorf("gate: watch: no policy file configured")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("gate: watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(g.path); err != nil {
		return fmt.Errorf("gate: watch %s: %w", g.path, err)
	}
	g.logger.Info("policy hot reload enabled", "path", g.path, "version", g.Version())

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				old := g.Version()
				if err := g.Reload(); err != nil {
					g.logger.Error("policy reload failed", "path", g.path, "error", err)
					return
				}
				g.logger.Info("policy reloaded", "from", old, "to", g.Version())
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			g.logger.Warn("policy watcher error", "error", err)
		}
	}
}
