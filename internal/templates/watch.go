package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// ErrEmbedded is returned by Watch for renderers without a directory.
var ErrEmbedded = errors.New("templates: embedded fragments cannot be watched")

// Watch reloads the fragments whenever a .html file in the directory is
// written, until ctx is done. onReload, if set, is called after each
// attempt with its result.
func (r *Renderer) Watch(ctx context.Context, debounce time.Duration, logger *slog.Logger, onReload func(error)) error {
	if r.dir == "" {
		return ErrEmbedded
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := fsw.Add(r.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watching directory %s: %w", r.dir, err)
	}

	go func() {
		defer fsw.Close()

		timer := time.NewTimer(debounce)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 || filepath.Ext(ev.Name) != ".html" {
					continue
				}
				timer.Reset(debounce)
			case <-timer.C:
				err := r.Reload()
				if err != nil {
					logger.Warn("template reload failed", "dir", r.dir, "error", err)
				} else {
					logger.Info("templates reloaded", "dir", r.dir)
				}
				if onReload != nil {
					onReload(err)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("template watcher", "error", err)
			}
		}
	}()
	return nil
}
