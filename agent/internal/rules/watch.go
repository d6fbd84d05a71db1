package rules

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the rules file at path whenever it is written and passes the
// new Set to onChange. A failed reload is logged and the previous Set stays
// in effect. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Set)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	slog.Info("rules: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			set, err := Load(path)
			if err != nil {
				slog.Error("rules: reload failed, keeping previous rules", "path", path, "err", err)
				continue
			}
			slog.Info("rules: reloaded", "path", path, "rules", len(set.Rules))
			onChange(set)
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("rules: watcher error", "err", err)
		}
	}
}
