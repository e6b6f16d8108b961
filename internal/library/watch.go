package library

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reports folders whose audio files were created, removed or renamed
// until ctx ends. Only the folders known when Watch starts are watched, not
// their subdirectories.
func (l *Library) Watch(ctx context.Context, onChange func(folder string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range l.Folders() {
		if err := watcher.Add(dir); err != nil {
			l.logger.Warn().Err(err).Str("folder", dir).Msg("failed to watch folder")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !IsAudio(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				onChange(filepath.Dir(event.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}
