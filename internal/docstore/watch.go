package docstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the list whenever the file is changed by another process,
// until ctx is done. The directory is watched rather than the file so that
// editors replacing the file atomically are picked up.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("docstore.Watch: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("docstore.Watch: watch directory: %w", err)
	}
	s.log.Info().Str("path", s.path).Msg("Watching document store for changes")

	name := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Error().Err(err).Msg("Document store reload failed, keeping previous list")
				continue
			}
			s.log.Debug().Str("event", event.Op.String()).Msg("Document store reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error().Err(err).Msg("Document store watcher error")
		}
	}
}
