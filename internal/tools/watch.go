package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads the catalog whenever the manifest file at path changes. It
// watches the parent directory so editor rename-and-replace saves are seen.
// It blocks until ctx is done.
func Watch(ctx context.Context, path string, catalog *Catalog, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create manifest watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Str("manifest", target).Msg("manifest watcher error")
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				continue
			}
			reload(path, catalog, logger)
		}
	}
}

func reload(path string, catalog *Catalog, logger zerolog.Logger) {
	m, err := LoadManifest(path)
	if err != nil {
		logger.Error().Err(err).Str("manifest", path).Msg("manifest reload failed; keeping previous tools")
		return
	}
	skipped, err := catalog.Load(m)
	if err != nil {
		logger.Error().Err(err).Str("manifest", path).Msg("manifest reload failed; keeping previous tools")
		return
	}
	evt := logger.Info().Str("manifest", path).Int("tools", len(catalog.List()))
	if len(skipped) > 0 {
		evt = evt.Strs("unimplemented", skipped)
	}
	evt.Msg("tool manifest reloaded")
}
