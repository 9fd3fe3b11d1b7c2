// Package queries holds the externally supplied SQL the report pipeline
// runs. Defaults are embedded; a query directory can override any of them
// and is hot-reloaded on change.
package queries

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

//go:embed sql/*.sql
var defaultsFS embed.FS

// Query names, matching the embedded file names without extension.
const (
	Sites       = "sites"
	SiteCode    = "site_code"
	Forecast    = "forecast"
	OrderStatus = "order_status"
	OrderLines  = "order_lines"
)

// Set is a named collection of query texts.
type Set struct {
	mu      sync.RWMutex
	texts   map[string]string
	dir     string
	watcher *fsnotify.Watcher
}

// Load builds a Set from the embedded defaults, overridden by any .sql
// files found in dir (empty dir means defaults only).
func Load(dir string) (*Set, error) {
	s := &Set{texts: make(map[string]string), dir: dir}

	entries, err := defaultsFS.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded queries: %w", err)
	}
	for _, entry := range entries {
		data, err := defaultsFS.ReadFile("sql/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded query %s: %w", entry.Name(), err)
		}
		s.texts[nameOf(entry.Name())] = string(data)
	}

	if dir != "" {
		if err := s.loadOverrides(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get returns the text of the named query, or the empty string when the
// name is unknown.
func (s *Set) Get(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.texts[name]
}

// Watch reloads overrides whenever a .sql file in the query directory
// changes. No-op without a query directory.
func (s *Set) Watch() error {
	if s.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create query watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch query directory %s: %w", s.dir, err)
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !strings.HasSuffix(event.Name, ".sql") {
					continue
				}
				if err := s.loadOverrides(); err != nil {
					log.Error().Err(err).Str("file", event.Name).Msg("Failed to reload queries")
					continue
				}
				log.Info().Str("file", event.Name).Msg("Reloaded query overrides")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("Query watcher error")
			}
		}
	}()

	log.Debug().Str("dir", s.dir).Msg("Watching query directory")
	return nil
}

// Close stops the watcher, if any.
func (s *Set) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func (s *Set) loadOverrides() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list query directory %s: %w", s.dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read query override %s: %w", path, err)
		}
		s.texts[nameOf(filepath.Base(path))] = string(data)
	}
	return nil
}

func nameOf(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
