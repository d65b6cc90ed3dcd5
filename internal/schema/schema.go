// Package schema loads note-schema definitions from YAML and serves them
// to the gate checker, reloading the file when it changes on disk.
package schema

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/forgecrew/foreman/internal/engine"
	"github.com/forgecrew/foreman/internal/types"
)

// schemaFile is the on-disk YAML shape: a map from tag to the note
// requirements that tag carries.
//
//	schemas:
//	  feature:
//	    - key: acceptance-criteria
//	      role: queue
//	      required: true
//	      description: What done looks like
type schemaFile struct {
	Schemas map[string][]engine.SchemaEntry `yaml:"schemas"`
}

// Provider serves note requirements keyed by tag. It is safe for
// concurrent use; Watch swaps the table atomically on file change.
type Provider struct {
	path   string
	logger *log.Logger

	mu      sync.RWMutex
	entries map[string][]engine.SchemaEntry

	watcher *fsnotify.Watcher
	done    chan struct{}
}

var _ engine.NoteSchemaService = (*Provider)(nil)

// Load reads the schema file at path. A missing file yields an empty
// provider (schema-free until the file appears and Watch picks it up).
func Load(path string, logger *log.Logger) (*Provider, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	p := &Provider{path: path, logger: logger, entries: map[string][]engine.SchemaEntry{}}
	if err := p.reload(); err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, err
	}
	return p, nil
}

func (p *Provider) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse schema file %s: %w", p.path, err)
	}
	entries := make(map[string][]engine.SchemaEntry, len(file.Schemas))
	for tag, tagEntries := range file.Schemas {
		for i, entry := range tagEntries {
			if entry.Key == "" {
				return fmt.Errorf("schema %s entry %d: key is required", tag, i)
			}
			switch entry.Role {
			case types.RoleQueue, types.RoleWork, types.RoleReview:
			default:
				return fmt.Errorf("schema %s entry %s: role must be queue, work, or review (got %s)",
					tag, entry.Key, entry.Role)
			}
		}
		entries[tag] = tagEntries
	}

	p.mu.Lock()
	p.entries = entries
	p.mu.Unlock()
	p.logger.Printf("loaded note schemas for %d tags from %s", len(entries), p.path)
	return nil
}

// RequirementsFor unions the schema entries of every matching tag
func (p *Provider) RequirementsFor(tags []string) []engine.SchemaEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []engine.SchemaEntry
	for _, tag := range tags {
		result = append(result, p.entries[tag]...)
	}
	return result
}

// Watch reloads the schema file whenever it is written. Watching the
// parent directory survives editors that replace the file by rename.
func (p *Provider) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create schema watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch schema directory: %w", err)
	}
	p.watcher = watcher
	p.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(p.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := p.reload(); err != nil && !os.IsNotExist(err) {
					p.logger.Printf("schema reload failed: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Printf("schema watcher error: %v", err)
			case <-p.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running
func (p *Provider) Close() error {
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	if p.watcher != nil {
		err := p.watcher.Close()
		p.watcher = nil
		return err
	}
	return nil
}
