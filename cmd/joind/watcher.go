package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/kjoin/joinrun/internal/join"
)

// schemaFormat maps a file extension to a ParseSchemaDocument format, or
// "" for files the watcher ignores.
func schemaFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

// definitionIDForFile derives the managed definition ID from a schema file
// name: "orders.yaml" manages definition "orders".
func definitionIDForFile(path string) join.DefinitionID {
	base := filepath.Base(path)
	return join.DefinitionID(strings.TrimSuffix(base, filepath.Ext(base)))
}

// SchemaWatcher loads every schema file in a directory at startup and
// re-applies a file's definition whenever the file is created or rewritten.
// A reload never mutates the running definition: the manager activates a
// replacement and swaps it in.
type SchemaWatcher struct {
	dir     string
	manager *join.DefinitionManager
	logger  join.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSchemaWatcher creates a watcher over dir.
func NewSchemaWatcher(dir string, manager *join.DefinitionManager, logger join.Logger) (*SchemaWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &SchemaWatcher{
		dir:     dir,
		manager: manager,
		logger:  logger,
		watcher: fsw,
		done:    make(chan struct{}),
	}, nil
}

// LoadAll applies every schema file currently in the directory.
func (sw *SchemaWatcher) LoadAll() error {
	entries, err := os.ReadDir(sw.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(sw.dir, entry.Name())
		if schemaFormat(path) == "" {
			continue
		}
		sw.applyFile(path)
	}
	return nil
}

// Start begins watching for file events until Close is called.
func (sw *SchemaWatcher) Start() {
	go sw.run()
}

func (sw *SchemaWatcher) run() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if schemaFormat(event.Name) == "" {
				continue
			}
			sw.applyFile(event.Name)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warnf("schema watcher error: %v", err)
		}
	}
}

func (sw *SchemaWatcher) applyFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		sw.logger.Errorf("cannot read schema file %s: %v", path, err)
		return
	}
	cfg, err := join.ParseSchemaDocument(data, schemaFormat(path))
	if err != nil {
		sw.logger.Errorf("cannot parse schema file %s: %v", path, err)
		return
	}

	id := definitionIDForFile(path)
	_, wae, err := sw.manager.Apply(id, cfg)
	if err != nil {
		sw.logger.Errorf("cannot activate schema file %s: %v", path, err)
		return
	}
	for _, warning := range wae.Warnings {
		sw.logger.Warnf("schema %s: %s", id, warning)
	}
	sw.logger.Infof("schema file applied: file=%s definition=%s", filepath.Base(path), id)
}

// Close stops the watcher.
func (sw *SchemaWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}
