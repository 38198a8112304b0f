package vars

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileStore keeps variables in a flat YAML mapping and can reload it when the
// file changes on disk.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	values map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenFile loads path. A missing file yields an empty store.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &FileStore{path: path, logger: logger, values: map[string]string{}}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load rereads the backing file.
func (s *FileStore) Load() error {
	values, err := readVarsFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Snapshot(context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Snapshot, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

// StartWatching reloads the store whenever the file is written, created or
// renamed into place. It returns once the watch is registered.
func (s *FileStore) StartWatching(ctx context.Context) error {
	if s.watcher != nil {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure vars dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create vars watcher: %w", err)
	}
	// editors replace files by rename, so watch the directory
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watch(ctx)
	return nil
}

// Close stops watching and waits for the watch loop to exit.
func (s *FileStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	s.watcher = nil
	return err
}

func (s *FileStore) watch(ctx context.Context) {
	defer close(s.done)

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if err := s.Load(); err != nil {
				s.logger.Warn("reload vars failed", "path", s.path, "error", err.Error())
				continue
			}
			s.logger.Info("vars reloaded", "path", s.path)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("vars watcher error", "error", err.Error())
		}
	}
}

func readVarsFile(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read vars %q: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parse vars %q: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[k] = fmt.Sprint(v)
	}
	return values, nil
}
