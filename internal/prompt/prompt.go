// Package prompt serves the consultant system prompt and reloads it when the
// backing file changes.
package prompt

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

//go:embed system_prompt.md
var defaultPrompt string

// Default returns the embedded system prompt.
func Default() string {
	return defaultPrompt
}

// Store holds the current system prompt.
type Store struct {
	mu      sync.RWMutex
	current string
	path    string
	logger  *zap.Logger
}

// NewStore loads the prompt from path, or the embedded default when path is empty.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{current: defaultPrompt, logger: logger}
	if path == "" {
		return s, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve prompt path: %w", err)
	}
	s.path = abs
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the prompt in effect.
func (s *Store) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Path returns the watched file, or "" when the embedded prompt is used.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the prompt file. The previous prompt is kept on failure.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read prompt file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return errors.New("prompt file is empty")
	}

	s.mu.Lock()
	s.current = text
	s.mu.Unlock()
	return nil
}

// Watch reloads the prompt whenever its file is written or recreated.
// It blocks until ctx is done. With the embedded prompt it returns at once.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// Editors often replace the file, so watch the directory.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch prompt dir: %w", err)
	}
	s.logger.Info("watching system prompt", zap.String("path", s.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("prompt reload failed, keeping previous prompt", zap.Error(err))
				continue
			}
			s.logger.Info("system prompt reloaded", zap.String("path", s.path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("prompt watcher error", zap.Error(err))
		}
	}
}
