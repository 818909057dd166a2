package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Service watches individual files by watching their directories, so editors
// that replace a file on save are still seen.
type Service struct {
	files    map[string]struct{}
	logger   *slog.Logger
	onChange func(context.Context, string)
	watcher  *fsnotify.Watcher
}

func New(files []string, logger *slog.Logger, onChange func(context.Context, string)) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	watched := make(map[string]struct{}, len(files))
	for _, file := range files {
		if strings.TrimSpace(file) == "" {
			continue
		}
		abs, err := filepath.Abs(file)
		if err != nil {
			fileWatcher.Close()
			return nil, fmt.Errorf("resolve watched file %s: %w", file, err)
		}
		watched[abs] = struct{}{}
	}
	return &Service{
		files:    watched,
		logger:   logger.With("component", "watcher"),
		onChange: onChange,
		watcher:  fileWatcher,
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	dirs := map[string]struct{}{}
	for file := range s.files {
		dir := filepath.Dir(file)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := s.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch path %s: %w", dir, err)
		}
		dirs[dir] = struct{}{}
	}
	s.logger.Info("file watcher started", "files", len(s.files))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("file watcher stopped")
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				s.logger.Error("file watcher error", "error", err)
			}
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, event fsnotify.Event) {
	path, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	if _, ok := s.files[path]; !ok {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	s.logger.Info("watched file changed", "path", path, "op", event.Op.String())
	s.onChange(ctx, path)
}
