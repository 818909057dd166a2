package flags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/heartbeat"
)

// overrides mirrors clarify.Flags with optional fields so a file only changes
// the switches it names.
type overrides struct {
	LLMFallbackEnabled             *bool `yaml:"llm_fallback_enabled"`
	ContextRetryEnabled            *bool `yaml:"context_retry_enabled"`
	AutoExecuteEnabled             *bool `yaml:"auto_execute_enabled"`
	SelectionContinuityLaneEnabled *bool `yaml:"selection_continuity_lane_enabled"`
}

// Parse overlays YAML overrides onto base.
func Parse(data []byte, base clarify.Flags) (clarify.Flags, error) {
	var file overrides
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("decode flags: %w", err)
	}
	result := base
	apply(&result.LLMFallbackEnabled, file.LLMFallbackEnabled)
	apply(&result.ContextRetryEnabled, file.ContextRetryEnabled)
	apply(&result.AutoExecuteEnabled, file.AutoExecuteEnabled)
	apply(&result.SelectionContinuityLaneEnabled, file.SelectionContinuityLaneEnabled)
	return result, nil
}

func apply(target *bool, value *bool) {
	if value != nil {
		*target = *value
	}
}

// Store holds the live flag set. Env values are the base; the optional file
// overrides them and is re-read on change.
type Store struct {
	mu          sync.RWMutex
	path        string
	base        clarify.Flags
	current     clarify.Flags
	subscribers []func(clarify.Flags)
	logger      *slog.Logger
	reporter    heartbeat.Reporter
}

func NewStore(path string, base clarify.Flags, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := &Store{
		path:    strings.TrimSpace(path),
		base:    base,
		current: base,
		logger:  logger.With("component", "flags"),
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Current() clarify.Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers fn to receive every reloaded flag set.
func (s *Store) OnChange(fn func(clarify.Flags)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Reload re-reads the file. A missing file means env defaults only.
func (s *Store) Reload() error {
	next := s.base
	if s.path != "" {
		data, err := os.ReadFile(s.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("read flags file %s: %w", s.path, err)
		default:
			next, err = Parse(data, s.base)
			if err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	changed := next != s.current
	s.current = next
	subscribers := append(([]func(clarify.Flags))(nil), s.subscribers...)
	s.mu.Unlock()

	if changed {
		s.logger.Info("feature flags updated",
			"llm_fallback", next.LLMFallbackEnabled,
			"context_retry", next.ContextRetryEnabled,
			"auto_execute", next.AutoExecuteEnabled,
			"continuity_lane", next.SelectionContinuityLaneEnabled,
		)
		for _, fn := range subscribers {
			fn(next)
		}
	}
	return nil
}

func (s *Store) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

// HandleFileChange is the watcher callback. A bad edit keeps the previous
// flags in place.
func (s *Store) HandleFileChange(_ context.Context, path string) {
	if err := s.Reload(); err != nil {
		s.logger.Error("flags reload failed", "path", path, "error", err)
		if s.reporter != nil {
			s.reporter.Degrade("flags", "reload failed", err)
		}
		return
	}
	if s.reporter != nil {
		s.reporter.Beat("flags", "reloaded")
	}
}
