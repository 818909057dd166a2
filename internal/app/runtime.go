package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/config"
	"github.com/dwizi/intent-arbiter/internal/flags"
	"github.com/dwizi/intent-arbiter/internal/heartbeat"
	"github.com/dwizi/intent-arbiter/internal/httpapi"
	"github.com/dwizi/intent-arbiter/internal/llm"
	"github.com/dwizi/intent-arbiter/internal/llm/anthropic"
	"github.com/dwizi/intent-arbiter/internal/llm/openai"
	"github.com/dwizi/intent-arbiter/internal/llm/safety"
	"github.com/dwizi/intent-arbiter/internal/resolver"
	"github.com/dwizi/intent-arbiter/internal/session"
	"github.com/dwizi/intent-arbiter/internal/store"
	"github.com/dwizi/intent-arbiter/internal/sweeper"
	"github.com/dwizi/intent-arbiter/internal/transcript"
	"github.com/dwizi/intent-arbiter/internal/watcher"
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *store.Store
	flags      *flags.Store
	arbiter    *clarify.Arbiter
	sessions   *session.Manager
	heartbeat  *heartbeat.Registry
	monitor    *heartbeat.Monitor
	httpServer *http.Server
	watcher    *watcher.Service
	sweeper    *sweeper.Service
}

// New wires the session pipeline. It opens the database but starts nothing;
// Run starts the background services.
func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := os.MkdirAll(cfg.TranscriptRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript root: %w", err)
	}

	catalog, err := resolver.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	flagStore, err := flags.NewStore(cfg.FlagsFile, cfg.Flags(), logger)
	if err != nil {
		return nil, err
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	arbiterCfg := cfg.Arbiter()
	arbiterCfg.Flags = flagStore.Current()
	arbiter := clarify.NewArbiter(arbiterCfg, NewClarifier(cfg, logger), logger)
	flagStore.OnChange(arbiter.SetFlags)

	manager := session.NewManager(
		sqlStore,
		catalog,
		clarify.NewHandler(arbiter, logger),
		transcript.New(cfg.TranscriptRoot),
		session.Config{FocusLatchMaxTurns: cfg.FocusLatchMaxTurns, ContextTurns: cfg.ContextTurns},
		logger,
	)

	registry := heartbeat.NewRegistry()
	flagStore.SetHeartbeatReporter(registry)
	sweep, err := sweeper.New(manager, cfg.SweepSchedule, cfg.SessionTTL(), logger)
	if err != nil {
		sqlStore.Close()
		return nil, err
	}
	sweep.SetHeartbeatReporter(registry)

	var fileWatcher *watcher.Service
	if flagStore.Path() != "" {
		fileWatcher, err = watcher.New([]string{flagStore.Path()}, logger, flagStore.HandleFileChange)
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
	}

	router := httpapi.NewRouter(httpapi.Dependencies{
		Config:   cfg,
		Sessions: manager,
		Store:    sqlStore,
		Flags:    flagStore,
		Health:   registry,
		Logger:   logger.With("component", "httpapi"),
	})

	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		store:     sqlStore,
		flags:     flagStore,
		arbiter:   arbiter,
		sessions:  manager,
		heartbeat: registry,
		monitor: heartbeat.NewMonitor(
			registry,
			time.Duration(cfg.HeartbeatTickSec)*time.Second,
			time.Duration(cfg.HeartbeatStaleSec)*time.Second,
			logger,
		),
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		watcher: fileWatcher,
		sweeper: sweep,
	}, nil
}

// NewClarifier builds the model client named by the config behind the
// per-minute call budget. Unknown or "none" providers disable the model
// fallback.
func NewClarifier(cfg config.Config, logger *slog.Logger) llm.Clarifier {
	return safety.Guard(providerClient(cfg, logger), safety.Config{
		CallsPerWindow: cfg.LLMCallsPerMin,
		Window:         time.Minute,
	})
}

func providerClient(cfg config.Config, logger *slog.Logger) llm.Clarifier {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "openai":
		return openai.New(openai.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout(),
		}, logger)
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout(),
		}, logger)
	default:
		return nil
	}
}

func (r *Runtime) Sessions() *session.Manager {
	return r.sessions
}

func (r *Runtime) Flags() *flags.Store {
	return r.flags
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
