package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	From      string `json:"from"`
	To        string `json:"to"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Monitor polls the registry and logs component state changes.
type Monitor struct {
	registry   *Registry
	interval   time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
	notify     func(Transition)
}

func NewMonitor(registry *Registry, interval, staleAfter time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		registry:   registry,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger.With("component", "heartbeat"),
	}
}

// OnTransition registers fn to run after each logged transition.
func (m *Monitor) OnTransition(fn func(Transition)) {
	m.notify = fn
}

func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	previous := map[string]string{}
	for {
		m.evaluate(m.registry.Snapshot(m.staleAfter), previous)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) evaluate(snapshot Snapshot, previous map[string]string) {
	for _, status := range snapshot.Components {
		before, seen := previous[status.Name]
		previous[status.Name] = status.State
		if !seen || before == status.State {
			continue
		}
		transition := Transition{
			Component: status.Name,
			From:      before,
			To:        status.State,
			Message:   status.Message,
			Error:     status.Error,
		}
		level := slog.LevelInfo
		if status.State == StateDegraded || status.State == StateStale {
			level = slog.LevelWarn
		}
		m.logger.Log(context.Background(), level, "component state changed",
			"name", transition.Component,
			"from", transition.From,
			"to", transition.To,
			"error", transition.Error,
		)
		if m.notify != nil {
			m.notify(transition)
		}
	}
}
