package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/intent-arbiter/internal/heartbeat"
)

const (
	component       = "sweeper"
	defaultSchedule = "@every 10m"
	defaultTTL      = 24 * time.Hour
	keepalive       = "@every 1m"
)

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Pruner deletes sessions idle for longer than ttl.
type Pruner interface {
	Prune(ctx context.Context, ttl time.Duration) (int64, error)
}

type Service struct {
	pruner   Pruner
	schedule cron.Schedule
	expr     string
	ttl      time.Duration
	logger   *slog.Logger
	reporter heartbeat.Reporter
	failing  atomic.Bool
}

func New(pruner Pruner, expr string, ttl time.Duration, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	expr = strings.Join(strings.Fields(expr), " ")
	if expr == "" {
		expr = defaultSchedule
	}
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", expr, err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		pruner:   pruner,
		schedule: schedule,
		expr:     expr,
		ttl:      ttl,
		logger:   logger.With("component", component),
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

// Next reports when the sweep after from will run.
func (s *Service) Next(from time.Time) time.Time {
	return s.schedule.Next(from.UTC())
}

func (s *Service) Start(ctx context.Context) error {
	if s.pruner == nil {
		s.report(func(r heartbeat.Reporter) { r.Disabled(component, "no session store") })
		<-ctx.Done()
		return nil
	}
	runner := cron.New(cron.WithLocation(time.UTC), cron.WithParser(scheduleParser))
	runner.Schedule(s.schedule, cron.FuncJob(func() { s.Sweep(ctx) }))
	// Daily schedules would otherwise go stale between runs.
	if _, err := runner.AddFunc(keepalive, s.keepalive); err != nil {
		return fmt.Errorf("schedule sweeper keepalive: %w", err)
	}
	runner.Start()
	s.report(func(r heartbeat.Reporter) { r.Beat(component, "scheduled "+s.expr) })
	s.logger.Info("sweeper started", "schedule", s.expr, "ttl", s.ttl.String())

	<-ctx.Done()
	stopped := runner.Stop()
	<-stopped.Done()
	s.report(func(r heartbeat.Reporter) { r.Stopped(component, "stopped") })
	s.logger.Info("sweeper stopped")
	return nil
}

// Sweep runs one prune pass.
func (s *Service) Sweep(ctx context.Context) {
	removed, err := s.pruner.Prune(ctx, s.ttl)
	if err != nil {
		s.failing.Store(true)
		s.report(func(r heartbeat.Reporter) { r.Degrade(component, "prune failed", err) })
		s.logger.Error("sweep failed", "error", err)
		return
	}
	s.failing.Store(false)
	s.report(func(r heartbeat.Reporter) { r.Beat(component, fmt.Sprintf("pruned %d sessions", removed)) })
}

// keepalive refreshes the heartbeat between sweeps unless the last sweep
// failed.
func (s *Service) keepalive() {
	if s.failing.Load() {
		return
	}
	s.report(func(r heartbeat.Reporter) { r.Beat(component, "scheduled "+s.expr) })
}

func (s *Service) report(fn func(heartbeat.Reporter)) {
	if s.reporter != nil {
		fn(s.reporter)
	}
}
