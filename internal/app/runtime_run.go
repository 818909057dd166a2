package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/intent-arbiter/internal/heartbeat"
)

// Run serves HTTP and runs the flags watcher, the sweeper and the heartbeat
// monitor until ctx is cancelled or one of them fails.
func (r *Runtime) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", r.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	return r.serve(ctx, listener)
}

func (r *Runtime) serve(ctx context.Context, listener net.Listener) error {
	r.logger.Info("intent-arbiter starting", "addr", listener.Addr().String(), "llm_provider", r.cfg.LLMProvider)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runMonitored(groupCtx, r.heartbeat, "api", 20*time.Second, func(context.Context) error {
			err := r.httpServer.Serve(listener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	})
	if r.watcher != nil {
		group.Go(func() error {
			return runMonitored(groupCtx, r.heartbeat, "watcher", 20*time.Second, r.watcher.Start)
		})
	} else {
		r.heartbeat.Disabled("watcher", "no flags file")
	}
	group.Go(func() error {
		return runMonitored(groupCtx, r.heartbeat, "sweeper", 0, r.sweeper.Start)
	})
	group.Go(func() error {
		return r.monitor.Start(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		timeout := time.Duration(r.cfg.ShutdownTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// runMonitored reports component health around run: a beat on start, a
// periodic beat while it runs when beatInterval is set, then stopped or
// degraded depending on how run returned.
func runMonitored(
	ctx context.Context,
	reporter heartbeat.Reporter,
	component string,
	beatInterval time.Duration,
	run func(context.Context) error,
) error {
	if reporter == nil {
		return run(ctx)
	}
	reporter.Beat(component, "running")
	stop := beatEvery(ctx, beatInterval, func() { reporter.Beat(component, "running") })
	err := run(ctx)
	stop()

	switch {
	case err != nil && ctx.Err() == nil:
		reporter.Degrade(component, "component failed", err)
	default:
		reporter.Stopped(component, "stopped")
	}
	return err
}

// beatEvery calls beat on every tick until the returned stop func runs or ctx
// ends. A non-positive interval does nothing.
func beatEvery(ctx context.Context, interval time.Duration, beat func()) func() {
	if interval <= 0 {
		return func() {}
	}
	tickCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				beat()
			}
		}
	}()
	return cancel
}
