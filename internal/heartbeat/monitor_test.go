package heartbeat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestMonitorEmitsTransitions(t *testing.T) {
	registry := NewRegistry()
	monitor := NewMonitor(registry, 10*time.Millisecond, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	transitions := make(chan Transition, 4)
	monitor.OnTransition(func(transition Transition) { transitions <- transition })

	registry.Beat("flags", "loaded")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = monitor.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(30 * time.Millisecond)
	registry.Degrade("flags", "reload failed", errors.New("bad yaml"))

	select {
	case transition := <-transitions:
		if transition.From != StateHealthy || transition.To != StateDegraded || transition.Error != "bad yaml" {
			t.Fatalf("unexpected transition %+v", transition)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected degraded transition")
	}
}
