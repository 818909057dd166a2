package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"
	StateIdle     = "idle"
	StateUnknown  = "unknown"
)

// Reporter is implemented by the registry and handed to long-running
// services (http server, flags watcher, sweeper).
type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name       string    `json:"name"`
	State      string    `json:"state"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	LastBeatAt time.Time `json:"last_beat_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Snapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Overall     string            `json:"overall"`
	Components  []ComponentStatus `json:"components"`
}

// Ready reports whether the process can take turns: nothing degraded or
// stale, and at least one component reporting.
func (s Snapshot) Ready() bool {
	switch s.Overall {
	case StateHealthy, StateIdle:
		return true
	default:
		return false
	}
}

type component struct {
	state      string
	message    string
	err        string
	lastBeatAt time.Time
	updatedAt  time.Time
}

type Registry struct {
	mu         sync.RWMutex
	components map[string]component
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{components: map[string]component{}, now: time.Now}
}

func (r *Registry) Starting(name, message string) { r.set(name, StateStarting, message, nil, false) }
func (r *Registry) Beat(name, message string)     { r.set(name, StateHealthy, message, nil, true) }
func (r *Registry) Disabled(name, message string) { r.set(name, StateDisabled, message, nil, false) }
func (r *Registry) Stopped(name, message string)  { r.set(name, StateStopped, message, nil, false) }

func (r *Registry) Degrade(name, message string, err error) {
	r.set(name, StateDegraded, message, err, false)
}

func (r *Registry) set(name, state, message string, err error, beat bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.components[name]
	record.state = state
	record.message = strings.TrimSpace(message)
	record.err = ""
	if err != nil {
		record.err = strings.TrimSpace(err.Error())
	}
	record.updatedAt = now
	if beat || record.lastBeatAt.IsZero() {
		record.lastBeatAt = now
	}
	r.components[name] = record
}

// Snapshot reports every component. Healthy or starting components that
// have not beaten within staleAfter are reported stale; zero disables that.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now().UTC()
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]ComponentStatus, 0, len(r.components))
	for name, record := range r.components {
		status := ComponentStatus{
			Name:       name,
			State:      record.state,
			Message:    record.message,
			Error:      record.err,
			LastBeatAt: record.lastBeatAt,
			UpdatedAt:  record.updatedAt,
		}
		live := record.state == StateHealthy || record.state == StateStarting
		if staleAfter > 0 && live && now.Sub(record.lastBeatAt) > staleAfter {
			status.State = StateStale
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return Snapshot{GeneratedAt: now, Overall: overall(statuses), Components: statuses}
}

func overall(statuses []ComponentStatus) string {
	if len(statuses) == 0 {
		return StateUnknown
	}
	starting, healthy := false, false
	for _, status := range statuses {
		switch status.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateStarting:
			starting = true
		case StateHealthy:
			healthy = true
		}
	}
	switch {
	case starting:
		return StateStarting
	case healthy:
		return StateHealthy
	default:
		return StateIdle
	}
}
