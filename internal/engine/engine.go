package engine

import (
	"sync"
	"time"

	"github.com/talkincode/toughwatch/internal/domain"
)

// Thresholds hold the classification knobs: a successful probe slower than
// YellowLatency degrades a service, RedConsecutiveFailures failed probes in
// a row take it down.
type Thresholds struct {
	YellowLatency          time.Duration
	RedConsecutiveFailures int
}

// Engine owns the per-service states and is their only writer. Reads go
// through copies, so holders of a snapshot never observe later mutations.
type Engine struct {
	mu     sync.RWMutex
	th     Thresholds
	states map[string]*domain.ServiceState
}

// New seeds one Operational state per service. Seeds from a previous run
// override the default so a restart does not re-announce a known outage.
func New(th Thresholds, services []domain.Service, seeds map[string]domain.ServiceState) *Engine {
	if th.RedConsecutiveFailures < 1 {
		th.RedConsecutiveFailures = 1
	}
	e := &Engine{th: th, states: make(map[string]*domain.ServiceState, len(services))}
	for _, srv := range services {
		st := &domain.ServiceState{Service: srv.Name, Status: domain.StatusOperational}
		if seed, ok := seeds[srv.Name]; ok && seed.Status.Valid() {
			st.Status = seed.Status
			st.ConsecutiveFailures = seed.ConsecutiveFailures
		}
		e.states[srv.Name] = st
	}
	return e
}

// Apply folds one measurement into the service state. Success resets the
// failure counter and classifies by latency; a failure increments it and
// flips the service down once the counter reaches the threshold, below it
// the previous classification stands. The returned transition is non-nil
// only when the stored status actually changed.
func (e *Engine) Apply(m domain.Measurement) (domain.ServiceState, *domain.Transition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[m.Service]
	if !ok {
		st = &domain.ServiceState{Service: m.Service, Status: domain.StatusOperational}
		e.states[m.Service] = st
	}
	prev := st.Status
	if m.Success {
		st.ConsecutiveFailures = 0
		if m.Latency > e.th.YellowLatency {
			st.Status = domain.StatusDegraded
		} else {
			st.Status = domain.StatusOperational
		}
	} else {
		st.ConsecutiveFailures++
		if st.ConsecutiveFailures >= e.th.RedConsecutiveFailures {
			st.Status = domain.StatusDown
		}
	}
	mc := m
	st.LastMeasurement = &mc
	var tr *domain.Transition
	if st.Status != prev {
		st.LastTransition = m.Timestamp
		tr = &domain.Transition{From: prev, To: st.Status}
	}
	return copyState(st), tr
}

// State returns a copy of one service state.
func (e *Engine) State(name string) (domain.ServiceState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.states[name]
	if !ok {
		return domain.ServiceState{}, false
	}
	return copyState(st), true
}

// Snapshot returns a copy of every service state keyed by name.
func (e *Engine) Snapshot() map[string]domain.ServiceState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]domain.ServiceState, len(e.states))
	for name, st := range e.states {
		out[name] = copyState(st)
	}
	return out
}

func copyState(st *domain.ServiceState) domain.ServiceState {
	out := *st
	if st.LastMeasurement != nil {
		m := *st.LastMeasurement
		out.LastMeasurement = &m
	}
	return out
}
