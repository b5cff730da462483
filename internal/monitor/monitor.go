package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/panjf2000/ants/v2"
	"github.com/talkincode/toughwatch/config"
	"github.com/talkincode/toughwatch/internal/domain"
	"github.com/talkincode/toughwatch/internal/engine"
	"github.com/talkincode/toughwatch/internal/history"
	"github.com/talkincode/toughwatch/internal/probe"
	"github.com/talkincode/toughwatch/pkg/common"
	"go.uber.org/zap"
)

// TopicStatusTransition carries domain.AlertEvent values on the bus.
const TopicStatusTransition = "service.status.transition"

// CycleStats summarizes one polling cycle.
type CycleStats struct {
	Checked     int           `json:"checked"`
	Failures    int           `json:"failures"`
	Transitions int           `json:"transitions"`
	Evicted     int           `json:"evicted"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Monitor drives the polling loop: every check_interval it probes each
// service once on a fixed-size worker pool, feeds the results through the
// status engine into history, and publishes transitions on the bus.
type Monitor struct {
	services  []domain.Service
	probers   map[string]probe.Prober
	engine    *engine.Engine
	store     *history.Store
	bus       EventBus.Bus
	pool      *ants.Pool
	interval  time.Duration
	retention time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{}
	done      chan struct{}

	// serializes cycles so a manual trigger cannot overlap the loop
	cycleMu sync.Mutex
}

func New(cfg *config.AppConfig, eng *engine.Engine, store *history.Store, bus EventBus.Bus) (*Monitor, error) {
	probers, err := probe.NewProbers(cfg.Services, probe.Options{
		Timeout:            cfg.Monitoring.ProbeTimeout(),
		InsecureSkipVerify: cfg.Monitoring.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	size := len(cfg.Services)
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		services:  cfg.Services,
		probers:   probers,
		engine:    eng,
		store:     store,
		bus:       bus,
		pool:      pool,
		interval:  cfg.Monitoring.Interval(),
		retention: cfg.Monitoring.Retention(),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start launches the polling loop. The first cycle runs immediately.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

func (m *Monitor) run() {
	defer close(m.done)
	zap.L().Info("service monitor started",
		zap.Int("services", len(m.services)),
		zap.Duration("interval", m.interval))
	m.RunCycle(context.Background())
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// a tick queued during an overrun can race the stop signal
			select {
			case <-m.stopped:
				return
			default:
			}
			// inline, so an overrun delays the next tick instead of
			// overlapping it
			m.RunCycle(context.Background())
		case <-m.stopped:
			return
		}
	}
}

// Stop halts the loop after the cycle in progress, if any, has finished.
// In-flight probes run to completion or to their timeout.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopped)
		<-m.done
		m.pool.Release()
		zap.L().Info("service monitor stopped")
	})
}

// RunCycle probes every service once and waits for all results. Probes run
// concurrently, bounded by the pool, one slot per service. Cycles never
// overlap, concurrent callers queue.
func (m *Monitor) RunCycle(ctx context.Context) CycleStats {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	start := time.Now()
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		failures    int
		transitions int
	)
	for _, srv := range m.services {
		srv := srv
		wg.Add(1)
		err := m.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("probe panic",
						zap.String("service", srv.Name), zap.Any("error", r))
				}
			}()
			meas := m.probers[srv.Name].Probe(ctx, srv)
			st, tr := m.engine.Apply(meas)
			m.store.Append(srv.Name, st, domain.HistoryEntry{
				Timestamp: meas.Timestamp,
				Status:    st.Status,
				Latency:   meas.Latency.Seconds(),
			})
			mu.Lock()
			if !meas.Success {
				failures++
			}
			if tr != nil {
				transitions++
			}
			mu.Unlock()
			if tr != nil {
				m.publish(meas, *tr)
			}
		})
		if err != nil {
			wg.Done()
			zap.L().Error("probe submit failed",
				zap.String("service", srv.Name), zap.Error(err))
		}
	}
	wg.Wait()
	evicted := m.store.EvictOlderThan(time.Now().Add(-m.retention))
	if err := m.store.Flush(); err != nil {
		zap.L().Error("history flush failed", zap.Error(err))
	}
	stats := CycleStats{
		Checked:     len(m.services),
		Failures:    failures,
		Transitions: transitions,
		Evicted:     evicted,
		Elapsed:     time.Since(start),
	}
	zap.L().Debug("poll cycle finished",
		zap.Int("checked", stats.Checked),
		zap.Int("failures", stats.Failures),
		zap.Int("transitions", stats.Transitions),
		zap.Duration("elapsed", stats.Elapsed))
	return stats
}

func (m *Monitor) publish(meas domain.Measurement, tr domain.Transition) {
	evt := domain.AlertEvent{
		ID:          common.UUIDint64(),
		Service:     meas.Service,
		From:        tr.From,
		To:          tr.To,
		Timestamp:   meas.Timestamp,
		Measurement: meas,
	}
	zap.L().Info("service status changed",
		zap.String("service", evt.Service),
		zap.String("from", string(evt.From)),
		zap.String("to", string(evt.To)),
		zap.String("error", meas.Error))
	m.bus.Publish(TopicStatusTransition, evt)
}
