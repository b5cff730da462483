package metrics

import (
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
	"go.uber.org/zap"
)

// Gauge names recorded by the system monitor job.
const (
	SystemCPUUse  = "system_cpuuse"
	SystemMemUse  = "system_memuse"
	ProcessCPUUse = "toughwatch_cpuuse"
	ProcessMemUse = "toughwatch_memuse"
)

type GaugePoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

var (
	mu      sync.RWMutex
	storage tstorage.Storage
)

// InitMetrics opens the in-memory gauge store. The storage engine drops
// samples older than retention on its own.
func InitMetrics(retention time.Duration) error {
	st, err := tstorage.NewStorage(
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(retention),
	)
	if err != nil {
		return err
	}
	mu.Lock()
	storage = st
	mu.Unlock()
	return nil
}

// SetGauge records one sample of the named gauge at the current time.
// Calls before InitMetrics are dropped silently.
func SetGauge(name string, value float64) {
	mu.RLock()
	st := storage
	mu.RUnlock()
	if st == nil {
		return
	}
	err := st.InsertRows([]tstorage.Row{
		{Metric: name, DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: value}},
	})
	if err != nil {
		zap.L().Warn("metrics insert failed", zap.String("metric", name), zap.Error(err))
	}
}

// LatestGauge returns the most recent sample of the named gauge.
func LatestGauge(name string) (GaugePoint, bool) {
	points := RangeGauge(name, time.Now().Add(-time.Hour))
	if len(points) == 0 {
		return GaugePoint{}, false
	}
	return points[len(points)-1], true
}

// RangeGauge returns samples since the given time in ascending order.
func RangeGauge(name string, since time.Time) []GaugePoint {
	mu.RLock()
	st := storage
	mu.RUnlock()
	if st == nil {
		return nil
	}
	points, err := st.Select(name, nil, since.Unix(), time.Now().Unix()+1)
	if err != nil {
		return nil
	}
	out := make([]GaugePoint, 0, len(points))
	for _, p := range points {
		out = append(out, GaugePoint{Timestamp: p.Timestamp, Value: p.Value})
	}
	return out
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if storage != nil {
		if err := storage.Close(); err != nil {
			zap.L().Warn("metrics close failed", zap.Error(err))
		}
		storage = nil
	}
}
