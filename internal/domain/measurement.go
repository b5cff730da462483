package domain

import "time"

// Measurement is the outcome of a single probe of a single service.
// StatusCode is set only when an HTTP response actually arrived; Latency is
// zero when the request never completed a connection. Immutable once built.
type Measurement struct {
	Service    string        `json:"service"`
	Timestamp  time.Time     `json:"timestamp"`
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency"`
	StatusCode *int          `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// HistoryEntry is one persisted point of a service time series. Latency is
// in seconds, the unit of the data file.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	Latency   float64   `json:"latency"`
}
