package app

import (
	"context"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/toughwatch/config"
	"github.com/talkincode/toughwatch/internal/alert"
	"github.com/talkincode/toughwatch/internal/domain"
	"github.com/talkincode/toughwatch/internal/engine"
	"github.com/talkincode/toughwatch/internal/history"
	"github.com/talkincode/toughwatch/internal/monitor"
)

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// EngineProvider provides the status engine
type EngineProvider interface {
	Engine() *engine.Engine
}

// HistoryProvider provides the history store
type HistoryProvider interface {
	History() *history.Store
}

// MonitorProvider provides the polling monitor
type MonitorProvider interface {
	Monitor() *monitor.Monitor
}

// DispatcherProvider provides the alert dispatcher
type DispatcherProvider interface {
	Dispatcher() *alert.Dispatcher
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// BusProvider provides the event bus
type BusProvider interface {
	Bus() EventBus.Bus
}

// AppContext combines all provider interfaces for full application context
// Handlers should depend on specific providers or this combined interface
type AppContext interface {
	ConfigProvider
	EngineProvider
	HistoryProvider
	MonitorProvider
	DispatcherProvider
	SchedulerProvider
	BusProvider

	// RunCycleNow triggers one polling cycle immediately
	RunCycleNow(ctx context.Context) monitor.CycleStats
	// TestAlert pushes a synthetic event through the alert channels
	TestAlert(service string, to domain.Status) domain.AlertEvent
}
