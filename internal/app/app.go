package app

import (
	"context"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/toughwatch/config"
	"github.com/talkincode/toughwatch/internal/alert"
	"github.com/talkincode/toughwatch/internal/domain"
	"github.com/talkincode/toughwatch/internal/engine"
	"github.com/talkincode/toughwatch/internal/history"
	"github.com/talkincode/toughwatch/internal/monitor"
	"github.com/talkincode/toughwatch/pkg/common"
	"github.com/talkincode/toughwatch/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Application struct {
	appConfig  *config.AppConfig
	bus        EventBus.Bus
	engine     *engine.Engine
	store      *history.Store
	monitor    *monitor.Monitor
	dispatcher *alert.Dispatcher
	sched      *cron.Cron
}

// Ensure Application implements all interfaces
var (
	_ ConfigProvider     = (*Application)(nil)
	_ EngineProvider     = (*Application)(nil)
	_ HistoryProvider    = (*Application)(nil)
	_ MonitorProvider    = (*Application)(nil)
	_ DispatcherProvider = (*Application)(nil)
	_ SchedulerProvider  = (*Application)(nil)
	_ BusProvider        = (*Application)(nil)
	_ AppContext         = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) Engine() *engine.Engine {
	return a.engine
}

func (a *Application) History() *history.Store {
	return a.store
}

func (a *Application) Monitor() *monitor.Monitor {
	return a.monitor
}

func (a *Application) Dispatcher() *alert.Dispatcher {
	return a.dispatcher
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

func (a *Application) Init(cfg *config.AppConfig) error {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	a.initLogger(cfg)

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	if err := metrics.InitMetrics(cfg.Monitoring.Retention()); err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	a.store, err = history.Open(cfg.HistoryFile(), cfg.Monitoring.Retention())
	if err != nil {
		return err
	}

	// Resume from the last persisted classification so a restart does not
	// re-announce outages that were already alerted.
	a.engine = engine.New(engine.Thresholds{
		YellowLatency:          cfg.Thresholds.YellowLatency(),
		RedConsecutiveFailures: cfg.Thresholds.RedConsecutiveFailures,
	}, cfg.Services, a.store.SeedStates())

	a.bus = EventBus.New()
	a.dispatcher = alert.NewDispatcher(cfg.Alerts)
	if err := a.bus.SubscribeAsync(monitor.TopicStatusTransition, a.dispatcher.Dispatch, false); err != nil {
		return err
	}

	a.monitor, err = monitor.New(cfg, a.engine, a.store, a.bus)
	if err != nil {
		return err
	}

	a.initJob()

	zap.S().Infof("application initialized, %d services, alert channels %v",
		len(cfg.Services), a.dispatcher.ChannelNames())
	return nil
}

func (a *Application) initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.System.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.GetLogDir(), cfg.Logger.Filename),
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

// Start launches the polling loop. Background jobs are already running,
// initJob starts the cron scheduler.
func (a *Application) Start() {
	a.monitor.Start()
}

// RunCycleNow triggers one polling cycle immediately
func (a *Application) RunCycleNow(ctx context.Context) monitor.CycleStats {
	return a.monitor.RunCycle(ctx)
}

// TestAlert pushes a synthetic event through the alert channels so an
// operator can verify delivery end to end.
func (a *Application) TestAlert(service string, to domain.Status) domain.AlertEvent {
	from := domain.StatusOperational
	if to == domain.StatusOperational {
		from = domain.StatusDown
	}
	evt := domain.AlertEvent{
		ID:        common.UUIDint64(),
		Service:   service,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
	}
	a.dispatcher.Dispatch(evt)
	return evt
}

// Release releases application resources
func (a *Application) Release() {
	if a.monitor != nil {
		a.monitor.Stop()
	}

	if a.sched != nil {
		ctx := a.sched.Stop()
		<-ctx.Done()
	}

	if a.bus != nil {
		a.bus.WaitAsync()
	}

	if a.store != nil {
		if err := a.store.Flush(); err != nil {
			zap.L().Error("final history flush failed", zap.Error(err))
		}
	}

	metrics.Close()
	_ = zap.L().Sync()
}
