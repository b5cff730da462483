package alert

import (
	"fmt"

	"github.com/talkincode/toughwatch/config"
	"github.com/talkincode/toughwatch/internal/domain"
	"go.uber.org/zap"
)

// Channel delivers one alert event. Implementations must be safe for
// concurrent use, the bus may dispatch several events at once.
type Channel interface {
	Name() string
	Deliver(evt domain.AlertEvent) error
}

// Dispatcher fans one event out to every configured channel. A failing or
// panicking channel is logged and contained, it never reaches the other
// channels or the polling loop.
type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(cfg config.AlertConfig) *Dispatcher {
	d := &Dispatcher{}
	if cfg.DesktopEnabled {
		d.channels = append(d.channels, &desktopChannel{})
	}
	if cfg.SoundEnabled {
		d.channels = append(d.channels, &soundChannel{})
	}
	if cfg.SmsEnabled {
		d.channels = append(d.channels, newSmsChannel(cfg))
	}
	return d
}

// NewDispatcherWith builds a dispatcher over an explicit channel set.
func NewDispatcherWith(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

func (d *Dispatcher) ChannelNames() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Dispatch delivers the event through every channel. Bound to the status
// transition topic on the bus.
func (d *Dispatcher) Dispatch(evt domain.AlertEvent) {
	title, _ := FormatAlert(evt)
	zap.L().Info("dispatching alert",
		zap.String("service", evt.Service),
		zap.String("severity", string(evt.Severity())),
		zap.String("title", title),
		zap.Int("channels", len(d.channels)))
	for _, ch := range d.channels {
		d.deliver(ch, evt)
	}
}

func (d *Dispatcher) deliver(ch Channel, evt domain.AlertEvent) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("alert channel panic",
				zap.String("channel", ch.Name()), zap.Any("error", r))
		}
	}()
	if err := ch.Deliver(evt); err != nil {
		zap.L().Error("alert delivery failed",
			zap.String("channel", ch.Name()),
			zap.String("service", evt.Service),
			zap.Error(err))
	}
}

// FormatAlert renders the notification title and message for an event.
func FormatAlert(evt domain.AlertEvent) (title, message string) {
	switch evt.To {
	case domain.StatusDown:
		return "Service Down: " + evt.Service,
			fmt.Sprintf("%s is not responding", evt.Service)
	case domain.StatusDegraded:
		return "Service Degraded: " + evt.Service,
			fmt.Sprintf("%s is experiencing slow response times", evt.Service)
	default:
		return "Service Restored: " + evt.Service,
			fmt.Sprintf("%s is back online", evt.Service)
	}
}
