package alert

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/talkincode/toughwatch/config"
	"github.com/talkincode/toughwatch/internal/domain"
)

type recordChannel struct {
	mu     sync.Mutex
	name   string
	events []domain.AlertEvent
	err    error
	panics bool
}

func (c *recordChannel) Name() string { return c.name }

func (c *recordChannel) Deliver(evt domain.AlertEvent) error {
	if c.panics {
		panic("channel exploded")
	}
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
	return c.err
}

func (c *recordChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func downEvent() domain.AlertEvent {
	return domain.AlertEvent{
		ID:        1,
		Service:   "api",
		From:      domain.StatusOperational,
		To:        domain.StatusDown,
		Timestamp: time.Now(),
	}
}

func TestDispatchFansOut(t *testing.T) {
	a := &recordChannel{name: "a"}
	b := &recordChannel{name: "b"}
	d := NewDispatcherWith(a, b)

	d.Dispatch(downEvent())
	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("deliveries a=%d b=%d, want 1 each", a.count(), b.count())
	}
}

func TestFailingChannelDoesNotStopOthers(t *testing.T) {
	bad := &recordChannel{name: "bad", err: errors.New("no sound device")}
	good := &recordChannel{name: "good"}
	d := NewDispatcherWith(bad, good)

	d.Dispatch(downEvent())
	if good.count() != 1 {
		t.Fatalf("deliveries after failing channel = %d, want 1", good.count())
	}
}

func TestPanickingChannelContained(t *testing.T) {
	boom := &recordChannel{name: "boom", panics: true}
	good := &recordChannel{name: "good"}
	d := NewDispatcherWith(boom, good)

	d.Dispatch(downEvent())
	if good.count() != 1 {
		t.Fatalf("deliveries after panicking channel = %d, want 1", good.count())
	}
}

func TestSeverityMapping(t *testing.T) {
	cases := []struct {
		to   domain.Status
		want domain.AlertSeverity
	}{
		{domain.StatusDown, domain.SeverityCritical},
		{domain.StatusDegraded, domain.SeverityWarning},
		{domain.StatusOperational, domain.SeverityInfo},
	}
	for _, tc := range cases {
		evt := domain.AlertEvent{To: tc.to}
		if got := evt.Severity(); got != tc.want {
			t.Errorf("severity(%s) = %s, want %s", tc.to, got, tc.want)
		}
	}
}

func TestFormatAlert(t *testing.T) {
	cases := []struct {
		to          domain.Status
		title, body string
	}{
		{domain.StatusDown, "Service Down: api", "api is not responding"},
		{domain.StatusDegraded, "Service Degraded: api", "api is experiencing slow response times"},
		{domain.StatusOperational, "Service Restored: api", "api is back online"},
	}
	for _, tc := range cases {
		title, body := FormatAlert(domain.AlertEvent{Service: "api", To: tc.to})
		if title != tc.title {
			t.Errorf("title(%s) = %q, want %q", tc.to, title, tc.title)
		}
		if body != tc.body {
			t.Errorf("body(%s) = %q, want %q", tc.to, body, tc.body)
		}
	}
}

func TestSmsSkipsInfo(t *testing.T) {
	ch := newSmsChannel(config.AlertConfig{
		TwilioAccountSid: "AC123",
		TwilioAuthToken:  "token",
		TwilioFrom:       "+15550000000",
		TwilioTo:         []string{"+15551111111"},
	})
	evt := domain.AlertEvent{Service: "api", From: domain.StatusDown, To: domain.StatusOperational}
	if err := ch.Deliver(evt); err != nil {
		t.Fatalf("info severity must be dropped without network traffic: %v", err)
	}
}

func TestChannelSetFromConfig(t *testing.T) {
	d := NewDispatcher(config.AlertConfig{DesktopEnabled: true, SoundEnabled: true})
	if got, want := d.ChannelNames(), []string{"desktop", "sound"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("channels = %v, want %v", got, want)
	}

	d = NewDispatcher(config.AlertConfig{
		SmsEnabled:       true,
		TwilioAccountSid: "AC123",
		TwilioAuthToken:  "token",
		TwilioFrom:       "+15550000000",
		TwilioTo:         []string{"+15551111111"},
	})
	if got, want := d.ChannelNames(), []string{"sms"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("channels = %v, want %v", got, want)
	}
}
