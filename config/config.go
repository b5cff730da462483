package config

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/talkincode/toughwatch/internal/domain"
	"gopkg.in/yaml.v3"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"` // development|production
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type MonitorConfig struct {
	CheckInterval      int  `yaml:"check_interval" json:"check_interval"`       // seconds
	Timeout            int  `yaml:"timeout" json:"timeout"`                     // seconds, per probe
	HistoryDuration    int  `yaml:"history_duration" json:"history_duration"`   // hours
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

func (c MonitorConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c MonitorConfig) Retention() time.Duration {
	return time.Duration(c.HistoryDuration) * time.Hour
}

type ThresholdConfig struct {
	YellowResponseTime     float64 `yaml:"yellow_response_time" json:"yellow_response_time"` // seconds
	RedConsecutiveFailures int     `yaml:"red_consecutive_failures" json:"red_consecutive_failures"`
}

func (c ThresholdConfig) YellowLatency() time.Duration {
	return time.Duration(c.YellowResponseTime * float64(time.Second))
}

type AlertConfig struct {
	DesktopEnabled   bool     `yaml:"desktop_notifications" json:"desktop_notifications"`
	SoundEnabled     bool     `yaml:"sound_enabled" json:"sound_enabled"`
	SmsEnabled       bool     `yaml:"sms_enabled" json:"sms_enabled"`
	TwilioAccountSid string   `yaml:"twilio_account_sid" json:"twilio_account_sid"`
	TwilioAuthToken  string   `yaml:"twilio_auth_token" json:"twilio_auth_token"`
	TwilioFrom       string   `yaml:"twilio_from" json:"twilio_from"`
	TwilioTo         []string `yaml:"twilio_to" json:"twilio_to"`
}

type AppConfig struct {
	System     SysConfig        `yaml:"system" json:"system"`
	Web        WebConfig        `yaml:"web" json:"web"`
	Logger     LogConfig        `yaml:"logger" json:"logger"`
	Monitoring MonitorConfig    `yaml:"monitoring" json:"monitoring"`
	Thresholds ThresholdConfig  `yaml:"thresholds" json:"thresholds"`
	Services   []domain.Service `yaml:"services" json:"services"`
	Alerts     AlertConfig      `yaml:"alerts" json:"alerts"`
}

func (c *AppConfig) GetDataDir() string {
	return filepath.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetLogDir() string {
	return filepath.Join(c.System.Workdir, "logs")
}

// HistoryFile is the single persistent artifact of the monitor.
func (c *AppConfig) HistoryFile() string {
	return filepath.Join(c.GetDataDir(), "service_history.json")
}

func (c *AppConfig) EnsureDirs() error {
	for _, dir := range []string{c.System.Workdir, c.GetDataDir(), c.GetLogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create dir %s", dir)
		}
	}
	return nil
}

func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "toughwatch",
			Location: "Asia/Jakarta",
			Workdir:  "/var/toughwatch",
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 1901,
		},
		Logger: LogConfig{
			Mode:       "production",
			FileEnable: true,
			Filename:   "toughwatch.log",
		},
		Monitoring: MonitorConfig{
			CheckInterval:   60,
			Timeout:         10,
			HistoryDuration: 24,
		},
		Thresholds: ThresholdConfig{
			YellowResponseTime:     1.0,
			RedConsecutiveFailures: 3,
		},
		Alerts: AlertConfig{
			DesktopEnabled: true,
			SoundEnabled:   true,
		},
	}
}

// LoadConfig reads and validates the YAML configuration. A missing file is an
// error, monitoring with no declared services makes no sense.
func LoadConfig(cfile string) (*AppConfig, error) {
	data, err := os.ReadFile(cfile)
	if err != nil {
		return nil, errors.Wrapf(err, "read configuration %s", cfile)
	}
	cfg := DefaultAppConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse configuration %s", cfile)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func (c *AppConfig) applyEnvOverrides() {
	setEnvValue("TOUGHWATCH_SYSTEM_WORKDIR", func(v string) { c.System.Workdir = v })
	setEnvValue("TOUGHWATCH_SYSTEM_DEBUG", func(v string) { c.System.Debug = cast.ToBool(v) })
	setEnvValue("TOUGHWATCH_WEB_HOST", func(v string) { c.Web.Host = v })
	setEnvValue("TOUGHWATCH_WEB_PORT", func(v string) { c.Web.Port = cast.ToInt(v) })
	setEnvValue("TOUGHWATCH_LOGGER_MODE", func(v string) { c.Logger.Mode = v })
	setEnvValue("TOUGHWATCH_CHECK_INTERVAL", func(v string) { c.Monitoring.CheckInterval = cast.ToInt(v) })
	setEnvValue("TOUGHWATCH_PROBE_TIMEOUT", func(v string) { c.Monitoring.Timeout = cast.ToInt(v) })
	setEnvValue("TOUGHWATCH_SMS_ENABLED", func(v string) { c.Alerts.SmsEnabled = cast.ToBool(v) })
	setEnvValue("TOUGHWATCH_TWILIO_ACCOUNT_SID", func(v string) { c.Alerts.TwilioAccountSid = v })
	setEnvValue("TOUGHWATCH_TWILIO_AUTH_TOKEN", func(v string) { c.Alerts.TwilioAuthToken = v })
}

func setEnvValue(name string, set func(v string)) {
	if v := os.Getenv(name); v != "" {
		set(v)
	}
}

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodPatch:   true,
}

func (c *AppConfig) Validate() error {
	if c.System.Location != "" {
		if _, err := time.LoadLocation(c.System.Location); err != nil {
			return errors.Errorf("system.location: unknown time zone %q", c.System.Location)
		}
	}
	if c.Monitoring.CheckInterval <= 0 {
		return errors.New("monitoring.check_interval must be positive")
	}
	if c.Monitoring.Timeout <= 0 {
		return errors.New("monitoring.timeout must be positive")
	}
	if c.Monitoring.HistoryDuration <= 0 {
		return errors.New("monitoring.history_duration must be positive")
	}
	if c.Thresholds.YellowResponseTime <= 0 {
		return errors.New("thresholds.yellow_response_time must be positive")
	}
	if c.Thresholds.RedConsecutiveFailures < 1 {
		return errors.New("thresholds.red_consecutive_failures must be at least 1")
	}
	if len(c.Services) == 0 {
		return errors.New("no services configured")
	}
	seen := make(map[string]bool)
	for i := range c.Services {
		srv := &c.Services[i]
		if srv.Name == "" {
			return errors.Errorf("services[%d]: name is required", i)
		}
		if seen[srv.Name] {
			return errors.Errorf("service %q: duplicate name", srv.Name)
		}
		seen[srv.Name] = true
		u, err := url.Parse(srv.URL)
		if err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return errors.Errorf("service %q: invalid url %q", srv.Name, srv.URL)
		}
		if srv.Type == "" {
			srv.Type = domain.CheckTypeHTTP
		}
		if srv.Type != domain.CheckTypeHTTP && srv.Type != domain.CheckTypeAPI {
			return errors.Errorf("service %q: unknown type %q", srv.Name, srv.Type)
		}
		if srv.Method == "" {
			srv.Method = http.MethodGet
		}
		srv.Method = strings.ToUpper(srv.Method)
		if !validMethods[srv.Method] {
			return errors.Errorf("service %q: unknown method %q", srv.Name, srv.Method)
		}
		if srv.ExpectedStatus == 0 {
			srv.ExpectedStatus = http.StatusOK
		}
		if srv.ExpectedStatus < 100 || srv.ExpectedStatus > 599 {
			return errors.Errorf("service %q: expected_status %d out of range", srv.Name, srv.ExpectedStatus)
		}
	}
	if c.Alerts.SmsEnabled {
		if c.Alerts.TwilioAccountSid == "" || c.Alerts.TwilioAuthToken == "" {
			return errors.New("alerts.sms_enabled requires twilio_account_sid and twilio_auth_token")
		}
		if c.Alerts.TwilioFrom == "" || len(c.Alerts.TwilioTo) == 0 {
			return errors.New("alerts.sms_enabled requires twilio_from and at least one twilio_to number")
		}
	}
	return nil
}
