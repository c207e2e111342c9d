package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when set, otherwise returns validated defaults
// with environment overrides applied.
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if path != "" {
		return Load(ctx, path)
	}
	cfg := DefaultConfig()
	cfg.ApplyEnvironmentOverrides()
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks a configuration for errors and fills optional defaults.
func Validate(cfg *Config) error {
	if err := validateSerial(&cfg.Serial); err != nil {
		return fmt.Errorf("serial: %w", err)
	}

	if err := validateSensor(&cfg.Sensor); err != nil {
		return fmt.Errorf("sensor: %w", err)
	}

	if err := validateAnalysis(&cfg.Analysis); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	if err := validateOutput(&cfg.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	if cfg.MQTT != nil {
		if err := validateMQTT(cfg.MQTT); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if cfg.InfluxDB != nil {
		if err := validateInflux(cfg.InfluxDB); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "":
		cfg.LogLevel = DefaultLogLevel
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: invalid level %q (must be debug, info, warn or error)", cfg.LogLevel)
	}

	return nil
}

func validateSerial(s *SerialConfig) error {
	if s.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", s.BaudRate)
	}
	if s.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if s.ReadPoll <= 0 {
		return errors.New("read_poll must be positive")
	}
	if s.ReadPoll > s.Timeout {
		return fmt.Errorf("read_poll (%s) must not exceed timeout (%s)", s.ReadPoll, s.Timeout)
	}
	if s.SettleDelay < 0 {
		return errors.New("settle_delay must not be negative")
	}
	if strings.TrimSpace(s.TriggerCommand) == "" {
		return errors.New("trigger_command is required")
	}
	return nil
}

func validateSensor(s *SensorConfig) error {
	if !telemetry.IsSupportedRange(s.FullScaleRangeG) {
		return fmt.Errorf("full_scale_range_g must be one of %v, got %d",
			telemetry.SupportedRanges(), s.FullScaleRangeG)
	}
	if s.DefaultTimeScaleMicros <= 0 {
		return fmt.Errorf("default_time_scale_us must be positive, got %d", s.DefaultTimeScaleMicros)
	}
	return nil
}

func validateAnalysis(a *AnalysisConfig) error {
	if a.FreefallThresholdG <= 0 {
		return errors.New("freefall_threshold_g must be positive")
	}
	if a.FreefallMinSamples < 1 {
		return errors.New("freefall_min_samples must be >= 1")
	}
	if a.ImpactThresholdG <= a.FreefallThresholdG {
		return fmt.Errorf("impact_threshold_g (%g) must exceed freefall_threshold_g (%g)",
			a.ImpactThresholdG, a.FreefallThresholdG)
	}
	if a.FallWindow <= 0 {
		return errors.New("fall_window must be positive")
	}
	return nil
}

func validateOutput(o *OutputConfig) error {
	switch o.Format {
	case "":
		o.Format = OutputFormatText
	case OutputFormatText, OutputFormatJSON:
	default:
		return fmt.Errorf("invalid format %q (must be text or json)", o.Format)
	}
	if (o.SaveCSV || o.Plot) && o.Directory == "" {
		return errors.New("directory is required when save_csv or plot is enabled")
	}
	if o.Plot && !o.SaveCSV {
		return errors.New("plot requires save_csv (the plot plugin reads the CSV file)")
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	if err := validateHTTPURL(wh.URL); err != nil {
		return err
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	// Validate trigger if specified
	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnData, WebhookTriggerAlways, WebhookTriggerNever:
			// Valid
		default:
			return fmt.Errorf("invalid trigger %q (must be on_data, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnData
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

func validateMQTT(m *MQTTConfig) error {
	if m.Broker == "" {
		return errors.New("broker is required")
	}
	m.Broker = expandEnvVar(m.Broker)

	u, err := url.Parse(m.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker: %w", err)
	}
	switch u.Scheme {
	case "", "mqtt", "tcp", "ssl", "tls", "ws", "wss":
	default:
		return fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("broker must have a host")
	}
	if m.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", m.QoS)
	}
	if m.Timeout <= 0 {
		m.Timeout = DefaultMQTTTimeout
	}
	return nil
}

func validateInflux(c *InfluxConfig) error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	if err := validateHTTPURL(c.URL); err != nil {
		return err
	}
	if c.Org == "" {
		return errors.New("org is required")
	}
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}
	c.Token = expandEnvVar(c.Token)
	if c.Measurement == "" {
		c.Measurement = DefaultInfluxMeasurement
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultInfluxTimeout
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	// Handle ${VAR} format
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}

	// Handle $VAR format (no braces)
	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		varName := s[1:]
		return os.Getenv(varName)
	}

	return s
}
