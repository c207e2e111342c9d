package config

import (
	"os"
	"strconv"
	"time"

	"github.com/ccollicutt/falllog/pkg/serial"
	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// Default values for configuration.
const (
	DefaultRangeG             = 2
	DefaultFreefallThresholdG = 0.35
	DefaultFreefallMinSamples = 3
	DefaultImpactThresholdG   = 2.5
	DefaultFallWindow         = time.Second
	DefaultOutputDirectory    = "./output"
	DefaultWebhookTimeout     = 10 * time.Second
	DefaultMQTTTimeout        = 5 * time.Second
	DefaultInfluxTimeout      = 10 * time.Second
	DefaultInfluxMeasurement  = "acceleration"
	DefaultLogLevel           = "info"
)

// Environment variable names.
const (
	EnvSerialPort = "FALLLOG_SERIAL_PORT"
	EnvBaudRate   = "FALLLOG_BAUD_RATE"
	EnvOutputDir  = "FALLLOG_OUTPUT_DIR"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:       serial.DefaultBaudRate,
			Timeout:        serial.DefaultTimeout,
			ReadPoll:       serial.DefaultReadPoll,
			SettleDelay:    serial.DefaultSettleDelay,
			TriggerCommand: serial.DefaultTriggerCommand,
		},
		Sensor: SensorConfig{
			FullScaleRangeG:        DefaultRangeG,
			DefaultTimeScaleMicros: telemetry.DefaultTimeScaleMicros,
		},
		Analysis: AnalysisConfig{
			FreefallThresholdG: DefaultFreefallThresholdG,
			FreefallMinSamples: DefaultFreefallMinSamples,
			ImpactThresholdG:   DefaultImpactThresholdG,
			FallWindow:         DefaultFallWindow,
		},
		Output: OutputConfig{
			Directory: DefaultOutputDirectory,
			Format:    OutputFormatText,
		},
		LogLevel: DefaultLogLevel,
	}
}

// ApplyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvironmentOverrides() {
	if port := os.Getenv(EnvSerialPort); port != "" {
		c.Serial.Port = port
	}
	if baud := os.Getenv(EnvBaudRate); baud != "" {
		if v, err := strconv.Atoi(baud); err == nil {
			c.Serial.BaudRate = v
		}
	}
	if dir := os.Getenv(EnvOutputDir); dir != "" {
		c.Output.Directory = dir
	}
}
