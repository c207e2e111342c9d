package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/falllog/pkg/config"
	"github.com/ccollicutt/falllog/pkg/serial"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a FallLog configuration file without reading any data.

Checks:
  - YAML syntax
  - Serial, sensor and analysis settings
  - Output options (plot requires save_csv)
  - Webhook, MQTT and InfluxDB endpoints
  - Serial port presence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Serial:   %s at %d baud, timeout %s\n", portOrUnset(cfg.Serial.Port), cfg.Serial.BaudRate, cfg.Serial.Timeout)
	fmt.Fprintf(w, "  Sensor:   ±%dg, default time scale %d us\n", cfg.Sensor.FullScaleRangeG, cfg.Sensor.DefaultTimeScaleMicros)
	fmt.Fprintf(w, "  Analysis: free fall < %.2f g for %d samples, impact > %.2f g, fall window %s\n",
		cfg.Analysis.FreefallThresholdG, cfg.Analysis.FreefallMinSamples,
		cfg.Analysis.ImpactThresholdG, cfg.Analysis.FallWindow)
	fmt.Fprintf(w, "  Output:   %s to %s (csv: %t, plot: %t)\n",
		cfg.Output.Format, cfg.Output.Directory, cfg.Output.SaveCSV, cfg.Output.Plot)

	fmt.Fprintf(w, "\nCollaborators:\n")
	fmt.Fprintf(w, "  Webhooks: %d\n", len(cfg.Webhooks))
	for i, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}
		fmt.Fprintf(w, "    %d. [%s] %s\n", i+1, wh.Trigger, name)
	}
	if cfg.MQTT != nil {
		fmt.Fprintf(w, "  MQTT:     %s (qos %d)\n", cfg.MQTT.Broker, cfg.MQTT.QoS)
	}
	if cfg.InfluxDB != nil {
		fmt.Fprintf(w, "  InfluxDB: %s org=%s bucket=%s\n", cfg.InfluxDB.URL, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket)
	}
	if cfg.MetricsFile != "" {
		fmt.Fprintf(w, "  Metrics:  %s\n", cfg.MetricsFile)
	}

	if cfg.Serial.Port != "" {
		checkPortPresent(cmd, cfg.Serial.Port)
	}

	return nil
}

func portOrUnset(port string) string {
	if port == "" {
		return "(port unset)"
	}
	return port
}

// checkPortPresent warns when the configured port is not attached.
func checkPortPresent(cmd *cobra.Command, port string) {
	w := cmd.OutOrStdout()

	ports, err := serial.AvailablePorts()
	if err != nil {
		fmt.Fprintf(w, "\nWarning: Cannot list serial ports: %v\n", err)
		return
	}
	for _, p := range ports {
		if p == port {
			fmt.Fprintf(w, "\nSerial port %s is present\n", port)
			return
		}
	}
	fmt.Fprintf(w, "\nWarning: Serial port %s is not present\n", port)
}
