package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/falllog/pkg/config"
	"github.com/ccollicutt/falllog/pkg/output"
	"github.com/ccollicutt/falllog/pkg/serial"
)

// ReadOptions holds command-line options for the read command.
type ReadOptions struct {
	SessionOptions

	BaudRate  int
	Timeout   string
	Trigger   string
	ListPorts bool
}

// NewReadCommand creates the read command.
func NewReadCommand() *cobra.Command {
	opts := &ReadOptions{}

	cmd := &cobra.Command{
		Use:   "read [port]",
		Short: "Download fall data from the logger over a serial port",
		Long: `Open the serial port, wait for the board to settle, send the trigger
command and collect the fall data the logger dumps from its EEPROM.

The port defaults to serial.port in the config file or $FALLLOG_SERIAL_PORT.

Collection ends at the end-of-data marker or when the timeout expires.

Exit codes:
  0 - Samples collected
  1 - No valid data received
  2 - Configuration or runtime error`,
		Example: `  falllog read /dev/ttyUSB0
  falllog read COM3 --baud 115200 --save-csv
  falllog read --list-ports`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, args, opts)
		},
	}

	addSessionFlags(cmd, &opts.SessionOptions)
	cmd.Flags().IntVarP(&opts.BaudRate, "baud", "b", 0, "Baud rate, overrides the config file")
	cmd.Flags().StringVarP(&opts.Timeout, "timeout", "t", "", "Response timeout (e.g. 10s), overrides the config file")
	cmd.Flags().StringVar(&opts.Trigger, "trigger", "", "Trigger command sent to the logger")
	cmd.Flags().BoolVar(&opts.ListPorts, "list-ports", false, "List available serial ports and exit")

	return cmd
}

func runRead(cmd *cobra.Command, args []string, opts *ReadOptions) error {
	ctx := commandContext(cmd)

	if opts.ListPorts {
		return listPorts(cmd)
	}

	cfg, err := loadSessionConfig(ctx, &opts.SessionOptions)
	if err != nil {
		return err
	}

	serialOpts, err := serialOptions(cfg.Serial, args, opts)
	if err != nil {
		return err
	}

	p, err := newPipeline(cmd, cfg, &opts.SessionOptions)
	if err != nil {
		return err
	}

	dev, err := serial.Open(serialOpts, p.logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	src, err := dev.Request(ctx)
	if err != nil {
		return fmt.Errorf("requesting data: %w", err)
	}

	report, err := p.process(ctx, serialOpts.Name, src)
	if err != nil {
		return err
	}

	return p.finish([]*output.Report{report})
}

// serialOptions resolves the exchange parameters from config, args and flags.
func serialOptions(sc config.SerialConfig, args []string, opts *ReadOptions) (serial.Options, error) {
	so := serial.Options{
		Name:           sc.Port,
		BaudRate:       sc.BaudRate,
		Timeout:        sc.Timeout,
		ReadPoll:       sc.ReadPoll,
		SettleDelay:    sc.SettleDelay,
		TriggerCommand: sc.TriggerCommand,
	}

	if len(args) > 0 {
		so.Name = args[0]
	}
	if so.Name == "" {
		return so, fmt.Errorf("%w: pass a port, set serial.port or $%s", serial.ErrNoPort, config.EnvSerialPort)
	}

	if opts.BaudRate != 0 {
		if opts.BaudRate < 0 {
			return so, fmt.Errorf("invalid baud rate %d", opts.BaudRate)
		}
		so.BaudRate = opts.BaudRate
	}
	if opts.Timeout != "" {
		d, err := time.ParseDuration(opts.Timeout)
		if err != nil {
			return so, fmt.Errorf("invalid timeout %q: %w", opts.Timeout, err)
		}
		if d <= 0 {
			return so, fmt.Errorf("invalid timeout %q: must be positive", opts.Timeout)
		}
		so.Timeout = d
	}
	if opts.Trigger != "" {
		so.TriggerCommand = opts.Trigger
	}

	return so, nil
}

func listPorts(cmd *cobra.Command) error {
	ports, err := serial.AvailablePorts()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return nil
	}
	fmt.Fprintln(w, "Available serial ports:")
	for _, port := range ports {
		fmt.Fprintf(w, "  %s\n", port)
	}
	return nil
}
