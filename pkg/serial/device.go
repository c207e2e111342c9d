// Package serial talks to the fall logger over a serial port: it performs
// the trigger exchange and exposes the response as a parser.LineSource.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	bugst "go.bug.st/serial"
)

// ErrNoPort is returned when no serial port name was configured.
var ErrNoPort = errors.New("no serial port specified")

// Default exchange parameters.
const (
	DefaultBaudRate       = 9600
	DefaultTimeout        = 10 * time.Second
	DefaultReadPoll       = 100 * time.Millisecond
	DefaultSettleDelay    = 2 * time.Second
	DefaultTriggerCommand = "READ_DATA"
)

// Port is the part of a serial port the device needs.
// go.bug.st/serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// Options configures the trigger exchange.
type Options struct {
	// Name is the port device, e.g. /dev/ttyUSB0 or COM3.
	Name string

	// BaudRate of the link.
	BaudRate int

	// Timeout bounds the whole response, measured from the trigger.
	Timeout time.Duration

	// ReadPoll is the per-read timeout of the port.
	ReadPoll time.Duration

	// SettleDelay is waited after opening; most boards reset when the
	// port opens.
	SettleDelay time.Duration

	// TriggerCommand is sent, newline terminated, to start the dump.
	TriggerCommand string
}

func (o *Options) applyDefaults() {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ReadPoll <= 0 {
		o.ReadPoll = DefaultReadPoll
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.TriggerCommand == "" {
		o.TriggerCommand = DefaultTriggerCommand
	}
}

// Device is an open connection to the logger.
type Device struct {
	port   Port
	opts   Options
	logger *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Open opens the serial port described by opts.
func Open(opts Options, logger *slog.Logger) (*Device, error) {
	if opts.Name == "" {
		return nil, ErrNoPort
	}
	opts.applyDefaults()

	logger.Info("connecting to logger", "port", opts.Name, "baud", opts.BaudRate)

	port, err := bugst.Open(opts.Name, &bugst.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", opts.Name, err)
	}

	if err := port.SetReadTimeout(opts.ReadPoll); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("setting read timeout on %s: %w", opts.Name, err)
	}

	return NewDevice(port, opts, logger), nil
}

// NewDevice wraps an already open port.
func NewDevice(port Port, opts Options, logger *slog.Logger) *Device {
	opts.applyDefaults()
	return &Device{
		port:   port,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Request waits for the board to settle, discards pending input, sends the
// trigger command and returns a LineSource over the response. The source
// reports parser.ErrTimeout once Options.Timeout has elapsed.
func (d *Device) Request(ctx context.Context) (*LineReader, error) {
	if d.opts.SettleDelay > 0 {
		d.logger.Debug("waiting for board to settle", "delay", d.opts.SettleDelay)
		if err := d.sleep(ctx, d.opts.SettleDelay); err != nil {
			return nil, err
		}
	}

	if err := d.port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("flushing input buffer: %w", err)
	}

	d.logger.Info("sending trigger command", "command", d.opts.TriggerCommand)
	if _, err := io.WriteString(d.port, d.opts.TriggerCommand+"\n"); err != nil {
		return nil, fmt.Errorf("writing trigger command: %w", err)
	}

	r := NewLineReader(d.port, d.opts.Name, d.now().Add(d.opts.Timeout), d.logger)
	r.now = d.now
	return r, nil
}

// Close closes the port.
func (d *Device) Close() error {
	return d.port.Close()
}

// AvailablePorts lists serial ports present on this machine.
func AvailablePorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
