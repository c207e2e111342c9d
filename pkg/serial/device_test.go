package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/falllog/pkg/parser"
	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// fakePort replays read chunks. An empty chunk is a poll timeout.
type fakePort struct {
	chunks  [][]byte
	written bytes.Buffer
	flushed int
	closed  bool
	readErr error
	onRead  func()
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.onRead != nil {
		p.onRead()
	}
	if len(p.chunks) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, nil
	}
	c := p.chunks[0]
	n := copy(b, c)
	if n < len(c) {
		p.chunks[0] = c[n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }
func (p *fakePort) ResetInputBuffer() error     { p.flushed++; return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances by step on every reading.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestDevice(port *fakePort, opts Options, clock *fakeClock) *Device {
	d := NewDevice(port, opts, discardLogger())
	d.now = clock.now
	d.sleep = func(context.Context, time.Duration) error { return nil }
	return d
}

func chunks(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func TestDevice_RequestSendsTrigger(t *testing.T) {
	port := &fakePort{}
	d := newTestDevice(port, Options{Name: "/dev/ttyTEST"}, &fakeClock{step: time.Millisecond})

	_, err := d.Request(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "READ_DATA\n", port.written.String())
	assert.Equal(t, 1, port.flushed)

	require.NoError(t, d.Close())
	assert.True(t, port.closed)
}

func TestDevice_CustomTrigger(t *testing.T) {
	port := &fakePort{}
	d := newTestDevice(port, Options{Name: "x", TriggerCommand: "DUMP"}, &fakeClock{step: time.Millisecond})

	_, err := d.Request(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DUMP\n", port.written.String())
}

func TestDevice_SettleDelayHonoursContext(t *testing.T) {
	port := &fakePort{}
	d := NewDevice(port, Options{Name: "x", SettleDelay: time.Hour}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Request(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, port.written.String(), "trigger must not be sent after cancellation")
}

func TestDevice_FullExchange(t *testing.T) {
	port := &fakePort{chunks: chunks(
		"Reading fall data from EE",
		"",
		"PROM:\r\nTime scale between data: 2000 us\r\nIndex,AccX,AccY,AccZ\r\n0,100,",
		"200,16384\r\n1,-50,0,16400\r\n",
		"",
		"End of data\r\n",
	)}
	d := newTestDevice(port, Options{Name: "/dev/ttyTEST", Timeout: time.Second}, &fakeClock{step: time.Millisecond})

	src, err := d.Request(context.Background())
	require.NoError(t, err)

	res, err := parser.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, parser.TerminationEndMarker, res.Termination)
	require.NotNil(t, res.TimeScaleMicros)
	assert.Equal(t, int64(2000), *res.TimeScaleMicros)
	assert.Equal(t, []telemetry.Sample{
		{Index: 0, X: 100, Y: 200, Z: 16384},
		{Index: 1, X: -50, Y: 0, Z: 16400},
	}, res.Samples)
}

func TestLineReader_TimeoutFlushesPartialLine(t *testing.T) {
	port := &fakePort{chunks: chunks("Reading fall data from EEPROM\n0,1,2,3\n4,5")}
	clock := &fakeClock{step: 100 * time.Millisecond}
	deadline := clock.t.Add(time.Second)

	r := NewLineReader(port, "test", deadline, discardLogger())
	r.now = clock.now

	res, err := parser.Run(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, parser.TerminationTimeout, res.Termination)
	assert.Len(t, res.Samples, 1)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, parser.ReasonWrongFieldCount, res.Errors[0].Reason)
	assert.Equal(t, "4,5", res.Errors[0].Raw)
}

func TestLineReader_NoDataTimesOut(t *testing.T) {
	port := &fakePort{}
	clock := &fakeClock{step: 100 * time.Millisecond}
	r := NewLineReader(port, "test", clock.t.Add(time.Second), discardLogger())
	r.now = clock.now

	_, err := r.Next(context.Background())
	assert.ErrorIs(t, err, parser.ErrTimeout)
}

func TestLineReader_EOF(t *testing.T) {
	port := &fakePort{chunks: chunks("tail"), readErr: io.EOF}
	clock := &fakeClock{step: time.Millisecond}
	r := NewLineReader(port, "test", clock.t.Add(time.Hour), discardLogger())
	r.now = clock.now

	line, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tail", line.Text)

	_, err = r.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReader_ReadFault(t *testing.T) {
	boom := errors.New("port gone")
	port := &fakePort{readErr: boom}
	clock := &fakeClock{step: time.Millisecond}
	r := NewLineReader(port, "test", clock.t.Add(time.Hour), discardLogger())
	r.now = clock.now

	_, err := r.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestLineReader_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	port := &fakePort{onRead: cancel}
	clock := &fakeClock{step: time.Millisecond}
	r := NewLineReader(port, "test", clock.t.Add(time.Hour), discardLogger())
	r.now = clock.now

	_, err := r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_NoPort(t *testing.T) {
	_, err := Open(Options{}, discardLogger())
	assert.ErrorIs(t, err, ErrNoPort)
}
