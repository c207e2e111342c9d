package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ccollicutt/falllog/pkg/analyzer"
	"github.com/ccollicutt/falllog/pkg/config"
	"github.com/ccollicutt/falllog/pkg/output"
)

// influxBatchSize bounds the number of points per write request.
const influxBatchSize = 500

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxWriter stores session samples as InfluxDB points. Each sample
// becomes one point in the configured measurement, timestamped at the
// session start plus its sample time and carrying its arrival position in
// the "pos" field. A repeated index would land on an existing series key and
// timestamp, so it is moved forward by whole nanoseconds until it is unique.
// A single summary point is written to "<measurement>_session".
type InfluxWriter struct {
	client      influxdb2.Client
	writer      pointWriter
	measurement string
	logger      *slog.Logger
}

// NewInfluxWriter creates a writer for cfg.
func NewInfluxWriter(cfg *config.InfluxConfig, logger *slog.Logger) *InfluxWriter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultInfluxTimeout
	}
	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(timeout / time.Second))

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	measurement := cfg.Measurement
	if measurement == "" {
		measurement = config.DefaultInfluxMeasurement
	}

	return &InfluxWriter{
		client:      client,
		writer:      client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: measurement,
		logger:      logger,
	}
}

// Write sends the points of one session followed by its summary point.
func (w *InfluxWriter) Write(ctx context.Context, report *output.Report, points []analyzer.Point) error {
	tags := map[string]string{
		"session": report.Session.ID,
		"source":  report.Session.Source,
	}
	if report.Session.Host != "" {
		tags["host"] = report.Session.Host
	}

	start := report.Session.StartedAt
	batch := make([]*write.Point, 0, influxBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.writer.WritePoint(ctx, batch...); err != nil {
			return fmt.Errorf("writing %d points: %w", len(batch), err)
		}
		batch = batch[:0]
		return nil
	}

	stamps := make(map[int64]struct{}, len(points))
	for _, p := range points {
		ts := start.Add(time.Duration(p.TimeMs * float64(time.Millisecond)))
		for {
			if _, taken := stamps[ts.UnixNano()]; !taken {
				break
			}
			ts = ts.Add(time.Nanosecond)
		}
		stamps[ts.UnixNano()] = struct{}{}

		batch = append(batch, write.NewPoint(w.measurement, tags, map[string]interface{}{
			"pos":         int64(p.Pos),
			"index":       p.Index,
			"x":           p.X,
			"y":           p.Y,
			"z":           p.Z,
			"x_g":         p.G.X,
			"y_g":         p.G.Y,
			"z_g":         p.G.Z,
			"magnitude_g": p.G.Magnitude,
		}, ts))
		if len(batch) == influxBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	batch = append(batch, write.NewPoint(w.measurement+"_session", tags, map[string]interface{}{
		"samples":          int64(report.Summary.Samples),
		"line_errors":      int64(report.Summary.LineErrors),
		"falls":            int64(report.Summary.Falls),
		"fall_detected":    report.Summary.FallDetected,
		"peak_magnitude_g": report.Stats.PeakMagnitudeG,
		"termination":      string(report.Session.Termination),
	}, start))
	if err := flush(); err != nil {
		return err
	}

	w.logger.Info("influxdb session written", "measurement", w.measurement, "points", len(points))
	return nil
}

// Close releases the client.
func (w *InfluxWriter) Close() {
	w.client.Close()
}
