package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ccollicutt/falllog/pkg/config"
	"github.com/ccollicutt/falllog/pkg/parser"
	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// Analyzer turns a parsed session into statistics and events.
type Analyzer struct {
	rangeG           int
	defaultTimeScale int64
	fallWindowMs     float64
	engines          []EventEngine
}

// AnalyzerOption configures analyzer behavior.
type AnalyzerOption func(*Analyzer)

// WithRangeG overrides the configured full-scale range. Zero keeps it.
func WithRangeG(g int) AnalyzerOption {
	return func(a *Analyzer) {
		if g != 0 {
			a.rangeG = g
		}
	}
}

// WithDefaultTimeScale overrides the time scale used when the device did
// not report one. Zero keeps the configured value.
func WithDefaultTimeScale(micros int64) AnalyzerOption {
	return func(a *Analyzer) {
		if micros != 0 {
			a.defaultTimeScale = micros
		}
	}
}

// WithEngines replaces the built-in engines.
func WithEngines(engines ...EventEngine) AnalyzerOption {
	return func(a *Analyzer) {
		a.engines = engines
	}
}

// NewAnalyzer creates an analyzer from configuration.
func NewAnalyzer(cfg *config.Config, opts ...AnalyzerOption) (*Analyzer, error) {
	a := &Analyzer{
		rangeG:           cfg.Sensor.FullScaleRangeG,
		defaultTimeScale: cfg.Sensor.DefaultTimeScaleMicros,
		fallWindowMs:     float64(cfg.Analysis.FallWindow.Microseconds()) / 1000,
	}

	for _, opt := range opts {
		opt(a)
	}

	if !telemetry.IsSupportedRange(a.rangeG) {
		return nil, fmt.Errorf("unsupported full-scale range %dg (supported: %v)", a.rangeG, telemetry.SupportedRanges())
	}
	if a.defaultTimeScale <= 0 {
		return nil, fmt.Errorf("default time scale must be positive, got %d us", a.defaultTimeScale)
	}

	if a.engines == nil {
		freeFall, err := NewFreeFallEngine(cfg.Analysis.FreefallThresholdG, cfg.Analysis.FreefallMinSamples)
		if err != nil {
			return nil, fmt.Errorf("creating free-fall engine: %w", err)
		}
		impact, err := NewImpactEngine(cfg.Analysis.ImpactThresholdG)
		if err != nil {
			return nil, fmt.Errorf("creating impact engine: %w", err)
		}
		a.engines = []EventEngine{freeFall, impact, NewGapEngine()}
	}

	return a, nil
}

// RangeG returns the full-scale range used for conversion.
func (a *Analyzer) RangeG() int {
	return a.rangeG
}

// Analyze computes statistics and runs every engine over the session.
func (a *Analyzer) Analyze(ctx context.Context, res *parser.Result) (*Analysis, error) {
	if res == nil {
		return nil, errors.New("no parse result to analyze")
	}

	for _, engine := range a.engines {
		engine.Reset()
	}

	ts, defaulted := telemetry.EffectiveTimeScale(res.TimeScaleMicros, a.defaultTimeScale)

	out := &Analysis{
		Stats: Stats{
			Samples:            len(res.Samples),
			RangeG:             a.rangeG,
			TimeScaleMicros:    ts,
			TimeScaleDefaulted: defaulted,
			Regressions:        len(res.Regressions),
			LineErrors:         len(res.Errors),
		},
		Events: make([]Event, 0),
		Points: make([]Point, 0, len(res.Samples)),
	}

	var (
		sum          float64
		minMs, maxMs float64
		x, y, z      AxisRange
	)
	peakMagnitudeG := math.Inf(-1)

	for i, s := range res.Samples {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		p := Point{
			Sample: s,
			G:      s.G(a.rangeG),
			TimeMs: telemetry.SampleTimeMillis(s.Index, ts),
			Pos:    i,
		}
		out.Points = append(out.Points, p)

		sum += p.G.Magnitude
		if p.G.Magnitude > peakMagnitudeG {
			peakMagnitudeG = p.G.Magnitude
			out.Stats.PeakMagnitudeG = p.G.Magnitude
			out.Stats.PeakIndex = s.Index
			out.Stats.PeakTimeMs = p.TimeMs
		}

		if i == 0 {
			minMs, maxMs = p.TimeMs, p.TimeMs
			x = AxisRange{MinG: p.G.X, MaxG: p.G.X}
			y = AxisRange{MinG: p.G.Y, MaxG: p.G.Y}
			z = AxisRange{MinG: p.G.Z, MaxG: p.G.Z}
		} else {
			minMs, maxMs = math.Min(minMs, p.TimeMs), math.Max(maxMs, p.TimeMs)
			x.extend(p.G.X)
			y.extend(p.G.Y)
			z.extend(p.G.Z)
		}

		for _, engine := range a.engines {
			if err := engine.Process(ctx, p); err != nil {
				return nil, fmt.Errorf("processing sample %d with %s engine: %w", s.Index, engine.Name(), err)
			}
		}
	}

	if n := len(out.Points); n > 0 {
		out.Stats.MeanMagnitudeG = sum / float64(n)
		out.Stats.DurationMs = maxMs - minMs
		out.Stats.X, out.Stats.Y, out.Stats.Z = x, y, z
	}

	for _, engine := range a.engines {
		events, err := engine.Finalize(ctx)
		if err != nil {
			return nil, fmt.Errorf("finalizing %s engine: %w", engine.Name(), err)
		}
		out.Events = append(out.Events, events...)
	}

	for _, e := range out.Events {
		if e.Type == EventTypeIndexGap {
			out.Stats.IndexGaps++
			out.Stats.MissingSamples += e.Missing
		}
	}

	out.Events = append(out.Events, correlateFalls(out.Events, a.fallWindowMs, float64(ts)/1000)...)

	sort.SliceStable(out.Events, func(i, j int) bool {
		return out.Events[i].pos < out.Events[j].pos
	})

	return out, nil
}

func (r *AxisRange) extend(v float64) {
	if v < r.MinG {
		r.MinG = v
	}
	if v > r.MaxG {
		r.MaxG = v
	}
}

// correlateFalls pairs each free-fall window with the first later impact
// that starts within windowMs of the window's end. An impact completes at
// most one fall.
func correlateFalls(events []Event, windowMs, intervalMs float64) []Event {
	var impacts []Event
	for _, e := range events {
		if e.Type == EventTypeImpact {
			impacts = append(impacts, e)
		}
	}

	used := make([]bool, len(impacts))
	falls := make([]Event, 0)

	for _, ff := range events {
		if ff.Type != EventTypeFreeFall {
			continue
		}
		for i, imp := range impacts {
			if used[i] || imp.pos <= ff.pos {
				continue
			}
			delay := imp.StartMs - ff.EndMs
			if delay < 0 || delay > windowMs {
				continue
			}
			used[i] = true

			freeFallMs := float64(ff.Samples) * intervalMs
			height := DropHeight(freeFallMs)
			falls = append(falls, Event{
				Type: EventTypeFall,
				Description: fmt.Sprintf("Fall: %.1f ms free fall then %.2f g impact (est. drop %.2f m)",
					freeFallMs, imp.ExtremeG, height),
				StartIndex:  ff.StartIndex,
				EndIndex:    imp.EndIndex,
				StartMs:     ff.StartMs,
				EndMs:       imp.EndMs,
				Samples:     ff.Samples + imp.Samples,
				ExtremeG:    imp.ExtremeG,
				DropHeightM: height,
				pos:         ff.pos,
			})
			break
		}
	}

	return falls
}
