package analyzer

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// run tracks consecutive points that satisfy a threshold condition.
type run struct {
	first, last Point
	count       int
	extreme     float64
}

func (r *run) add(p Point, better func(a, b float64) bool) {
	if r.count == 0 {
		r.first = p
		r.extreme = p.G.Magnitude
	} else if better(p.G.Magnitude, r.extreme) {
		r.extreme = p.G.Magnitude
	}
	r.last = p
	r.count++
}

func (r *run) event(t EventType, description string) Event {
	return Event{
		Type:        t,
		Description: description,
		StartIndex:  r.first.Index,
		EndIndex:    r.last.Index,
		StartMs:     r.first.TimeMs,
		EndMs:       r.last.TimeMs,
		Samples:     r.count,
		ExtremeG:    r.extreme,
		pos:         r.first.Pos,
	}
}

// FreeFallEngine implements EventEngine for free-fall detection. A window
// is reported when at least minSamples consecutive points have a magnitude
// below the threshold.
type FreeFallEngine struct {
	thresholdG float64
	minSamples int

	// State
	mu      sync.Mutex
	current run
	events  []Event
}

// NewFreeFallEngine creates a free-fall engine.
func NewFreeFallEngine(thresholdG float64, minSamples int) (*FreeFallEngine, error) {
	if thresholdG <= 0 {
		return nil, fmt.Errorf("free-fall threshold must be positive, got %g", thresholdG)
	}
	if minSamples < 1 {
		return nil, fmt.Errorf("free-fall minimum samples must be >= 1, got %d", minSamples)
	}
	return &FreeFallEngine{
		thresholdG: thresholdG,
		minSamples: minSamples,
		events:     make([]Event, 0),
	}, nil
}

// Name returns the engine name.
func (e *FreeFallEngine) Name() string {
	return "free-fall"
}

// Type returns the event type.
func (e *FreeFallEngine) Type() EventType {
	return EventTypeFreeFall
}

// Process handles a single point.
func (e *FreeFallEngine) Process(_ context.Context, p Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p.G.Magnitude < e.thresholdG {
		e.current.add(p, func(a, b float64) bool { return a < b })
		return nil
	}
	e.closeRun()
	return nil
}

func (e *FreeFallEngine) closeRun() {
	if e.current.count >= e.minSamples {
		r := e.current
		e.events = append(e.events, r.event(EventTypeFreeFall,
			fmt.Sprintf("Free fall for %d samples (%.1f ms), minimum %.3f g",
				r.count, r.last.TimeMs-r.first.TimeMs, r.extreme)))
	}
	e.current = run{}
}

// Finalize closes any open window and returns the free-fall windows.
func (e *FreeFallEngine) Finalize(_ context.Context) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeRun()
	return e.events, nil
}

// Reset clears internal state for reuse.
func (e *FreeFallEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.current = run{}
	e.events = make([]Event, 0)
}

// standardGravity in m/s².
const standardGravity = 9.80665

// DropHeight estimates the height in metres of a drop that spent
// durationMs in free fall.
func DropHeight(durationMs float64) float64 {
	if durationMs <= 0 {
		return 0
	}
	t := durationMs / 1000
	return 0.5 * standardGravity * math.Pow(t, 2)
}
