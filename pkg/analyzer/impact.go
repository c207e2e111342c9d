package analyzer

import (
	"context"
	"fmt"
	"sync"
)

// ImpactEngine implements EventEngine for impact detection. Consecutive
// points above the threshold form a single impact.
type ImpactEngine struct {
	thresholdG float64

	mu      sync.Mutex
	current run
	events  []Event
}

// NewImpactEngine creates an impact engine.
func NewImpactEngine(thresholdG float64) (*ImpactEngine, error) {
	if thresholdG <= 0 {
		return nil, fmt.Errorf("impact threshold must be positive, got %g", thresholdG)
	}
	return &ImpactEngine{
		thresholdG: thresholdG,
		events:     make([]Event, 0),
	}, nil
}

// Name returns the engine name.
func (e *ImpactEngine) Name() string {
	return "impact"
}

// Type returns the event type.
func (e *ImpactEngine) Type() EventType {
	return EventTypeImpact
}

// Process handles a single point.
func (e *ImpactEngine) Process(_ context.Context, p Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p.G.Magnitude > e.thresholdG {
		e.current.add(p, func(a, b float64) bool { return a > b })
		return nil
	}
	e.closeRun()
	return nil
}

func (e *ImpactEngine) closeRun() {
	if e.current.count > 0 {
		r := e.current
		e.events = append(e.events, r.event(EventTypeImpact,
			fmt.Sprintf("Impact peaking at %.2f g over %d samples", r.extreme, r.count)))
	}
	e.current = run{}
}

// Finalize closes any open impact and returns all impacts.
func (e *ImpactEngine) Finalize(_ context.Context) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeRun()
	return e.events, nil
}

// Reset clears internal state for reuse.
func (e *ImpactEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.current = run{}
	e.events = make([]Event, 0)
}
