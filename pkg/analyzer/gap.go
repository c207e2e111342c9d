package analyzer

import (
	"context"
	"fmt"
	"sync"
)

// GapEngine implements EventEngine for index gap detection. It reports
// places where the index advances by more than one between consecutive
// rows. Regressions are not gaps; the parser records them separately.
type GapEngine struct {
	mu     sync.Mutex
	prev   *Point
	events []Event
}

// NewGapEngine creates an index gap engine.
func NewGapEngine() *GapEngine {
	return &GapEngine{events: make([]Event, 0)}
}

// Name returns the engine name.
func (e *GapEngine) Name() string {
	return "index-gap"
}

// Type returns the event type.
func (e *GapEngine) Type() EventType {
	return EventTypeIndexGap
}

// Process handles a single point.
func (e *GapEngine) Process(_ context.Context, p Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Compare by difference; prev.Index+1 overflows at math.MaxInt64.
	if e.prev != nil && p.Index > e.prev.Index && p.Index-e.prev.Index > 1 {
		missing := p.Index - e.prev.Index - 1
		e.events = append(e.events, Event{
			Type: EventTypeIndexGap,
			Description: fmt.Sprintf("%d samples missing between index %d and %d",
				missing, e.prev.Index, p.Index),
			StartIndex: e.prev.Index,
			EndIndex:   p.Index,
			StartMs:    e.prev.TimeMs,
			EndMs:      p.TimeMs,
			Samples:    2,
			Missing:    missing,
			pos:        e.prev.Pos,
		})
	}
	prev := p
	e.prev = &prev
	return nil
}

// Finalize returns the detected gaps.
func (e *GapEngine) Finalize(_ context.Context) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.events, nil
}

// Reset clears internal state for reuse.
func (e *GapEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prev = nil
	e.events = make([]Event, 0)
}
