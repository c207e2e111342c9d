package analyzer

import "context"

// EventEngine scans the points of a session for one kind of event.
// Each detection strategy (free fall, impact, index gap) implements this interface.
type EventEngine interface {
	// Name returns the engine name for reporting.
	Name() string

	// Type returns the event type the engine produces.
	Type() EventType

	// Process handles a single point in arrival order.
	Process(ctx context.Context, p Point) error

	// Finalize completes the scan and returns detected events in arrival
	// order. Called after all points have been processed.
	Finalize(ctx context.Context) ([]Event, error)

	// Reset clears internal state for reuse.
	Reset()
}
