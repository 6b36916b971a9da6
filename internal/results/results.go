// Package results defines the bounded lifecycle-event channel that carries
// progress notifications from the scheduler/executor to a formatter sink,
// and the Sink interface a formatter implements to consume them.
//
// The event shape generalizes the source test reporter's
// ReportStart/ReportScenarioStart/ReportScenarioResult/ReportSuiteResult
// callback interface into a single channel of tagged events, so multiple
// sinks (console, future JSON/YAML) can share one producer side.
package results

import (
	"github.com/stratumtest/stratum/internal/component"
)

// EventKind tags a lifecycle event.
type EventKind int

const (
	EventRunStart EventKind = iota
	EventComponentStart
	EventComponentTimeout
	EventComponentReportComplete
	EventRunComplete
)

// RunStartSummary is the tree-shape count published at the start of a run.
type RunStartSummary struct {
	SuiteCount    int
	TestCount     int
	SetupCount    int
	TeardownCount int
}

// Event is one entry on the results channel. Only the fields relevant to
// Kind are populated.
type Event struct {
	Kind        EventKind
	Summary     RunStartSummary
	Description component.Description
	Report      component.RunReport
}

// Channel is a bounded multi-producer single-consumer queue. Capacity is
// conventionally max_concurrency*5, matching the executor's maximum
// simultaneous producers with headroom so a burst of completions does not
// stall on a slow consumer.
type Channel struct {
	events chan Event
}

// NewChannel returns a channel with the given buffer capacity.
func NewChannel(capacity int) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel{events: make(chan Event, capacity)}
}

// Send publishes an event. It blocks if the channel is full, providing
// natural backpressure onto the scheduler rather than dropping events.
func (c *Channel) Send(e Event) {
	c.events <- e
}

// Events exposes the receive side for the sink's consume loop.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close signals no further events will be sent. Call it once, after the
// scheduler has returned and every producer has stopped sending (Run in
// the stratum package does this).
func (c *Channel) Close() {
	close(c.events)
}

// Sink consumes events and renders/aggregates them. Implementations must
// accept events in arrival order; events across different components are
// not globally ordered, only per-component (Start < Timeout? < Complete).
type Sink interface {
	Consume(e Event)
	// Finish is called once the channel is drained and closed, giving
	// the sink a chance to flush buffered output.
	Finish()
}

// Drain reads every event from ch and forwards it to sink until the
// channel closes, then calls sink.Finish. Intended to run on its own
// goroutine, started before the scheduler begins dispatching.
func Drain(ch *Channel, sink Sink) {
	for e := range ch.Events() {
		sink.Consume(e)
	}
	sink.Finish()
}
