package results

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []Event
	finished bool
}

func (s *recordingSink) Consume(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

func TestChannel_SendAndReceive(t *testing.T) {
	ch := NewChannel(4)
	ch.Send(Event{Kind: EventRunStart})
	ch.Send(Event{Kind: EventRunComplete})
	ch.Close()

	var got []EventKind
	for e := range ch.Events() {
		got = append(got, e.Kind)
	}
	assert.Equal(t, []EventKind{EventRunStart, EventRunComplete}, got)
}

func TestNewChannel_ClampsCapacityToOne(t *testing.T) {
	ch := NewChannel(0)
	ch.Send(Event{Kind: EventRunStart})
	ch.Close()

	e, ok := <-ch.Events()
	require.True(t, ok)
	assert.Equal(t, EventRunStart, e.Kind)
}

func TestDrain_ForwardsEventsThenCallsFinish(t *testing.T) {
	ch := NewChannel(8)
	sink := &recordingSink{}

	done := make(chan struct{})
	go func() {
		Drain(ch, sink)
		close(done)
	}()

	ch.Send(Event{Kind: EventComponentStart})
	ch.Send(Event{Kind: EventComponentReportComplete})
	ch.Close()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 2)
	assert.Equal(t, EventComponentStart, sink.events[0].Kind)
	assert.True(t, sink.finished)
}
