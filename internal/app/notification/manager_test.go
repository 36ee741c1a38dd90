package notification

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStream struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (r *recordingStream) Send(e *Event) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return r.err
}

func (r *recordingStream) received() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestManager_BroadcastFiltersBySession(t *testing.T) {
	m := NewManager()
	all := &recordingStream{}
	focus := &recordingStream{}
	other := &recordingStream{}

	m.Subscribe("", all)
	m.Subscribe("session-focus", focus)
	m.Subscribe("session-other", other)
	assert.Equal(t, 3, m.SubscriberCount())

	m.Broadcast(&Event{Type: EventTrackChanged, SessionID: "session-focus", Index: 3})
	m.Broadcast(&Event{Type: EventSessionStopped, SessionID: "session-other"})

	require.Len(t, all.received(), 2)
	require.Len(t, focus.received(), 1)
	require.Len(t, other.received(), 1)

	assert.Equal(t, 3, focus.received()[0].Index)
	assert.Equal(t, uint64(1), focus.received()[0].SequenceNo)
	assert.Equal(t, uint64(2), other.received()[0].SequenceNo)
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	id := m.Subscribe("", s)

	m.Unsubscribe(id)
	m.Broadcast(&Event{Type: EventTrackChanged})

	assert.Empty(t, s.received())
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_FailingAndSlowSubscribersDoNotBlock(t *testing.T) {
	m := NewManager()
	failing := &recordingStream{err: errors.New("stream closed")}
	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	healthy := &recordingStream{}

	m.Subscribe("", failing)
	m.Subscribe("", slow)
	m.Subscribe("", healthy)

	start := time.Now()
	m.Broadcast(&Event{Type: EventTrackChanged})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, healthy.received(), 1)
}

func TestManager_Close(t *testing.T) {
	m := NewManager()
	m.Subscribe("", &recordingStream{})
	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}
