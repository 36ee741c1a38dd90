// Package notification fans session events out to stream subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

const sendTimeout = 500 * time.Millisecond

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Event) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id        string
	sessionID string // empty: every session
	stream    Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription

	sequenceMu sync.Mutex
	sequenceNo uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe registers stream for events of sessionID, or of every session
// when sessionID is empty. It returns the subscription ID.
func (m *Manager) Subscribe(sessionID string, stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:        id,
		sessionID: sessionID,
		stream:    stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// NextSequenceNo returns the next sequence number.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceMu.Lock()
	defer m.sequenceMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast stamps event with the next sequence number and sends it to every
// matching subscriber. Slow subscribers are skipped after a timeout.
func (m *Manager) Broadcast(event *Event) {
	event.SequenceNo = m.NextSequenceNo()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if sub.sessionID == "" || sub.sessionID == event.SessionID {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(event)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification send failed: subscription=%s error=%v", s.id, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification send timed out: subscription=%s", s.id)
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
