package nats

import (
	"context"
	"fmt"
	"sync"
)

// MockPublisher is an in-memory Publisher for tests. It records accepted
// events and can reject individual signatures to imitate a sink that drops
// part of a batch.
type MockPublisher struct {
	mu         sync.RWMutex
	events     []*TransactionEvent
	rejected   map[string]bool
	publishErr error
	batchErr   error
	closed     bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{rejected: make(map[string]bool)}
}

// PublishTransaction records event unless its signature is rejected or a
// publish error is set.
func (m *MockPublisher) PublishTransaction(ctx context.Context, event *TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accept(event)
}

// PublishTransactionBatch records every event it accepts and skips the
// rejected ones, returning the accepted count.
func (m *MockPublisher) PublishTransactionBatch(ctx context.Context, events []*TransactionEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.batchErr != nil {
		return 0, m.batchErr
	}

	published := 0
	for _, event := range events {
		if err := m.accept(event); err == nil {
			published++
		}
	}
	return published, nil
}

func (m *MockPublisher) accept(event *TransactionEvent) error {
	if m.closed {
		return fmt.Errorf("publisher closed")
	}
	if m.publishErr != nil {
		return m.publishErr
	}
	if m.rejected[event.Signature] {
		return fmt.Errorf("rejected signature %s", event.Signature)
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns a copy of the accepted events in order.
func (m *MockPublisher) GetPublishedEvents() []*TransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TransactionEvent, len(m.events))
	copy(events, m.events)
	return events
}

func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// EventsOnSubject returns the accepted events that would land on subject.
func (m *MockPublisher) EventsOnSubject(subject string) []*TransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []*TransactionEvent
	for _, event := range m.events {
		if event.Subject() == subject {
			events = append(events, event)
		}
	}
	return events
}

// RejectSignature makes every later publish of signature fail.
func (m *MockPublisher) RejectSignature(signature string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[signature] = true
}

// SetPublishError fails every single and batched event with err.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// SetPublishBatchError makes PublishTransactionBatch fail outright.
func (m *MockPublisher) SetPublishBatchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchErr = err
}

func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
