package services

import (
	"context"
	"sync"

	"dompet/internal/amqp"
)

// MockPublisher is a mock implementation of ChangePublisher
type MockPublisher struct {
	mu                sync.Mutex
	Published         []*amqp.ExpenseChangedMessage
	PublishChangeFunc func(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

func (m *MockPublisher) PublishChange(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	m.mu.Lock()
	m.Published = append(m.Published, msg)
	m.mu.Unlock()
	if m.PublishChangeFunc != nil {
		return m.PublishChangeFunc(ctx, msg)
	}
	return nil
}

// MockNotifier is a mock implementation of store.Notifier
type MockNotifier struct {
	Calls      int
	NotifyFunc func(ctx context.Context) error
}

func (m *MockNotifier) Notify(ctx context.Context) error {
	m.Calls++
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx)
	}
	return nil
}

// MockConsumer is a mock implementation of ChangeConsumer
type MockConsumer struct {
	ConsumeChangesFunc func(ctx context.Context, queue string, handler amqp.Handler) error
}

func (m *MockConsumer) ConsumeChanges(ctx context.Context, queue string, handler amqp.Handler) error {
	if m.ConsumeChangesFunc != nil {
		return m.ConsumeChangesFunc(ctx, queue, handler)
	}
	return nil
}
