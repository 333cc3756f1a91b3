package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dompet/internal/amqp"
	"dompet/internal/log"
)

func TestFeedRelaySkipsOwnMessages(t *testing.T) {
	n := &MockNotifier{}
	relay := NewFeedRelay(&MockConsumer{}, n, "me", log.Discard())

	require.NoError(t, relay.Handle(context.Background(), &amqp.ExpenseChangedMessage{ID: "1", Op: amqp.OpCreated, Origin: "me"}))
	assert.Zero(t, n.Calls)

	require.NoError(t, relay.Handle(context.Background(), &amqp.ExpenseChangedMessage{ID: "1", Op: amqp.OpCreated, Origin: "other"}))
	assert.Equal(t, 1, n.Calls)
}

func TestFeedRelayDoesNotRequeueOnReloadFailure(t *testing.T) {
	n := &MockNotifier{NotifyFunc: func(context.Context) error { return errors.New("db locked") }}
	relay := NewFeedRelay(&MockConsumer{}, n, "me", log.Discard())

	err := relay.Handle(context.Background(), &amqp.ExpenseChangedMessage{ID: "1", Op: amqp.OpDeleted, Origin: "other"})
	assert.NoError(t, err)
	assert.Equal(t, 1, n.Calls)
}

func TestFeedRelayRunUsesPrivateQueue(t *testing.T) {
	var gotQueue = "unset"
	consumer := &MockConsumer{ConsumeChangesFunc: func(ctx context.Context, queue string, handler amqp.Handler) error {
		gotQueue = queue
		return handler(ctx, &amqp.ExpenseChangedMessage{ID: "x", Op: amqp.OpUpdated, Origin: "remote"})
	}}
	n := &MockNotifier{}
	relay := NewFeedRelay(consumer, n, "me", log.Discard())

	require.NoError(t, relay.Run(context.Background()))
	assert.Equal(t, "", gotQueue)
	assert.Equal(t, 1, n.Calls)
}
