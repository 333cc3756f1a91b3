package services

import (
	"context"

	"dompet/internal/amqp"
	"dompet/internal/log"
	"dompet/internal/store"
)

// ChangeConsumer delivers change messages from the broker.
type ChangeConsumer interface {
	ConsumeChanges(ctx context.Context, queue string, handler amqp.Handler) error
}

// FeedRelay refreshes local subscribers when another process writes.
// Messages published by this process are skipped since the local store
// already pushed a snapshot for them.
type FeedRelay struct {
	consumer ChangeConsumer
	notifier store.Notifier
	origin   string
	logger   *log.Logger
}

func NewFeedRelay(consumer ChangeConsumer, notifier store.Notifier, origin string, logger *log.Logger) *FeedRelay {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &FeedRelay{
		consumer: consumer,
		notifier: notifier,
		origin:   origin,
		logger:   logger.WithComponent(log.ComponentRelay),
	}
}

// Run consumes on a private queue until ctx is done.
func (r *FeedRelay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Feed relay started", log.FieldOrigin, r.origin)
	return r.consumer.ConsumeChanges(ctx, "", r.Handle)
}

// Handle reloads the local snapshot for a foreign change. A failed reload
// has already been delivered to the subscribers as a feed error, so the
// message is not requeued.
func (r *FeedRelay) Handle(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	if msg.Origin == r.origin {
		return nil
	}
	if err := r.notifier.Notify(ctx); err != nil {
		r.logger.WarnContext(ctx, "Snapshot reload after remote change failed",
			log.FieldExpenseID, msg.ID,
			log.FieldOrigin, msg.Origin,
			log.FieldError, err)
		return nil
	}
	r.logger.DebugContext(ctx, "Relayed remote change", log.FieldExpenseID, msg.ID, log.FieldOperation, msg.Op)
	return nil
}
