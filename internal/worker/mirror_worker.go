// Package worker keeps the spreadsheet mirror in step with the record store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/log"
	"dompet/internal/store"
)

// Mirror is the external copy of the expense table.
type Mirror interface {
	UpsertExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, records []core.Expense) error
}

// Source is the read side of the record store the worker copies from.
type Source interface {
	GetAll(ctx context.Context) ([]core.Expense, error)
	store.ExpenseGetter
}

// ChangeConsumer delivers change messages from a named queue.
type ChangeConsumer interface {
	ConsumeChanges(ctx context.Context, queue string, handler amqp.Handler) error
}

// MirrorWorker applies change messages to the mirror and periodically
// rewrites it from the store to repair anything a lost message left behind.
type MirrorWorker struct {
	source Source
	mirror Mirror
	logger *log.Logger

	// mu serializes mirror writes so a resync cannot overwrite a newer
	// single-record change with a snapshot read before it.
	mu sync.Mutex
}

func NewMirrorWorker(source Source, mirror Mirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &MirrorWorker{
		source: source,
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange mirrors one change. The store is read again rather than
// trusting the message, so a record deleted after it was announced is
// removed from the mirror too.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	w.logger.DebugContext(ctx, "Processing change message",
		log.FieldExpenseID, msg.ID,
		log.FieldOperation, msg.Op,
		log.FieldOrigin, msg.Origin)

	w.mu.Lock()
	defer w.mu.Unlock()

	if msg.Op == amqp.OpDeleted {
		return w.delete(ctx, msg.ID)
	}

	e, err := w.source.GetByID(ctx, msg.ID)
	if store.IsNotFound(err) {
		return w.delete(ctx, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("get expense %s: %w", msg.ID, err)
	}

	if err := w.mirror.UpsertExpense(ctx, e); err != nil {
		return fmt.Errorf("mirror expense %s: %w", msg.ID, err)
	}
	w.logger.InfoContext(ctx, "Expense mirrored",
		log.FieldExpenseID, e.ID,
		log.FieldTitle, e.Title,
		log.FieldAmount, e.Amount.Rupiah,
		log.FieldOperation, log.OpSync)
	return nil
}

func (w *MirrorWorker) delete(ctx context.Context, id string) error {
	if err := w.mirror.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("remove expense %s from mirror: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Expense removed from mirror", log.FieldExpenseID, id, log.FieldOperation, log.OpDelete)
	return nil
}

// Resync rewrites the whole mirror from the store.
func (w *MirrorWorker) Resync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	records, err := w.source.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	if err := w.mirror.ReplaceAll(ctx, records); err != nil {
		return fmt.Errorf("rewrite mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirror resynced",
		log.FieldCount, len(records),
		log.FieldOperation, log.OpSync,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Run resyncs once, then consumes queue and resyncs every interval until
// ctx is cancelled. A failed periodic resync is logged and retried on the
// next tick; a failed consumer ends Run.
func (w *MirrorWorker) Run(ctx context.Context, consumer ChangeConsumer, queue string, interval time.Duration) error {
	if err := w.Resync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup resync failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeChanges(ctx, queue, w.HandleChange)
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := w.Resync(ctx); err != nil {
					w.logger.WarnContext(ctx, "Periodic resync failed", log.FieldError, err)
				}
			}
		}
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
