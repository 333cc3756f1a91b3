package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/log"
	"dompet/internal/store"
)

// ChangePublisher announces writes to other processes.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

// ExpenseService validates user input, writes it to the store and then
// announces the change. The store write is the source of truth: a failed
// announcement is logged and the write still succeeds.
type ExpenseService struct {
	store      store.ExpenseStore
	categories store.CategoryReader
	publisher  ChangePublisher
	clock      dates.Clock
	origin     string
	logger     *log.Logger
	events     *log.StructuredLogger
}

// NewExpenseService wires the service. publisher may be nil when no
// broker is configured.
func NewExpenseService(st store.ExpenseStore, categories store.CategoryReader, publisher ChangePublisher, clock dates.Clock, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentExpense)
	return &ExpenseService{
		store:      st,
		categories: categories,
		publisher:  publisher,
		clock:      clock,
		origin:     uuid.NewString(),
		logger:     logger,
		events:     log.NewStructuredLogger(logger),
	}
}

// Origin identifies this process in published change messages.
func (s *ExpenseService) Origin() string {
	return s.origin
}

// Create validates draft, snapshots the category icon and stores the record.
func (s *ExpenseService) Create(ctx context.Context, draft core.ExpenseDraft) (core.Expense, error) {
	e, err := s.build(ctx, draft)
	if err != nil {
		return core.Expense{}, err
	}

	id, err := s.store.Create(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	e = s.persisted(ctx, id, e)

	s.events.LogExpenseChanged(ctx, log.OpCreate, id, e.Title, e.Amount.Rupiah, e.Category)
	s.publish(ctx, id, amqp.OpCreated)
	return e, nil
}

// Update replaces the editable fields of id. The icon is re-copied from the
// chosen category.
func (s *ExpenseService) Update(ctx context.Context, id string, draft core.ExpenseDraft) (core.Expense, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Expense{}, core.ErrMissingExpenseID
	}
	e, err := s.build(ctx, draft)
	if err != nil {
		return core.Expense{}, err
	}

	if err := s.store.Update(ctx, id, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	e = s.persisted(ctx, id, e)

	s.events.LogExpenseChanged(ctx, log.OpUpdate, id, e.Title, e.Amount.Rupiah, e.Category)
	s.publish(ctx, id, amqp.OpUpdated)
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.ErrMissingExpenseID
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id, log.FieldOperation, log.OpDelete)
	s.publish(ctx, id, amqp.OpDeleted)
	return nil
}

func (s *ExpenseService) build(ctx context.Context, draft core.ExpenseDraft) (core.Expense, error) {
	if err := draft.Validate(); err != nil {
		return core.Expense{}, err
	}
	cat, err := store.FindCategory(ctx, s.categories, draft.Category)
	if err != nil {
		return core.Expense{}, err
	}
	return draft.Build(cat)
}

// persisted returns the record as stored, with its write timestamps, when
// the store can read single records. Otherwise it returns written with id.
func (s *ExpenseService) persisted(ctx context.Context, id string, written core.Expense) core.Expense {
	written.ID = id
	getter, ok := s.store.(store.ExpenseGetter)
	if !ok {
		return written
	}
	e, err := getter.GetByID(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read back saved expense", log.FieldExpenseID, id, log.FieldError, err)
		return written
	}
	return e
}

func (s *ExpenseService) publish(ctx context.Context, id, op string) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No change publisher configured, skipping announcement", log.FieldExpenseID, id)
		return
	}
	msg := amqp.NewExpenseChangedMessage(id, op, s.origin, s.clock.Now())
	if err := s.publisher.PublishChange(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change message",
			log.FieldExpenseID, id,
			log.FieldOperation, op,
			log.FieldError, err)
	}
}
