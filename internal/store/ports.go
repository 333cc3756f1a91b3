// Package store defines the record store contract the rest of the
// application depends on. Backends live in store/memory and storage.
package store

import (
	"context"
	"strings"

	"dompet/internal/core"
)

// Unsubscribe releases a subscription. It is safe to call more than once.
type Unsubscribe func()

// Ports for the record store backends.
type (
	// ExpenseStore persists expenses and pushes full snapshots to subscribers.
	ExpenseStore interface {
		// Create stores e and returns the assigned ID.
		Create(ctx context.Context, e core.Expense) (string, error)
		// GetAll returns every record, most recently created first.
		GetAll(ctx context.Context) ([]core.Expense, error)
		// Update replaces title, amount, category, icon and date of id.
		Update(ctx context.Context, id string, e core.Expense) error
		Delete(ctx context.Context, id string) error
		// Subscribe delivers the current snapshot and then a new one after
		// every change. onError is called at most once, after which the
		// subscription is dropped.
		Subscribe(ctx context.Context, onUpdate func([]core.Expense), onError func(error)) (Unsubscribe, error)
	}

	ExpenseGetter interface {
		GetByID(ctx context.Context, id string) (core.Expense, error)
	}

	CategoryReader interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	// Notifier asks a store to reload and push a fresh snapshot, used when
	// another process changed the underlying data.
	Notifier interface {
		Notify(ctx context.Context) error
	}
)

// FindCategory looks up a category by name, ignoring case.
func FindCategory(ctx context.Context, r CategoryReader, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.ErrNoCategory
	}
	cats, err := r.ListCategories(ctx)
	if err != nil {
		return core.Category{}, err
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return core.Category{}, core.ErrUnknownCategory
}
