package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	clock   dates.Clock
	hub     *store.Hub
}

func NewSQLiteRepository(dbPath string, clock dates.Clock) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(10)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	_, _ = db.Exec("PRAGMA journal_mode = WAL;")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL;")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		clock:   clock,
	}
	repo.hub = store.NewHub(repo.GetAll)

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	r.hub.Close()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Create(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", store.Wrap("create", "", err)
	}
	id := uuid.NewString()
	err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		ID:        id,
		Title:     e.Title,
		Amount:    e.Amount.Rupiah,
		Category:  e.Category,
		Icon:      e.Icon,
		Date:      dates.FormatISO(e.Date),
		CreatedAt: dates.FormatISO(r.clock.Now()),
	})
	if err != nil {
		return "", store.Wrap("create", "", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"title", e.Title,
		"amount", e.Amount.Rupiah,
		"category", e.Category)

	r.notify(ctx)
	return id, nil
}

// GetAll returns every record, most recently created first.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, store.Wrap("list", "", err)
	}
	now := r.clock.Now()
	out := make([]core.Expense, len(rows))
	for i, row := range rows {
		out[i] = r.toExpense(ctx, row, now)
	}
	return out, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, store.Wrap("get", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, store.Wrap("get", id, err)
	}
	return r.toExpense(ctx, row, r.clock.Now()), nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return store.Wrap("update", id, err)
	}
	n, err := r.queries.UpdateExpense(ctx, UpdateExpenseParams{
		Title:     e.Title,
		Amount:    e.Amount.Rupiah,
		Category:  e.Category,
		Icon:      e.Icon,
		Date:      dates.FormatISO(e.Date),
		UpdatedAt: dates.FormatISO(r.clock.Now()),
		ID:        id,
	})
	if err != nil {
		return store.Wrap("update", id, err)
	}
	if n == 0 {
		return store.Wrap("update", id, store.ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense updated in SQLite", "id", id, "amount", e.Amount.Rupiah)
	r.notify(ctx)
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	n, err := r.queries.DeleteExpense(ctx, id)
	if err != nil {
		return store.Wrap("delete", id, err)
	}
	if n == 0 {
		return store.Wrap("delete", id, store.ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	r.notify(ctx)
	return nil
}

func (r *SQLiteRepository) Subscribe(ctx context.Context, onUpdate func([]core.Expense), onError func(error)) (store.Unsubscribe, error) {
	return r.hub.Subscribe(ctx, onUpdate, onError)
}

// Notify reloads the table and pushes a snapshot to subscribers. Used when
// another process wrote to the same database.
func (r *SQLiteRepository) Notify(ctx context.Context) error {
	return r.hub.Notify(ctx)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, store.Wrap("list categories", "", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color, IconColor: c.IconColor}
	}
	return out, nil
}

func (r *SQLiteRepository) notify(ctx context.Context) {
	if err := r.hub.Notify(ctx); err != nil {
		slog.WarnContext(ctx, "Snapshot reload failed after write", "error", err)
	}
}

func (r *SQLiteRepository) toExpense(ctx context.Context, row ExpenseRow, now time.Time) core.Expense {
	date, ok := dates.Coerce(row.Date, now)
	if !ok {
		slog.WarnContext(ctx, "Unreadable expense date replaced with current time",
			"id", row.ID,
			"raw_date", row.Date)
	}
	created, _ := dates.Coerce(row.CreatedAt, time.Time{})
	updated, _ := dates.Coerce(row.UpdatedAt, created)
	return core.Expense{
		ID:          row.ID,
		Title:       row.Title,
		Amount:      core.Money{Rupiah: row.Amount},
		Category:    row.Category,
		Date:        date,
		Icon:        row.Icon,
		CreatedAt:   created,
		UpdatedAt:   updated,
		DateCoerced: !ok,
	}
}

var (
	_ store.ExpenseStore   = (*SQLiteRepository)(nil)
	_ store.ExpenseGetter  = (*SQLiteRepository)(nil)
	_ store.CategoryReader = (*SQLiteRepository)(nil)
	_ store.Notifier       = (*SQLiteRepository)(nil)
)
