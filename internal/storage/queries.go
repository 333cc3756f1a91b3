package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ExpenseRow is an expenses table row. Dates are kept as stored text.
type ExpenseRow struct {
	ID        string
	Title     string
	Amount    int64
	Category  string
	Icon      string
	Date      string
	CreatedAt string
	UpdatedAt string
}

type CategoryRow struct {
	ID        string
	Name      string
	Icon      string
	Color     string
	IconColor string
}

const createExpense = `INSERT INTO expenses (id, title, amount, category, icon, date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

type CreateExpenseParams struct {
	ID        string
	Title     string
	Amount    int64
	Category  string
	Icon      string
	Date      string
	CreatedAt string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) error {
	_, err := q.db.ExecContext(ctx, createExpense,
		arg.ID,
		arg.Title,
		arg.Amount,
		arg.Category,
		arg.Icon,
		arg.Date,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const listExpenses = `SELECT id, title, amount, category, icon, date, created_at, updated_at
FROM expenses
ORDER BY created_at DESC, rowid DESC`

func (q *Queries) ListExpenses(ctx context.Context) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseRow
	for rows.Next() {
		var i ExpenseRow
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Amount,
			&i.Category,
			&i.Icon,
			&i.Date,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getExpense = `SELECT id, title, amount, category, icon, date, created_at, updated_at
FROM expenses
WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id string) (ExpenseRow, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id)
	var i ExpenseRow
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Amount,
		&i.Category,
		&i.Icon,
		&i.Date,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateExpense = `UPDATE expenses
SET title = ?, amount = ?, category = ?, icon = ?, date = ?, updated_at = ?
WHERE id = ?`

type UpdateExpenseParams struct {
	Title     string
	Amount    int64
	Category  string
	Icon      string
	Date      string
	UpdatedAt string
	ID        string
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateExpense,
		arg.Title,
		arg.Amount,
		arg.Category,
		arg.Icon,
		arg.Date,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCategories = `SELECT id, name, icon, color, icon_color
FROM categories
ORDER BY sort_order, name`

func (q *Queries) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryRow
	for rows.Next() {
		var i CategoryRow
		if err := rows.Scan(&i.ID, &i.Name, &i.Icon, &i.Color, &i.IconColor); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
