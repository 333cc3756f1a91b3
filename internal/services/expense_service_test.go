package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/log"
	"dompet/internal/store"
	"dompet/internal/store/memory"
)

var now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, pub ChangePublisher) (*ExpenseService, *memory.Store) {
	t.Helper()
	clk := dates.NewManualClock(now)
	st := memory.New(clk, []core.Category{
		{ID: "food", Name: "Food", Icon: "restaurant"},
		{ID: "transport", Name: "Transport", Icon: "car"},
	})
	t.Cleanup(func() { _ = st.Close() })
	return NewExpenseService(st, st, pub, clk, log.Discard()), st
}

func draft(title, amount, category string) core.ExpenseDraft {
	return core.ExpenseDraft{Title: title, AmountText: amount, Category: category, Date: now}
}

func TestExpenseServiceCreate(t *testing.T) {
	pub := &MockPublisher{}
	svc, st := newService(t, pub)
	ctx := context.Background()

	e, err := svc.Create(ctx, draft("Groceries", "85.000", "food"))
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "Food", e.Category)
	assert.Equal(t, "restaurant", e.Icon)
	assert.Equal(t, int64(85000), e.Amount.Rupiah)
	assert.True(t, e.CreatedAt.Equal(now), "created at comes from the store")
	assert.True(t, e.UpdatedAt.Equal(now))

	stored, err := st.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", stored.Title)
	assert.Equal(t, stored, e)

	require.Len(t, pub.Published, 1)
	assert.Equal(t, e.ID, pub.Published[0].ID)
	assert.Equal(t, amqp.OpCreated, pub.Published[0].Op)
	assert.Equal(t, svc.Origin(), pub.Published[0].Origin)
	assert.True(t, pub.Published[0].Timestamp.Equal(now))
}

func TestExpenseServiceRejectsBeforeWrite(t *testing.T) {
	pub := &MockPublisher{}
	svc, st := newService(t, pub)
	ctx := context.Background()

	cases := []struct {
		draft core.ExpenseDraft
		want  error
	}{
		{draft("Groceries", "", "Food"), core.ErrEmptyAmount},
		{draft("", "1000", "Food"), core.ErrEmptyTitle},
		{draft("Groceries", "1000", ""), core.ErrNoCategory},
		{draft("Groceries", "abc", "Food"), core.ErrInvalidAmount},
		{draft("Groceries", "1000", "Travel"), core.ErrUnknownCategory},
	}
	for _, tc := range cases {
		_, err := svc.Create(ctx, tc.draft)
		assert.ErrorIs(t, err, tc.want)
	}

	all, err := st.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, pub.Published)
}

func TestExpenseServicePublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &MockPublisher{PublishChangeFunc: func(context.Context, *amqp.ExpenseChangedMessage) error {
		return errors.New("broker unreachable")
	}}
	svc, st := newService(t, pub)

	e, err := svc.Create(context.Background(), draft("Bus", "3.500", "Transport"))
	require.NoError(t, err)

	_, err = st.GetByID(context.Background(), e.ID)
	assert.NoError(t, err)
}

func TestExpenseServiceWithoutPublisher(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Create(context.Background(), draft("Bus", "3500", "Transport"))
	assert.NoError(t, err)
}

func TestExpenseServiceUpdateRecopiesIcon(t *testing.T) {
	pub := &MockPublisher{}
	svc, st := newService(t, pub)
	ctx := context.Background()

	e, err := svc.Create(ctx, draft("Taxi", "50000", "Food"))
	require.NoError(t, err)

	upd, err := svc.Update(ctx, e.ID, draft("Taxi", "55.000", "Transport"))
	require.NoError(t, err)
	assert.Equal(t, "car", upd.Icon)

	stored, err := st.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Transport", stored.Category)
	assert.Equal(t, "car", stored.Icon)
	assert.Equal(t, int64(55000), stored.Amount.Rupiah)

	require.Len(t, pub.Published, 2)
	assert.Equal(t, amqp.OpUpdated, pub.Published[1].Op)

	_, err = svc.Update(ctx, "missing", draft("Taxi", "1", "Food"))
	assert.True(t, store.IsNotFound(err))

	_, err = svc.Update(ctx, " ", draft("Taxi", "1", "Food"))
	assert.ErrorIs(t, err, core.ErrMissingExpenseID)
}

func TestExpenseServiceDelete(t *testing.T) {
	pub := &MockPublisher{}
	svc, st := newService(t, pub)
	ctx := context.Background()

	e, err := svc.Create(ctx, draft("Snack", "12000", "Food"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, e.ID))
	_, err = st.GetByID(ctx, e.ID)
	assert.True(t, store.IsNotFound(err))
	assert.Equal(t, amqp.OpDeleted, pub.Published[len(pub.Published)-1].Op)

	assert.True(t, store.IsNotFound(svc.Delete(ctx, e.ID)))
	assert.ErrorIs(t, svc.Delete(ctx, ""), core.ErrMissingExpenseID)
}
