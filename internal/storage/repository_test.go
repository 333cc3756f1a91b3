package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/store"
)

var t0 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*SQLiteRepository, *dates.ManualClock) {
	t.Helper()
	clk := dates.NewManualClock(t0)
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "dompet.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, clk
}

func sample(title string, amount int64, date time.Time) core.Expense {
	return core.Expense{
		Title:    title,
		Amount:   core.Money{Rupiah: amount},
		Category: "Food",
		Icon:     "restaurant",
		Date:     date,
	}
}

func TestMigrationsSeedCategories(t *testing.T) {
	repo, _ := newTestRepo(t)

	cats, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cats)
	assert.Equal(t, "Food", cats[0].Name)
	assert.Equal(t, "restaurant", cats[0].Icon)

	c, err := store.FindCategory(context.Background(), repo, "transport")
	require.NoError(t, err)
	assert.Equal(t, "car", c.Icon)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dompet.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}

func TestCreateGetAllOrderAndRoundTrip(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()

	when := time.Date(2024, 1, 15, 17, 30, 45, 123456789, time.FixedZone("WIB", 7*3600))
	first, err := repo.Create(ctx, sample("nasi goreng", 25000, when))
	require.NoError(t, err)
	clk.Advance(time.Second)
	second, err := repo.Create(ctx, sample("kopi", 18000, t0))
	require.NoError(t, err)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second, all[0].ID)
	assert.Equal(t, first, all[1].ID)

	got := all[1]
	assert.True(t, got.Date.Equal(when.Truncate(time.Millisecond)), "got %v", got.Date)
	assert.Equal(t, int64(25000), got.Amount.Rupiah)
	assert.Equal(t, "restaurant", got.Icon)
	assert.False(t, got.DateCoerced)
	assert.True(t, got.CreatedAt.Equal(t0))
}

func TestUpdateAndDelete(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, sample("lunch", 30000, t0))
	require.NoError(t, err)

	clk.Advance(time.Hour)
	upd := sample("late lunch", 35000, t0.Add(2*time.Hour))
	upd.Category = "Bills"
	upd.Icon = "receipt"
	require.NoError(t, repo.Update(ctx, id, upd))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "late lunch", got.Title)
	assert.Equal(t, "receipt", got.Icon)
	assert.True(t, got.UpdatedAt.Equal(t0.Add(time.Hour)))
	assert.True(t, got.CreatedAt.Equal(t0))

	err = repo.Update(ctx, "nope", upd)
	assert.True(t, store.IsNotFound(err))
	var se *store.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "update", se.Op)
	assert.Equal(t, "nope", se.ID)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.GetByID(ctx, id)
	assert.True(t, store.IsNotFound(err))
	assert.True(t, store.IsNotFound(repo.Delete(ctx, id)))
}

func TestCreateRejectsInvalid(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Create(context.Background(), sample("", 1000, t0))
	assert.ErrorIs(t, err, core.ErrEmptyTitle)
}

func TestUnreadableDateIsCoerced(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO expenses (id, title, amount, category, icon, date, created_at, updated_at)
		 VALUES ('legacy', 'old row', 5000, 'Food', 'restaurant', 'yesterday-ish', ?, ?)`,
		dates.FormatISO(t0), dates.FormatISO(t0))
	require.NoError(t, err)

	clk.Advance(3 * time.Hour)
	got, err := repo.GetByID(ctx, "legacy")
	require.NoError(t, err)
	assert.True(t, got.DateCoerced)
	assert.True(t, got.Date.Equal(clk.Now()))
}

func TestSubscribeReceivesWrites(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	updates := make(chan []core.Expense, 4)
	unsub, err := repo.Subscribe(ctx, func(r []core.Expense) { updates <- r }, nil)
	require.NoError(t, err)
	defer unsub()

	wait := func() []core.Expense {
		select {
		case r := <-updates:
			return r
		case <-time.After(2 * time.Second):
			t.Fatal("no snapshot")
			return nil
		}
	}
	assert.Empty(t, wait())

	_, err = repo.Create(ctx, sample("bakso", 20000, t0))
	require.NoError(t, err)
	got := wait()
	require.Len(t, got, 1)
	assert.Equal(t, "bakso", got[0].Title)
}
