package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/log"
	"dompet/internal/store/memory"
)

type fakeMirror struct {
	mu        sync.Mutex
	rows      map[string]core.Expense
	replaced  int
	deleted   []string
	upsertErr error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{rows: make(map[string]core.Expense)}
}

func (m *fakeMirror) UpsertExpense(_ context.Context, e core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.rows[e.ID] = e
	return nil
}

func (m *fakeMirror) DeleteExpense(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *fakeMirror) ReplaceAll(_ context.Context, records []core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make(map[string]core.Expense, len(records))
	for _, e := range records {
		m.rows[e.ID] = e
	}
	m.replaced++
	return nil
}

func (m *fakeMirror) snapshot() (map[string]core.Expense, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]core.Expense, len(m.rows))
	for k, v := range m.rows {
		out[k] = v
	}
	return out, m.replaced
}

type consumerFunc func(ctx context.Context, queue string, handler amqp.Handler) error

func (f consumerFunc) ConsumeChanges(ctx context.Context, queue string, handler amqp.Handler) error {
	return f(ctx, queue, handler)
}

var now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, st *memory.Store, title string, amount int64) string {
	t.Helper()
	id, err := st.Create(context.Background(), core.Expense{
		Title:    title,
		Amount:   core.Money{Rupiah: amount},
		Category: "Food",
		Icon:     "restaurant",
		Date:     now,
	})
	require.NoError(t, err)
	return id
}

func TestHandleChange_UpsertsCurrentRecord(t *testing.T) {
	st := memory.New(dates.NewManualClock(now), nil)
	mirror := newFakeMirror()
	w := NewMirrorWorker(st, mirror, log.Discard())
	ctx := context.Background()

	id := seed(t, st, "Nasi goreng", 25000)
	require.NoError(t, w.HandleChange(ctx, &amqp.ExpenseChangedMessage{ID: id, Op: amqp.OpCreated}))

	rows, _ := mirror.snapshot()
	require.Contains(t, rows, id)
	assert.Equal(t, "Nasi goreng", rows[id].Title)
	assert.Equal(t, int64(25000), rows[id].Amount.Rupiah)
}

func TestHandleChange_DeletesRemovedRecords(t *testing.T) {
	st := memory.New(dates.NewManualClock(now), nil)
	mirror := newFakeMirror()
	w := NewMirrorWorker(st, mirror, log.Discard())
	ctx := context.Background()

	id := seed(t, st, "Kopi", 18000)
	require.NoError(t, w.HandleChange(ctx, &amqp.ExpenseChangedMessage{ID: id, Op: amqp.OpCreated}))
	require.NoError(t, st.Delete(ctx, id))

	// An update that arrives after the record is gone removes the row.
	require.NoError(t, w.HandleChange(ctx, &amqp.ExpenseChangedMessage{ID: id, Op: amqp.OpUpdated}))
	rows, _ := mirror.snapshot()
	assert.NotContains(t, rows, id)

	require.NoError(t, w.HandleChange(ctx, &amqp.ExpenseChangedMessage{ID: "other", Op: amqp.OpDeleted}))
	assert.Equal(t, []string{id, "other"}, mirror.deleted)
}

func TestHandleChange_MirrorFailureIsReturned(t *testing.T) {
	st := memory.New(dates.NewManualClock(now), nil)
	mirror := newFakeMirror()
	mirror.upsertErr = errors.New("quota exceeded")
	w := NewMirrorWorker(st, mirror, log.Discard())

	id := seed(t, st, "Ojek", 15000)
	err := w.HandleChange(context.Background(), &amqp.ExpenseChangedMessage{ID: id, Op: amqp.OpCreated})
	require.Error(t, err)
	assert.ErrorIs(t, err, mirror.upsertErr)
}

func TestResync(t *testing.T) {
	st := memory.New(dates.NewManualClock(now), nil)
	mirror := newFakeMirror()
	mirror.rows["stale"] = core.Expense{ID: "stale"}
	w := NewMirrorWorker(st, mirror, log.Discard())

	a := seed(t, st, "Nasi", 25000)
	b := seed(t, st, "Sate", 30000)
	require.NoError(t, w.Resync(context.Background()))

	rows, replaced := mirror.snapshot()
	assert.Equal(t, 1, replaced)
	assert.Len(t, rows, 2)
	assert.Contains(t, rows, a)
	assert.Contains(t, rows, b)
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	st := memory.New(dates.NewManualClock(now), nil)
	mirror := newFakeMirror()
	w := NewMirrorWorker(st, mirror, log.Discard())
	id := seed(t, st, "Bakso", 20000)

	ctx, cancel := context.WithCancel(context.Background())
	var gotQueue string
	consumer := consumerFunc(func(ctx context.Context, queue string, handler amqp.Handler) error {
		gotQueue = queue
		if err := handler(ctx, &amqp.ExpenseChangedMessage{ID: id, Op: amqp.OpUpdated}); err != nil {
			return err
		}
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	err := w.Run(ctx, consumer, "dompet_mirror", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "dompet_mirror", gotQueue)

	rows, replaced := mirror.snapshot()
	assert.Equal(t, 1, replaced, "startup resync")
	assert.Contains(t, rows, id)
}

func TestRun_ConsumerFailureEndsRun(t *testing.T) {
	st := memory.New(dates.NewManualClock(now), nil)
	w := NewMirrorWorker(st, newFakeMirror(), log.Discard())
	boom := errors.New("channel closed")

	err := w.Run(context.Background(), consumerFunc(func(context.Context, string, amqp.Handler) error {
		return boom
	}), "q", time.Hour)
	assert.ErrorIs(t, err, boom)
}

// slowSource holds GetAll after reading until released.
type slowSource struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (s *slowSource) GetAll(ctx context.Context) ([]core.Expense, error) {
	records, err := s.Store.GetAll(ctx)
	close(s.entered)
	<-s.release
	return records, err
}

func TestResyncDoesNotOverwriteConcurrentChange(t *testing.T) {
	st := memory.New(dates.NewManualClock(now), nil)
	old := seed(t, st, "Nasi", 25000)
	src := &slowSource{Store: st, entered: make(chan struct{}), release: make(chan struct{})}
	mirror := newFakeMirror()
	w := NewMirrorWorker(src, mirror, log.Discard())

	resynced := make(chan error, 1)
	go func() { resynced <- w.Resync(context.Background()) }()
	<-src.entered

	fresh := seed(t, st, "Sate", 30000)
	handled := make(chan error, 1)
	go func() {
		handled <- w.HandleChange(context.Background(), &amqp.ExpenseChangedMessage{ID: fresh, Op: amqp.OpCreated})
	}()

	select {
	case <-handled:
		t.Fatal("change applied while a resync was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(src.release)
	require.NoError(t, <-resynced)
	require.NoError(t, <-handled)

	rows, _ := mirror.snapshot()
	assert.Contains(t, rows, old)
	assert.Contains(t, rows, fresh, "change survives the older resync snapshot")
}
