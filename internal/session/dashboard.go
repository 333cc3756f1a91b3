// Package session holds the state of one open dashboard: the filter the
// user picked, the latest record snapshot, and the midnight rollover that
// moves the view to the new day.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"dompet/internal/analytics"
	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/log"
	"dompet/internal/store"
)

var ErrClosed = errors.New("dashboard closed")

type Options struct {
	// ListLimit caps the recent list; zero means analytics.DefaultListLimit.
	ListLimit int
	// OnChange is called after the snapshot, the filter or the feed state
	// changed. It runs without any dashboard lock held and may call View.
	OnChange func()
	Logger   *log.Logger
}

// View is everything a client needs to render the dashboard.
type View struct {
	Filter  analytics.Filter
	Summary analytics.Summary
	Items   []analytics.Item
	Loaded  bool
	Err     error
}

type Dashboard struct {
	store  store.ExpenseStore
	clock  dates.Clock
	opts   Options
	logger *log.Logger

	mu             sync.Mutex
	filter         analytics.Filter
	records        []core.Expense
	generation     uint64
	loaded         bool
	err            error
	started        bool
	closed         bool
	ctx            context.Context
	cancel         context.CancelFunc
	unsubscribe    store.Unsubscribe
	cancelRollover dates.CancelFunc
}

func New(st store.ExpenseStore, clock dates.Clock, opts Options) *Dashboard {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Dashboard{
		store:  st,
		clock:  clock,
		opts:   opts,
		logger: logger.WithComponent(log.ComponentSession),
		filter: analytics.DefaultFilter(clock.Now()),
	}
}

// Start subscribes to the store and arms the midnight rollover. The first
// snapshot arrives asynchronously through OnChange.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = true
	d.ctx, d.cancel = context.WithCancel(ctx)
	subCtx := d.ctx
	d.mu.Unlock()

	unsub, err := d.store.Subscribe(subCtx, d.onSnapshot, d.onFeedError)
	if err != nil {
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		d.changed()
		return err
	}
	cancelRollover := dates.ScheduleDailyRollover(d.clock, d.rollover)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		unsub()
		cancelRollover()
		return ErrClosed
	}
	d.unsubscribe = unsub
	d.cancelRollover = cancelRollover
	d.mu.Unlock()
	return nil
}

// SetCategory narrows every figure to one category.
func (d *Dashboard) SetCategory(c core.Category) {
	d.update(func(f *analytics.Filter) { f.Category = &c })
}

func (d *Dashboard) ClearCategory() {
	d.update(func(f *analytics.Filter) { f.Category = nil })
}

// SetDateMode picks the focused day. selected is only used in custom mode.
func (d *Dashboard) SetDateMode(mode core.DateFilterMode, selected time.Time) error {
	if !mode.IsValid() {
		return core.ErrInvalidMode
	}
	if mode == core.ModeCustom && selected.IsZero() {
		return core.ErrInvalidDate
	}
	d.update(func(f *analytics.Filter) {
		f.Mode = mode
		if mode == core.ModeCustom {
			f.SelectedDate = selected
		}
	})
	return nil
}

// Reset returns to today with no category.
func (d *Dashboard) Reset() {
	now := d.clock.Now()
	d.update(func(f *analytics.Filter) { *f = analytics.DefaultFilter(now) })
}

func (d *Dashboard) Filter() analytics.Filter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

// View computes the summary and list for the current filter and snapshot.
func (d *Dashboard) View() View {
	d.mu.Lock()
	filter := d.filter
	records := d.records
	loaded := d.loaded
	err := d.err
	d.mu.Unlock()

	now := d.clock.Now()
	return View{
		Filter:  filter,
		Summary: analytics.Compute(records, filter, now),
		Items:   analytics.FilterExpenses(records, filter, now, d.opts.ListLimit),
		Loaded:  loaded,
		Err:     err,
	}
}

// Close releases the subscription and the rollover timer. It is safe to
// call more than once.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	unsub, cancelRollover, cancel := d.unsubscribe, d.cancelRollover, d.cancel
	d.unsubscribe, d.cancelRollover = nil, nil
	d.mu.Unlock()

	if cancelRollover != nil {
		cancelRollover()
	}
	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
}

func (d *Dashboard) update(fn func(*analytics.Filter)) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	fn(&d.filter)
	d.mu.Unlock()
	d.changed()
}

func (d *Dashboard) onSnapshot(records []core.Expense) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.records = records
	d.generation++
	d.loaded = true
	d.mu.Unlock()
	d.changed()
}

func (d *Dashboard) onFeedError(err error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.err = err
	d.mu.Unlock()
	d.logger.Warn("Record feed failed", log.FieldOperation, log.OpSubscribe, log.FieldError, err)
	d.changed()
}

// rollover moves the view to the new day and re-reads the list.
func (d *Dashboard) rollover() {
	now := d.clock.Now()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.filter.Mode = core.ModeToday
	d.filter.SelectedDate = now
	ctx := d.ctx
	gen := d.generation
	d.mu.Unlock()

	d.logger.Info("Day rolled over, filter reset to today", log.FieldOperation, log.OpRollover)
	d.changed()

	records, err := d.store.GetAll(ctx)
	if err != nil {
		d.logger.Warn("Reload after rollover failed", log.FieldOperation, log.OpRollover, log.FieldError, err)
		return
	}

	d.mu.Lock()
	// A feed snapshot that landed during the read is newer than ours.
	if d.closed || d.generation != gen {
		d.mu.Unlock()
		d.logger.Debug("Dropping stale rollover reload", log.FieldOperation, log.OpRollover)
		return
	}
	d.records = records
	d.generation++
	d.loaded = true
	d.mu.Unlock()
	d.changed()
}

func (d *Dashboard) changed() {
	if d.opts.OnChange != nil {
		d.opts.OnChange()
	}
}
