package store

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"dompet/internal/core"
)

// Loader reads the full, ordered record list from a backend.
type Loader func(ctx context.Context) ([]core.Expense, error)

// Hub fans snapshots out to subscribers. Backends call Notify after every
// write; each subscriber receives the newest snapshot on its own goroutine
// and never sees an older snapshot after a newer one.
type Hub struct {
	load  Loader
	group singleflight.Group
	gen   atomic.Uint64

	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
}

type snapshot struct {
	version uint64
	records []core.Expense
}

type subscriber struct {
	onUpdate func([]core.Expense)
	onError  func(error)

	mu          sync.Mutex
	pending     *snapshot
	delivered   uint64
	err         error
	closed      bool
	wake        chan struct{}
	done        chan struct{}
	releaseOnce sync.Once
}

func NewHub(load Loader) *Hub {
	return &Hub{load: load, subs: make(map[uint64]*subscriber)}
}

// Subscribe loads the current snapshot, delivers it, and keeps delivering
// after every Notify until the returned func is called, ctx is done, or a
// reload fails.
func (h *Hub) Subscribe(ctx context.Context, onUpdate func([]core.Expense), onError func(error)) (Unsubscribe, error) {
	s := &subscriber{
		onUpdate: onUpdate,
		onError:  onError,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = s
	h.mu.Unlock()

	snap, err := h.loadVersion(ctx, h.gen.Load())
	if err != nil {
		h.remove(id)
		return nil, Wrap("subscribe", "", err)
	}
	s.offer(snap)

	go s.run(ctx, func() { h.remove(id) })

	return func() {
		h.remove(id)
		s.release()
	}, nil
}

// Notify reloads the records and pushes them to every subscriber. A load
// failure is delivered to every current subscriber, which are then dropped.
func (h *Hub) Notify(ctx context.Context) error {
	v := h.gen.Add(1)
	snap, err := h.loadVersion(ctx, v)

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for id, s := range h.subs {
		subs = append(subs, s)
		if err != nil {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()

	if err != nil {
		err = Wrap("notify", "", err)
		for _, s := range subs {
			s.fail(err)
		}
		return err
	}
	for _, s := range subs {
		s.offer(snap)
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscriber without calling onError.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*subscriber)
	h.mu.Unlock()
	for _, s := range subs {
		s.release()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		s.release()
	}
}

// loadVersion coalesces loads that observed the same write generation.
// Every caller reads the generation after its write, so a shared load
// always starts after all of their writes. The load is detached from the
// caller's cancellation since other callers may be waiting on it.
func (h *Hub) loadVersion(ctx context.Context, v uint64) (snapshot, error) {
	res, err, _ := h.group.Do(strconv.FormatUint(v, 10), func() (any, error) {
		records, err := h.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return snapshot{version: v, records: records}, nil
	})
	if err != nil {
		return snapshot{}, err
	}
	return res.(snapshot), nil
}

func (s *subscriber) offer(snap snapshot) {
	s.mu.Lock()
	if s.closed || (s.pending != nil && s.pending.version > snap.version) || snap.version < s.delivered {
		s.mu.Unlock()
		return
	}
	s.pending = &snapshot{version: snap.version, records: cloneRecords(snap.records)}
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) release() {
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *subscriber) run(ctx context.Context, drop func()) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			drop()
			return
		case <-s.wake:
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		snap, err := s.pending, s.err
		s.pending = nil
		if snap != nil {
			s.delivered = snap.version
		}
		s.mu.Unlock()

		if snap != nil && err == nil && s.onUpdate != nil {
			s.onUpdate(snap.records)
		}
		if err != nil {
			if s.onError != nil {
				s.onError(err)
			}
			s.release()
			return
		}
	}
}

func cloneRecords(in []core.Expense) []core.Expense {
	if in == nil {
		return []core.Expense{}
	}
	out := make([]core.Expense, len(in))
	copy(out, in)
	return out
}
