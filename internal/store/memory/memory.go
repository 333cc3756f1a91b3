// Package memory is an in-process expense store for development and tests.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/store"
)

var defaultCategories = []core.Category{
	{Name: "Food", Icon: "restaurant", Color: "#FFF4E5", IconColor: "#F59E0B"},
	{Name: "Transport", Icon: "car", Color: "#E0F2FE", IconColor: "#0284C7"},
	{Name: "Shopping", Icon: "bag", Color: "#FCE7F3", IconColor: "#DB2777"},
	{Name: "Bills", Icon: "receipt", Color: "#EDE9FE", IconColor: "#7C3AED"},
	{Name: "Entertainment", Icon: "game-controller", Color: "#DCFCE7", IconColor: "#16A34A"},
	{Name: "Health", Icon: "medkit", Color: "#FEE2E2", IconColor: "#DC2626"},
	{Name: "Other", Icon: "ellipsis-horizontal", Color: "#F3F4F6", IconColor: "#4B5563"},
}

type Store struct {
	mu    sync.Mutex
	clock dates.Clock
	cats  []core.Category
	items []core.Expense
	hub   *store.Hub
}

func New(clock dates.Clock, cats []core.Category) *Store {
	s := &Store{clock: clock, cats: dedupe(cats)}
	s.hub = store.NewHub(s.GetAll)
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, one
// "name|icon|color|iconColor" per line. Missing file means defaults.
func NewFromFiles(clock dates.Clock, base string) *Store {
	cats := readCategories(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = defaultCategories
	}
	return New(clock, cats)
}

func (s *Store) Create(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", store.Wrap("create", "", err)
	}
	now := s.clock.Now()
	e.ID = uuid.NewString()
	e.Date = e.Date.UTC().Truncate(time.Millisecond)
	e.CreatedAt = now.UTC().Truncate(time.Millisecond)
	e.UpdatedAt = e.CreatedAt

	s.mu.Lock()
	s.items = append([]core.Expense{e}, s.items...)
	s.mu.Unlock()

	_ = s.hub.Notify(ctx)
	return e.ID, nil
}

// GetAll returns every record, most recently created first. Records created
// at the same instant keep newest-insert-first order.
func (s *Store) GetAll(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	out := append([]core.Expense(nil), s.items...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetByID(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, store.Wrap("get", id, store.ErrNotFound)
}

func (s *Store) Update(ctx context.Context, id string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return store.Wrap("update", id, err)
	}
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return store.Wrap("update", id, store.ErrNotFound)
	}
	cur := &s.items[idx]
	cur.Title = e.Title
	cur.Amount = e.Amount
	cur.Category = e.Category
	cur.Icon = e.Icon
	cur.Date = e.Date.UTC().Truncate(time.Millisecond)
	cur.UpdatedAt = s.clock.Now().UTC().Truncate(time.Millisecond)
	s.mu.Unlock()

	_ = s.hub.Notify(ctx)
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return store.Wrap("delete", id, store.ErrNotFound)
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.mu.Unlock()

	_ = s.hub.Notify(ctx)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, onUpdate func([]core.Expense), onError func(error)) (store.Unsubscribe, error) {
	return s.hub.Subscribe(ctx, onUpdate, onError)
}

// Notify pushes a fresh snapshot to subscribers.
func (s *Store) Notify(ctx context.Context) error {
	return s.hub.Notify(ctx)
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

// Close drops every subscriber.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func readCategories(path string) []core.Category {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.Category
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		out = append(out, core.Category{Name: parts[0], Icon: parts[1], Color: parts[2], IconColor: parts[3]})
	}
	return out
}

// dedupe drops blank and repeated names, keeping input order, and assigns
// IDs to categories that have none.
func dedupe(in []core.Category) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		key := strings.ToLower(c.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if c.ID == "" {
			c.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
		}
		out = append(out, c)
	}
	return out
}

var (
	_ store.ExpenseStore   = (*Store)(nil)
	_ store.ExpenseGetter  = (*Store)(nil)
	_ store.CategoryReader = (*Store)(nil)
	_ store.Notifier       = (*Store)(nil)
)
