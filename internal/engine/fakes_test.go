package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finanzen/internal/core"
	"finanzen/internal/localstore"
	"finanzen/internal/remote"
	"finanzen/internal/storage"
)

var errUnavailable = errors.New("remote unavailable")

// flakyStore wraps a real store and lets tests fail or hold individual calls.
type flakyStore struct {
	remote.Store

	mu         sync.Mutex
	fail       map[string]error
	holds      map[string][]chan struct{}
	calls      map[string]int
	categories func([]remote.CategoryRow) []remote.CategoryRow
}

func newFlakyStore(t *testing.T) *flakyStore {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return &flakyStore{
		Store: repo,
		fail:  map[string]error{},
		holds: map[string][]chan struct{}{},
		calls: map[string]int{},
	}
}

func (f *flakyStore) failOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

// hold makes the next call of method wait until the returned func is called.
func (f *flakyStore) hold(method string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[method] = append(f.holds[method], ch)
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *flakyStore) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *flakyStore) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *flakyStore) enter(method string) error {
	f.mu.Lock()
	f.calls[method]++
	var gate chan struct{}
	if q := f.holds[method]; len(q) > 0 {
		gate = q[0]
		f.holds[method] = q[1:]
	}
	err := f.fail[method]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-time.After(5 * time.Second):
			return errors.New("held call never released")
		}
	}
	return err
}

func (f *flakyStore) GetOnboarding(ctx context.Context, userID string) (*remote.Onboarding, error) {
	if err := f.enter("GetOnboarding"); err != nil {
		return nil, err
	}
	return f.Store.GetOnboarding(ctx, userID)
}

func (f *flakyStore) ListActiveCategories(ctx context.Context) ([]remote.CategoryRow, error) {
	if err := f.enter("ListActiveCategories"); err != nil {
		return nil, err
	}
	rows, err := f.Store.ListActiveCategories(ctx)
	if err == nil && f.categories != nil {
		rows = f.categories(rows)
	}
	return rows, err
}

func (f *flakyStore) CreateIncomeSource(ctx context.Context, r remote.EntryRow) (remote.EntryRow, error) {
	if err := f.enter("CreateIncomeSource"); err != nil {
		return remote.EntryRow{}, err
	}
	return f.Store.CreateIncomeSource(ctx, r)
}

func (f *flakyStore) UpdateIncomeSource(ctx context.Context, r remote.EntryRow) error {
	if err := f.enter("UpdateIncomeSource"); err != nil {
		return err
	}
	return f.Store.UpdateIncomeSource(ctx, r)
}

func (f *flakyStore) CreateFixedExpense(ctx context.Context, r remote.EntryRow) (remote.EntryRow, error) {
	if err := f.enter("CreateFixedExpense"); err != nil {
		return remote.EntryRow{}, err
	}
	return f.Store.CreateFixedExpense(ctx, r)
}

func (f *flakyStore) CreateGoal(ctx context.Context, r remote.GoalRow) (remote.GoalRow, error) {
	if err := f.enter("CreateGoal"); err != nil {
		return remote.GoalRow{}, err
	}
	return f.Store.CreateGoal(ctx, r)
}

func (f *flakyStore) CreateContribution(ctx context.Context, r remote.ContributionRow) (remote.ContributionRow, error) {
	if err := f.enter("CreateContribution"); err != nil {
		return remote.ContributionRow{}, err
	}
	return f.Store.CreateContribution(ctx, r)
}

func (f *flakyStore) CreateBudget(ctx context.Context, r remote.BudgetRow) (remote.BudgetRow, error) {
	if err := f.enter("CreateBudget"); err != nil {
		return remote.BudgetRow{}, err
	}
	return f.Store.CreateBudget(ctx, r)
}

func (f *flakyStore) CreateTransaction(ctx context.Context, r remote.TransactionRow) (remote.TransactionRow, error) {
	if err := f.enter("CreateTransaction"); err != nil {
		return remote.TransactionRow{}, err
	}
	return f.Store.CreateTransaction(ctx, r)
}

func (f *flakyStore) DeleteTransaction(ctx context.Context, id string) error {
	if err := f.enter("DeleteTransaction"); err != nil {
		return err
	}
	return f.Store.DeleteTransaction(ctx, id)
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// recorder collects published changes.
type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) Notify(_ context.Context, c Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func (r *recorder) has(entity, op string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.changes {
		if c.Entity == entity && c.Op == op {
			return true
		}
	}
	return false
}

var june15 = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	engine *Engine
	store  *flakyStore
	kv     *localstore.MemoryKV
	local  *localstore.SnapshotStore
	clock  *clock
}

func newHarness(t *testing.T, withRemote bool, opts ...Option) *harness {
	t.Helper()
	h := &harness{kv: localstore.NewMemoryKV(), clock: newClock(june15)}
	h.local = localstore.NewSnapshotStore(h.kv)
	all := []Option{WithClock(h.clock.now), WithSnapshotDebounce(time.Hour)}
	if withRemote {
		h.store = newFlakyStore(t)
		all = append(all, WithRemote(h.store))
	}
	h.engine = New(h.local, append(all, opts...)...)
	t.Cleanup(h.engine.Wait)
	return h
}

func (h *harness) login(t *testing.T, userID string) {
	t.Helper()
	h.engine.Load(context.Background(), userID)
	if h.store != nil && !h.engine.RemoteUsable() {
		t.Fatalf("Load(%q) left the remote unusable: %v", userID, h.engine.LastError())
	}
}

func (h *harness) saved(t *testing.T) core.Snapshot {
	t.Helper()
	if _, ok, _ := h.kv.Get(context.Background(), localstore.SnapshotKey); !ok {
		t.Fatal("no local snapshot written")
	}
	snap, err := h.local.Load(context.Background())
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	return snap
}
