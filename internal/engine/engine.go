// Package engine holds the canonical in-memory financial state. Every action
// applies its change locally first, then, while the remote store is usable,
// persists it in the background and swaps temporary ids for server ids in
// place. Any remote failure demotes the session to local-only mode and writes
// the on-device snapshot.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"finanzen/internal/classify"
	"finanzen/internal/core"
	"finanzen/internal/dates"
	"finanzen/internal/insights"
	"finanzen/internal/localstore"
	applog "finanzen/internal/log"
	"finanzen/internal/remote"
)

// Change describes a remote write that succeeded.
type Change struct {
	Entity string
	Op     string
	ID     string
	UserID string
}

// Change entities and operations.
const (
	EntityIncome       = "income"
	EntityFixedExpense = "fixed_expense"
	EntityGoal         = "goal"
	EntityDeposit      = "goal_deposit"
	EntityBudget       = "budget"
	EntityTransaction  = "transaction"
	EntityOnboarding   = "onboarding"
	EntityProfile      = "profile"
	EntityAccount      = "account"

	OpCreate  = "create"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpReplace = "replace"
	OpReset   = "reset"
)

// Notifier is told about every successful remote write.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change) error

func (f NotifierFunc) Notify(ctx context.Context, c Change) error { return f(ctx, c) }

// Option configures an Engine.
type Option func(*Engine)

// WithRemote enables the remote store. Without it the engine is local-only.
func WithRemote(s remote.Store) Option {
	return func(e *Engine) { e.remote = s }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSnapshotDebounce sets how long local snapshot writes are coalesced.
func WithSnapshotDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// WithCategoryTTL sets how long budget-category reference data is trusted.
func WithCategoryTTL(d time.Duration) Option {
	return func(e *Engine) { e.categoryTTL = d }
}

// WithInsightTable replaces the keyword table of the category breakdown.
func WithInsightTable(t classify.Table) Option {
	return func(e *Engine) { e.insightTable = t }
}

// WithDepositClassifier replaces the goal-name heuristic for deposit kinds.
func WithDepositClassifier(fn func(goalName string) core.DepositKind) Option {
	return func(e *Engine) { e.depositKind = fn }
}

// WithTempIDs replaces the temporary id generator.
func WithTempIDs(fn func() string) Option {
	return func(e *Engine) { e.newTempID = fn }
}

type Engine struct {
	remote       remote.Store
	local        *localstore.SnapshotStore
	notifier     Notifier
	now          func() time.Time
	debounce     time.Duration
	categoryTTL  time.Duration
	insightTable classify.Table
	depositKind  func(string) core.DepositKind
	newTempID    func() string

	mu         sync.Mutex
	sess       *Session
	onboarded  bool
	currency   string
	income     *collection[core.Entry]
	fixed      *collection[core.Entry]
	goals      *collection[core.Goal]
	budgets    *collection[core.Budget]
	txs        *collection[core.Transaction]
	weekOffset int

	// snapshot writes
	dirty     bool
	saveTimer *time.Timer
	saveSeq   uint64
	saveMu    sync.Mutex
	savedSeq  uint64

	wg sync.WaitGroup
}

// New returns an engine with empty state and a local-only session. Call Load
// to sign a user in.
func New(local *localstore.SnapshotStore, opts ...Option) *Engine {
	e := &Engine{
		local:        local,
		now:          time.Now,
		debounce:     500 * time.Millisecond,
		categoryTTL:  time.Hour,
		insightTable: classify.DefaultInsightBuckets,
		depositKind:  classify.DepositKind,
		newTempID:    NewTempID,
		income:       newCollection(func(v *core.Entry) *string { return &v.ID }),
		fixed:        newCollection(func(v *core.Entry) *string { return &v.ID }),
		goals:        newCollection(func(v *core.Goal) *string { return &v.ID }),
		budgets:      newCollection(func(v *core.Budget) *string { return &v.ID }),
		txs:          newCollection(func(v *core.Transaction) *string { return &v.ID }),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sess = newSession("", false, e.categoryTTL, e.now)
	e.applySnapshotLocked(core.EmptySnapshot())
	return e
}

// Reads

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() core.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked(context.Background(), false)
	return e.snapshotLocked()
}

func (e *Engine) Totals() insights.Totals {
	return insights.Compute(e.Snapshot())
}

// WeeklySpending buckets the ledger for the currently selected week.
func (e *Engine) WeeklySpending() insights.Week {
	snap := e.Snapshot()
	return insights.WeeklySpending(snap.Transactions, e.now(), e.WeekOffset())
}

func (e *Engine) CategoryBreakdown() []insights.CategoryAmount {
	snap := e.Snapshot()
	return insights.CategoryBreakdown(snap.Budgets, snap.FixedExpenses, e.insightTable)
}

func (e *Engine) MonthlyTrend() []insights.TrendPoint {
	return insights.MonthlyTrend(e.Totals(), e.now())
}

// RemoteUsable reports whether mutations are currently persisted remotely.
func (e *Engine) RemoteUsable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteReadyLocked()
}

// LastError returns the most recent demotion cause of the active session.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.lastErr
}

func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.userID
}

func (e *Engine) WeekOffset() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.weekOffset
}

// State

func (e *Engine) snapshotLocked() core.Snapshot {
	return core.Snapshot{
		Onboarded:      e.onboarded,
		Currency:       e.currency,
		Income:         e.income.list(),
		FixedExpenses:  e.fixed.list(),
		Goals:          e.goals.list(),
		Budgets:        e.budgets.list(),
		Transactions:   e.txs.list(),
		LastResetMonth: e.sess.lastResetMonth,
	}.Clone()
}

func (e *Engine) applySnapshotLocked(s core.Snapshot) {
	s = s.Clone()
	e.onboarded = s.Onboarded
	e.currency = s.Currency
	if e.currency == "" {
		e.currency = core.DefaultCurrency
	}
	// Derived sums are never trusted from a stored blob.
	now := e.now()
	stamps := make(map[string]int64, len(s.Transactions))
	for _, t := range s.Transactions {
		if t.Timestamp != nil {
			stamps[t.ID] = *t.Timestamp
		}
	}
	for i := range s.Goals {
		g := &s.Goals[i]
		for j := range g.Deposits {
			if ms, ok := stamps[g.Deposits[j].TransactionID]; ok {
				g.Deposits[j].Date = dates.FormatStamp(time.UnixMilli(ms), now)
			}
		}
		g.SortDeposits(now)
		g.Recompute()
	}
	for i := range s.Budgets {
		s.Budgets[i].Recompute(now)
	}
	e.income.reset(s.Income)
	e.fixed.reset(s.FixedExpenses)
	e.goals.reset(s.Goals)
	e.budgets.reset(s.Budgets)
	e.txs.reset(s.Transactions)
	e.sess.lastResetMonth = s.LastResetMonth
}

func (e *Engine) remoteReadyLocked() bool {
	return e.remote != nil && e.sess.userID != "" && e.sess.remoteUsable
}

// Remote phase

type job struct {
	op   string
	sess *Session
	run  func(ctx context.Context, s *Session, parentID string) error
}

// persistLocked schedules the remote phase of a mutation. While the remote is
// unusable it schedules a snapshot write instead. A job whose parent still
// carries a temporary id waits until that parent is reconciled.
func (e *Engine) persistLocked(ctx context.Context, op, parentID string, run func(ctx context.Context, s *Session, parentID string) error) {
	if !e.remoteReadyLocked() {
		e.scheduleSaveLocked()
		return
	}
	j := job{op: op, sess: e.sess, run: run}
	if IsTempID(parentID) {
		e.sess.waiting[parentID] = append(e.sess.waiting[parentID], j)
		return
	}
	e.startLocked(ctx, j, parentID)
}

// touchLocked covers mutations with no remote call of their own.
func (e *Engine) touchLocked() {
	if !e.remoteReadyLocked() {
		e.scheduleSaveLocked()
	}
}

func (e *Engine) startLocked(ctx context.Context, j job, parentID string) {
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if !e.usable(j.sess) {
			return
		}
		if err := j.run(ctx, j.sess, parentID); err != nil {
			e.demote(ctx, j.sess, j.op, err)
		}
	}()
}

func (e *Engine) usable(s *Session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess == s && s.remoteUsable
}

// reconciledLocked records tempID -> serverID and releases writes waiting on it.
func (e *Engine) reconciledLocked(ctx context.Context, s *Session, tempID, serverID string) {
	s.aliases[tempID] = serverID
	jobs := s.waiting[tempID]
	delete(s.waiting, tempID)
	for _, j := range jobs {
		e.startLocked(ctx, j, serverID)
	}
	logger(ctx).DebugContext(ctx, "Reconciled record", "temp_id", tempID, "server_id", serverID)
}

type outcome int

const (
	kept outcome = iota
	gone
	stale
)

// locked runs fn under the engine lock when s is still the active session.
// fn reports false when the record it looks for no longer exists.
func locked[T any](e *Engine, s *Session, fn func() (T, bool)) (T, outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var zero T
	if e.sess != s {
		return zero, stale
	}
	v, ok := fn()
	if !ok {
		return zero, gone
	}
	return v, kept
}

// demote tags err with op, marks the session local-only and writes the
// snapshot right away. Failures of a replaced session are only logged.
func (e *Engine) demote(ctx context.Context, s *Session, op string, err error) {
	opErr := &OpError{Op: op, Err: err}

	e.mu.Lock()
	if e.sess != s {
		e.mu.Unlock()
		logger(ctx).InfoContext(ctx, "Ignoring remote failure of a previous session", "operation", op, "error", err)
		return
	}
	s.lastErr = opErr
	if s.remoteUsable {
		s.remoteUsable = false
		logger(ctx).WarnContext(ctx, "Remote store unusable, continuing locally",
			"operation", op,
			"error", err,
			"user_id", s.userID)
	}
	s.waiting = map[string][]job{}
	seq, snap := e.takeSnapshotLocked()
	e.mu.Unlock()

	e.writeSnapshot(ctx, seq, snap)
}

func (e *Engine) notify(ctx context.Context, s *Session, entity, op, id string) {
	if e.notifier == nil {
		return
	}
	c := Change{Entity: entity, Op: op, ID: id, UserID: s.userID}
	if err := e.notifier.Notify(ctx, c); err != nil {
		logger(ctx).WarnContext(ctx, "Failed to publish change", "entity", entity, "operation", op, "id", id, "error", err)
	}
}

// ignoreMissing treats deleting an already deleted row as success.
func ignoreMissing(err error) error {
	if errors.Is(err, remote.ErrNotFound) {
		return nil
	}
	return err
}

// Local snapshot

func (e *Engine) scheduleSaveLocked() {
	e.dirty = true
	if e.saveTimer != nil {
		return
	}
	e.saveTimer = time.AfterFunc(e.debounce, func() {
		e.Flush(context.Background())
	})
}

func (e *Engine) takeSnapshotLocked() (uint64, core.Snapshot) {
	if e.saveTimer != nil {
		e.saveTimer.Stop()
		e.saveTimer = nil
	}
	e.dirty = false
	e.saveSeq++
	return e.saveSeq, e.snapshotLocked()
}

// Flush writes a pending snapshot immediately.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	if !e.dirty {
		e.mu.Unlock()
		return
	}
	seq, snap := e.takeSnapshotLocked()
	e.mu.Unlock()

	e.writeSnapshot(ctx, seq, snap)
}

// writeSnapshot persists snap unless a newer snapshot was already written.
// Errors are logged and swallowed.
func (e *Engine) writeSnapshot(ctx context.Context, seq uint64, snap core.Snapshot) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if seq <= e.savedSeq {
		return
	}
	if err := e.local.Save(ctx, snap); err != nil {
		logger(ctx).ErrorContext(ctx, "Failed to write local snapshot", "error", err)
		return
	}
	e.savedSeq = seq
	logger(ctx).DebugContext(ctx, "Local snapshot written", "seq", seq)
}

// Wait blocks until every remote write started so far has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close waits for in-flight remote writes and flushes the snapshot.
func (e *Engine) Close(ctx context.Context) {
	e.Wait()
	e.Flush(ctx)
}

func logger(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentEngine)
}
