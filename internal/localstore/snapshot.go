package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"finanzen/internal/core"
	applog "finanzen/internal/log"
)

// SnapshotKey is the single slot holding the serialized financial state.
const SnapshotKey = "financial_snapshot"

// SnapshotStore reads and writes core.Snapshot blobs through a KV.
type SnapshotStore struct {
	kv KV
}

func NewSnapshotStore(kv KV) *SnapshotStore {
	return &SnapshotStore{kv: kv}
}

// Save serializes s into the snapshot slot.
func (s *SnapshotStore) Save(ctx context.Context, snap core.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, SnapshotKey, string(body)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or the empty snapshot when none exists.
// A read error is returned alongside the empty snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (core.Snapshot, error) {
	raw, ok, err := s.kv.Get(ctx, SnapshotKey)
	if err != nil {
		return core.EmptySnapshot(), fmt.Errorf("read snapshot: %w", err)
	}
	if !ok {
		return core.EmptySnapshot(), nil
	}
	return DecodeSnapshot(ctx, []byte(raw)), nil
}

// Clear removes the snapshot slot.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, SnapshotKey); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot decodes each field independently; a missing or malformed
// field keeps its default instead of rejecting the whole blob.
func DecodeSnapshot(ctx context.Context, raw []byte) core.Snapshot {
	def := core.EmptySnapshot()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		logger(ctx).WarnContext(ctx, "Snapshot is not a JSON object, using defaults", "error", err)
		return def
	}

	snap := core.Snapshot{
		Onboarded:      field(ctx, fields, "onboarded", def.Onboarded),
		Currency:       field(ctx, fields, "currency", def.Currency),
		Income:         field(ctx, fields, "income", def.Income),
		FixedExpenses:  field(ctx, fields, "fixedExpenses", def.FixedExpenses),
		Goals:          field(ctx, fields, "goals", def.Goals),
		Budgets:        field(ctx, fields, "budgets", def.Budgets),
		Transactions:   field(ctx, fields, "transactions", def.Transactions),
		LastResetMonth: field(ctx, fields, "lastResetMonth", def.LastResetMonth),
	}
	if snap.Currency == "" {
		snap.Currency = def.Currency
	}
	for i := range snap.Goals {
		if snap.Goals[i].Deposits == nil {
			snap.Goals[i].Deposits = []core.GoalDeposit{}
		}
	}
	for i := range snap.Budgets {
		if snap.Budgets[i].Expenses == nil {
			snap.Budgets[i].Expenses = []core.BudgetExpense{}
		}
	}
	return snap
}

func field[T any](ctx context.Context, fields map[string]json.RawMessage, name string, def T) T {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger(ctx).WarnContext(ctx, "Malformed snapshot field, using default", "field", name, "error", err)
		return def
	}
	return v
}

func logger(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentLocal)
}
