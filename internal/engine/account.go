package engine

import (
	"context"
	"fmt"
	"regexp"

	"finanzen/internal/core"
	"finanzen/internal/insights"
	"finanzen/internal/remote"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// CompleteOnboarding marks the onboarding flow as finished.
func (e *Engine) CompleteOnboarding(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onboarded = true
	e.persistLocked(ctx, "completeOnboarding", "", func(ctx context.Context, s *Session, _ string) error {
		if err := e.remote.UpdateOnboarding(ctx, remote.Onboarding{UserID: s.userID, Completed: true}); err != nil {
			return fmt.Errorf("update onboarding: %w", err)
		}
		e.notify(ctx, s, EntityOnboarding, OpUpdate, s.userID)
		return nil
	})
}

// SetCurrency stores the preferred ISO 4217 currency code.
func (e *Engine) SetCurrency(ctx context.Context, code string) error {
	if !currencyPattern.MatchString(code) {
		return fmt.Errorf("set currency %q: must be a three-letter upper-case code", code)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.currency = code
	e.persistLocked(ctx, "setCurrency", "", func(ctx context.Context, s *Session, _ string) error {
		if err := e.remote.UpsertProfile(ctx, remote.Profile{UserID: s.userID, Currency: code}); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		e.notify(ctx, s, EntityProfile, OpUpdate, s.userID)
		return nil
	})
	return nil
}

// ResetAllData wipes the user's remote rows and the local snapshot, then
// starts over from the default state.
func (e *Engine) ResetAllData(ctx context.Context) {
	e.mu.Lock()
	var txIDs []string
	e.txs.each(func(t *core.Transaction) {
		if !IsTempID(t.ID) {
			txIDs = append(txIDs, t.ID)
		}
	})
	e.applySnapshotLocked(core.EmptySnapshot())
	e.weekOffset = 0
	e.rolloverLocked(ctx, true)
	if e.saveTimer != nil {
		e.saveTimer.Stop()
		e.saveTimer = nil
	}
	e.dirty = false
	e.saveSeq++
	seq := e.saveSeq
	e.persistLocked(ctx, "resetAllData", "", func(ctx context.Context, s *Session, _ string) error {
		if err := e.remote.DeleteAllForUser(ctx, s.userID); err != nil {
			return fmt.Errorf("delete user data: %w", err)
		}
		for _, txID := range txIDs {
			e.notify(ctx, s, EntityTransaction, OpDelete, txID)
		}
		if err := e.remote.CreateOnboarding(ctx, remote.Onboarding{UserID: s.userID}); err != nil {
			return fmt.Errorf("create onboarding: %w", err)
		}
		if err := e.remote.UpsertProfile(ctx, remote.Profile{UserID: s.userID, Currency: core.DefaultCurrency}); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		e.notify(ctx, s, EntityAccount, OpReset, s.userID)
		return nil
	})
	e.mu.Unlock()

	e.saveMu.Lock()
	if err := e.local.Clear(ctx); err != nil {
		logger(ctx).ErrorContext(ctx, "Failed to clear local snapshot", "error", err)
	}
	e.savedSeq = max(e.savedSeq, seq)
	e.saveMu.Unlock()
}

// NavigateWeek moves the selected week by delta and returns the new offset.
// Future weeks are never selected.
func (e *Engine) NavigateWeek(delta int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weekOffset = insights.ClampWeekOffset(e.weekOffset + delta)
	return e.weekOffset
}

func (e *Engine) SetWeekOffset(offset int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weekOffset = insights.ClampWeekOffset(offset)
	return e.weekOffset
}
