package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finanzen/internal/cache"
	"finanzen/internal/core"
	"finanzen/internal/remote"
)

// FallbackCategory receives writes whose name matches no category.
const FallbackCategory = "Sonstiges"

// SavingsCategory is the ledger category of goal deposits.
const SavingsCategory = "Sparen"

// Session is the state scoped to one login: who is signed in, whether the
// remote store may be used, when budgets were last rolled over, and the
// category reference data. A new Session replaces the old one on every Load
// and on Logout; remote work started under an older Session is discarded.
type Session struct {
	userID         string
	remoteUsable   bool
	lastResetMonth string
	lastErr        error

	categories *cache.LRUCache[remote.CategoryRow]
	// aliases maps reconciled temporary ids to their server ids.
	aliases map[string]string
	// waiting holds writes that need a parent record's server id.
	waiting map[string][]job
}

func newSession(userID string, remoteUsable bool, categoryTTL time.Duration, now func() time.Time) *Session {
	return &Session{
		userID:       userID,
		remoteUsable: remoteUsable,
		categories:   cache.NewLRUCache[remote.CategoryRow](256, categoryTTL, cache.WithClock(now)),
		aliases:      map[string]string{},
		waiting:      map[string][]job{},
	}
}

func (s *Session) UserID() string { return s.userID }

// resolve maps a reconciled temporary id to its server id.
func (s *Session) resolve(id string) string {
	if server, ok := s.aliases[id]; ok {
		return server
	}
	return id
}

func categoryKey(name string) string {
	return "name:" + strings.ToLower(strings.TrimSpace(name))
}

func (s *Session) storeCategories(rows []remote.CategoryRow) {
	for _, c := range rows {
		if c.Active {
			s.categories.Set(categoryKey(c.Name), c)
		}
	}
}

func (s *Session) lookupCategory(name string) (remote.CategoryRow, bool) {
	if c, ok := s.categories.Get(categoryKey(name)); ok {
		return c, true
	}
	return s.categories.Get(categoryKey(FallbackCategory))
}

// resolveCategory maps a display name to a category row, case-insensitively,
// falling back to the catch-all. Expired reference data is fetched again once.
func (e *Engine) resolveCategory(ctx context.Context, s *Session, name string) (remote.CategoryRow, error) {
	if c, ok := s.lookupCategory(name); ok {
		return c, nil
	}
	rows, err := e.remote.ListActiveCategories(ctx)
	if err != nil {
		return remote.CategoryRow{}, fmt.Errorf("list categories: %w", err)
	}
	s.storeCategories(rows)
	if c, ok := s.lookupCategory(name); ok {
		return c, nil
	}
	return remote.CategoryRow{}, fmt.Errorf("%w: %q", core.ErrNoCategory, name)
}
