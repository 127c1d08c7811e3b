package engine

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// TempPrefix marks identifiers generated locally before the remote store
// assigned one.
const TempPrefix = "tmp_"

// NewTempID returns a fresh temporary identifier.
func NewTempID() string {
	return TempPrefix + uuid.NewString()
}

// IsTempID reports whether id was generated locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// collection keeps records addressable by id while preserving display order.
// An id appears at most once.
type collection[T any] struct {
	key   func(*T) *string
	order []string
	items map[string]*T
}

func newCollection[T any](key func(*T) *string) *collection[T] {
	return &collection[T]{key: key, items: map[string]*T{}}
}

func (c *collection[T]) reset(values []T) {
	c.order = make([]string, 0, len(values))
	c.items = make(map[string]*T, len(values))
	for _, v := range values {
		c.push(v)
	}
}

func (c *collection[T]) push(v T) {
	id := *c.key(&v)
	if p, ok := c.items[id]; ok {
		*p = v
		return
	}
	c.order = append(c.order, id)
	c.items[id] = &v
}

func (c *collection[T]) unshift(v T) {
	id := *c.key(&v)
	if p, ok := c.items[id]; ok {
		*p = v
		return
	}
	c.order = slices.Insert(c.order, 0, id)
	c.items[id] = &v
}

func (c *collection[T]) get(id string) (*T, bool) {
	p, ok := c.items[id]
	return p, ok
}

func (c *collection[T]) remove(id string) (T, bool) {
	p, ok := c.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	delete(c.items, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	return *p, true
}

// removeWhere drops every record matching pred and returns them in order.
func (c *collection[T]) removeWhere(pred func(*T) bool) []T {
	var out []T
	kept := c.order[:0]
	for _, id := range c.order {
		p := c.items[id]
		if pred(p) {
			out = append(out, *p)
			delete(c.items, id)
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return out
}

// rekey replaces oldID with newID in place. Position and contents are kept.
func (c *collection[T]) rekey(oldID, newID string) bool {
	p, ok := c.items[oldID]
	if !ok {
		return false
	}
	i := slices.Index(c.order, oldID)
	delete(c.items, oldID)
	if _, dup := c.items[newID]; dup {
		c.order = slices.Delete(c.order, i, i+1)
		return true
	}
	*c.key(p) = newID
	c.order[i] = newID
	c.items[newID] = p
	return true
}

func (c *collection[T]) each(fn func(*T)) {
	for _, id := range c.order {
		fn(c.items[id])
	}
}

func (c *collection[T]) list() []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

func (c *collection[T]) len() int {
	return len(c.order)
}
