// Package position holds the arithmetic for ordered sibling scopes: sections
// inside a portfolio and components inside a section.
//
// Every function is pure. Callers read the scope, compute a change set here and
// persist it inside the same locked transaction.
package position

import (
	"fmt"
	"sort"
)

// Item is the part of a positioned record the arithmetic needs.
type Item struct {
	ID       string
	Position int
}

// Change moves one item from one slot to another.
type Change struct {
	ID   string
	From int
	To   int
}

// CheckCapacity rejects an insert once count has reached max.
func CheckCapacity(scope string, count, max int) error {
	if count >= max {
		return &LimitError{Scope: scope, Limit: max}
	}
	return nil
}

// NextPosition returns the append slot for a new item.
func NextPosition(items []Item) int {
	return len(items)
}

// Reorder moves id to target and shifts the items between the old and new slot
// by one. A move onto the current slot returns no changes.
func Reorder(items []Item, id string, target int) ([]Change, error) {
	current, ok := find(items, id)
	if !ok {
		return nil, ErrItemNotFound
	}
	maxPos := len(items) - 1
	if target < 0 || target > maxPos {
		return nil, &BoundsError{Target: target, Max: maxPos}
	}
	if target == current {
		return nil, nil
	}

	changes := make([]Change, 0, abs(current-target)+1)
	for _, item := range items {
		if item.ID == id {
			continue
		}
		switch {
		case target < current && item.Position >= target && item.Position < current:
			changes = append(changes, Change{ID: item.ID, From: item.Position, To: item.Position + 1})
		case target > current && item.Position > current && item.Position <= target:
			changes = append(changes, Change{ID: item.ID, From: item.Position, To: item.Position - 1})
		}
	}
	changes = append(changes, Change{ID: id, From: current, To: target})
	return changes, nil
}

// CloseGap returns the decrements that keep a scope contiguous once deletedID
// is removed from it.
func CloseGap(items []Item, deletedID string) ([]Change, error) {
	removed, ok := find(items, deletedID)
	if !ok {
		return nil, ErrItemNotFound
	}
	var changes []Change
	for _, item := range items {
		if item.ID == deletedID || item.Position <= removed {
			continue
		}
		changes = append(changes, Change{ID: item.ID, From: item.Position, To: item.Position - 1})
	}
	return changes, nil
}

// Apply returns a copy of items with changes applied, ordered by position.
func Apply(items []Item, changes []Change) []Item {
	moved := make(map[string]int, len(changes))
	for _, change := range changes {
		moved[change.ID] = change.To
	}
	out := make([]Item, len(items))
	for i, item := range items {
		if to, ok := moved[item.ID]; ok {
			item.Position = to
		}
		out[i] = item
	}
	Sort(out)
	return out
}

// Sort orders items by position, then id.
func Sort(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position == items[j].Position {
			return items[i].ID < items[j].ID
		}
		return items[i].Position < items[j].Position
	})
}

// CheckContiguous verifies that the positions of items are exactly 0..n-1.
func CheckContiguous(items []Item) error {
	seen := make([]bool, len(items))
	for _, item := range items {
		if item.Position < 0 || item.Position >= len(items) {
			return fmt.Errorf("%w: %s at %d in scope of %d", ErrNotContiguous, item.ID, item.Position, len(items))
		}
		if seen[item.Position] {
			return fmt.Errorf("%w: duplicate position %d", ErrNotContiguous, item.Position)
		}
		seen[item.Position] = true
	}
	return nil
}

func find(items []Item, id string) (int, bool) {
	for _, item := range items {
		if item.ID == id {
			return item.Position, true
		}
	}
	return 0, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
