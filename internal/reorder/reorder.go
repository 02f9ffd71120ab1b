// Package reorder maintains the strict positional ordering of list
// items within a bucket (a workflow type, or the single global
// planning list) under drag-and-drop.
package reorder

import "sort"

// Update is one position assignment to persist.
type Update struct {
	ID       string
	Position int
}

// Renumber assigns positions 0..n-1 to ids in display order.
func Renumber(ids []string) []Update {
	updates := make([]Update, len(ids))
	for i, id := range ids {
		updates[i] = Update{ID: id, Position: i}
	}
	return updates
}

// Changed returns only the assignments that differ from current, so a
// drop that moves one item does not rewrite the whole bucket. IDs
// missing from current are treated as changed.
func Changed(current map[string]int, ids []string) []Update {
	var updates []Update
	for i, id := range ids {
		if pos, ok := current[id]; ok && pos == i {
			continue
		}
		updates = append(updates, Update{ID: id, Position: i})
	}
	return updates
}

// Sort orders items by position ascending, stably tie-broken by id so
// rendering stays deterministic even if a race ever produced duplicate
// positions.
func Sort[T any](items []T, position func(T) int, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := position(items[i]), position(items[j])
		if pi != pj {
			return pi < pj
		}
		return id(items[i]) < id(items[j])
	})
}

// NextPosition returns the position for an item appended to a bucket
// whose current maximum position is max (-1 for an empty bucket).
func NextPosition(max int) int {
	return max + 1
}
