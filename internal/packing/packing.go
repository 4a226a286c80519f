// Package packing orders retrieved items for placement into a container:
// heaviest at the bottom, lightest on top.
package packing

import (
	"sort"

	"warebot/internal/domain"
)

// stack is a LIFO over items. Pushing the working set lightest-to-heaviest
// makes the drain order heaviest-first by construction.
type stack struct {
	items []domain.Item
}

func (s *stack) push(item domain.Item) {
	s.items = append(s.items, item)
}

func (s *stack) pop() (domain.Item, bool) {
	if len(s.items) == 0 {
		return domain.Item{}, false
	}
	item := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return item, true
}

// Sequence returns the placement order for a set of retrieved items:
// heaviest first, equal weights keeping their retrieval order. Empty input
// yields empty output.
func Sequence(items []domain.Item) []domain.Item {
	// The drain reverses the push order, so the working set is reversed
	// before the stable ascending sort: equal weights then leave the stack
	// in their original retrieval order.
	working := make([]domain.Item, len(items))
	for i, item := range items {
		working[len(items)-1-i] = item
	}
	sort.SliceStable(working, func(i, j int) bool {
		return working[i].Weight < working[j].Weight
	})
	var st stack
	for _, item := range working {
		st.push(item)
	}
	out := make([]domain.Item, 0, len(working))
	for {
		item, ok := st.pop()
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out
}
