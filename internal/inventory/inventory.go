// Package inventory holds the dual-indexed warehouse catalogue: an ordered
// backing slice (definitive storage) plus an id->position index for O(1)
// lookup. Both views are updated under one lock; a reader can observe the
// pre- or post-mutation state, never a state where the views disagree.
package inventory

import (
	"fmt"
	"sync"

	"warebot/internal/domain"
)

type Store struct {
	mu      sync.RWMutex
	records []domain.Item
	index   map[string]int
}

func New() *Store {
	return &Store{index: map[string]int{}}
}

// Add appends a record to the backing store and sets its index entry.
func (s *Store) Add(item domain.Item) error {
	if item.ID == "" {
		return fmt.Errorf("%w: item id is empty", domain.ErrInvalidRecord)
	}
	if item.Weight < 0 {
		return fmt.Errorf("%w: weight %.2f is negative", domain.ErrInvalidRecord, item.Weight)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[item.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateIdentifier, item.ID)
	}
	s.records = append(s.records, item)
	s.index[item.ID] = len(s.records) - 1
	return nil
}

// Find looks an item up through the index. It must agree with FindLinear
// for every id; a position holding a different id is a fatal invariant
// violation.
func (s *Store) Find(id string) (domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
	}
	if pos < 0 || pos >= len(s.records) || s.records[pos].ID != id {
		return domain.Item{}, fmt.Errorf("%w: id %s maps to position %d", domain.ErrInconsistentIndex, id, pos)
	}
	return s.records[pos], nil
}

// FindLinear scans the backing store in order. It is the baseline the
// indexed lookup is measured against.
func (s *Store) FindLinear(id string) (domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.Item{}, fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
}

// Remove deletes a record from both views under one critical section.
func (s *Store) Remove(id string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
	}
	if pos < 0 || pos >= len(s.records) || s.records[pos].ID != id {
		return domain.Item{}, fmt.Errorf("%w: id %s maps to position %d", domain.ErrInconsistentIndex, id, pos)
	}
	removed := s.records[pos]
	s.records = append(s.records[:pos], s.records[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.records); i++ {
		s.index[s.records[i].ID] = i
	}
	return removed, nil
}

// ListByLocation filters linearly, preserving storage order.
func (s *Store) ListByLocation(loc string) []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Item
	for _, rec := range s.records {
		if rec.Location == loc {
			out = append(out, rec)
		}
	}
	return out
}

// List returns a snapshot of the backing store in storage order.
func (s *Store) List() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Item, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
