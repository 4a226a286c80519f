package packing_test

import (
	"testing"

	"warebot/internal/domain"
	"warebot/internal/packing"
)

func item(id string, weight float64) domain.Item {
	return domain.Item{ID: id, Name: id, Weight: weight, Location: "A1"}
}

func assertOrder(t *testing.T, got []domain.Item, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestSequenceHeaviestFirst(t *testing.T) {
	// retrieval order [C,A,B] with weights C=1 A=2 B=5
	in := []domain.Item{item("C", 1), item("A", 2), item("B", 5)}
	assertOrder(t, packing.Sequence(in), []string{"B", "A", "C"})
}

func TestSequenceEmptyInput(t *testing.T) {
	if out := packing.Sequence(nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %d items", len(out))
	}
}

func TestSequenceSingleItem(t *testing.T) {
	assertOrder(t, packing.Sequence([]domain.Item{item("X", 3)}), []string{"X"})
}

func TestSequenceTiesKeepRetrievalOrder(t *testing.T) {
	in := []domain.Item{item("P", 2), item("Q", 5), item("R", 2), item("S", 2)}
	// R and S tie with P; the tie run keeps retrieval order P,R,S
	assertOrder(t, packing.Sequence(in), []string{"Q", "P", "R", "S"})
}

func TestSequenceAllEqualWeights(t *testing.T) {
	in := []domain.Item{item("A", 1), item("B", 1), item("C", 1)}
	assertOrder(t, packing.Sequence(in), []string{"A", "B", "C"})
}

func TestSequenceSortedDescending(t *testing.T) {
	in := []domain.Item{
		item("I1", 0.1), item("I2", 7), item("I3", 3.2), item("I4", 0.8), item("I5", 12),
	}
	out := packing.Sequence(in)
	for i := 1; i < len(out); i++ {
		if out[i].Weight > out[i-1].Weight {
			t.Fatalf("output not descending at %d: %.2f after %.2f", i, out[i].Weight, out[i-1].Weight)
		}
	}
}

func TestSequenceDoesNotMutateInput(t *testing.T) {
	in := []domain.Item{item("A", 2), item("B", 1)}
	_ = packing.Sequence(in)
	if in[0].ID != "A" || in[1].ID != "B" {
		t.Fatalf("input mutated: %v", in)
	}
}
