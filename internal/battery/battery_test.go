package battery_test

import (
	"errors"
	"testing"

	"warebot/internal/battery"
	"warebot/internal/domain"
)

func TestCanPerformMatchesConsume(t *testing.T) {
	g := battery.New(10)
	// canPerform(c) must be true iff a subsequent consume(c) would succeed,
	// across levels reachable via consume/replenish
	steps := []struct {
		consume   float64
		replenish float64
	}{
		{consume: 4}, {consume: 6}, {replenish: 3}, {consume: 2}, {replenish: 100}, {consume: 10},
	}
	for i, step := range steps {
		if step.replenish > 0 {
			g.Replenish(step.replenish)
			continue
		}
		can := g.CanPerform(step.consume)
		err := g.Consume(step.consume)
		if can && err != nil {
			t.Fatalf("step %d: canPerform true but consume failed: %v", i, err)
		}
		if !can && err == nil {
			t.Fatalf("step %d: canPerform false but consume succeeded", i)
		}
	}
}

func TestConsumeBeyondLevel(t *testing.T) {
	g := battery.New(5)
	if g.CanPerform(6) {
		t.Fatalf("canPerform(6) must be false at level 5")
	}
	if err := g.Consume(6); !errors.Is(err, domain.ErrInsufficientCapacity) {
		t.Fatalf("expected insufficient capacity, got %v", err)
	}
	if g.Level() != 5 {
		t.Fatalf("failed consume must not change level, got %.1f", g.Level())
	}
}

func TestReplenishClampedToMax(t *testing.T) {
	g := battery.New(50)
	if err := g.Consume(30); err != nil {
		t.Fatal(err)
	}
	g.Replenish(1000)
	if g.Level() != 50 {
		t.Fatalf("expected clamp at 50, got %.1f", g.Level())
	}
}

func TestLevelNeverNegative(t *testing.T) {
	g := battery.New(3)
	if err := g.Consume(3); err != nil {
		t.Fatal(err)
	}
	if g.Level() != 0 {
		t.Fatalf("expected 0, got %.1f", g.Level())
	}
	if g.CanPerform(0.1) {
		t.Fatalf("empty gate must refuse work")
	}
	if g.CanPerform(0) != true {
		t.Fatalf("zero-cost operation is always allowed")
	}
}
