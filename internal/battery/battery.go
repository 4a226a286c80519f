// Package battery models the robot's depleting power resource. The gate
// only answers capability questions; deciding when to charge is the
// orchestrator's policy.
package battery

import (
	"fmt"
	"sync"

	"warebot/internal/domain"
)

type Gate struct {
	mu    sync.Mutex
	level float64
	max   float64
}

// New returns a gate at full capacity.
func New(max float64) *Gate {
	return &Gate{level: max, max: max}
}

// CanPerform reports whether the current level covers the given cost.
func (g *Gate) CanPerform(cost float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level >= cost
}

// Consume decrements the level. Callers must check CanPerform first; an
// insufficient level here is a contract violation, not control flow.
func (g *Gate) Consume(cost float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.level < cost {
		return fmt.Errorf("%w: level %.1f, cost %.1f", domain.ErrInsufficientCapacity, g.level, cost)
	}
	g.level -= cost
	return nil
}

// Replenish increments the level, clamped to max.
func (g *Gate) Replenish(amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.level += amount
	if g.level > g.max {
		g.level = g.max
	}
}

func (g *Gate) Level() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level
}

func (g *Gate) Max() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}
