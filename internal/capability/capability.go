// Package capability provides the robot's physical action stubs. Each
// provider reports success or failure plus the battery cost it consumed;
// the orchestrator treats them as black boxes.
package capability

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"warebot/internal/domain"
)

// Result is the contract every capability attempt returns.
type Result struct {
	Success       bool
	CostConsumed  float64
	FailureReason string
}

// Options carries the runtime knobs shared by the providers. Rand and
// Sleep are injectable so tests run deterministic and instant. Confirm is
// the semi-automatic hook consulted before recovery attempts; nil means
// always proceed.
type Options struct {
	Mode      string
	StepDelay time.Duration
	Sleep     func(time.Duration)
	Rand      func() float64
	Confirm   func(prompt string) bool
}

func (o Options) normalized() Options {
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	if o.Mode == "" {
		o.Mode = domain.ModeFullAuto
	}
	return o
}

func (o Options) pause() {
	if o.StepDelay > 0 {
		o.Sleep(o.StepDelay)
	}
}

func (o Options) confirmed(prompt string) bool {
	if o.Mode != domain.ModeSemiAuto || o.Confirm == nil {
		return true
	}
	return o.Confirm(prompt)
}

func canceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Navigator moves the robot between named locations, with simulated
// obstacles and reroutes.
type Navigator struct {
	mu              sync.Mutex
	location        string
	moveCost        float64
	obstacleRate    float64
	rerouteFailRate float64
	events          []string
	opts            Options
}

func NewNavigator(home string, moveCost, obstacleRate, rerouteFailRate float64, opts Options) *Navigator {
	return &Navigator{
		location:        home,
		moveCost:        moveCost,
		obstacleRate:    obstacleRate,
		rerouteFailRate: rerouteFailRate,
		opts:            opts.normalized(),
	}
}

func (n *Navigator) MoveTo(ctx context.Context, target string) Result {
	if canceled(ctx) {
		return Result{FailureReason: "navigation canceled"}
	}
	n.opts.pause()
	if n.opts.Rand() < n.obstacleRate {
		n.record("obstacle en route to " + target)
		if !n.opts.confirmed("attempt reroute to " + target) {
			return Result{FailureReason: "navigation declined by operator"}
		}
		if n.opts.Rand() < n.rerouteFailRate {
			n.record("reroute failed to " + target)
			return Result{FailureReason: "destination unreachable: " + target}
		}
	}
	n.mu.Lock()
	n.location = target
	n.mu.Unlock()
	return Result{Success: true, CostConsumed: n.moveCost}
}

func (n *Navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// Events returns the obstacle/reroute history, oldest first.
func (n *Navigator) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	copy(out, n.events)
	return out
}

func (n *Navigator) record(event string) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

// Sensor verifies that the item at a slot is the one a task expects.
type Sensor struct {
	mu          sync.Mutex
	failureRate float64
	readings    []string
	opts        Options
}

func NewSensor(failureRate float64, opts Options) *Sensor {
	return &Sensor{failureRate: failureRate, opts: opts.normalized()}
}

func (s *Sensor) Verify(ctx context.Context, item domain.Item, expectedID string) Result {
	if canceled(ctx) {
		return Result{FailureReason: "scan canceled"}
	}
	s.opts.pause()
	if item.ID != expectedID {
		s.record(fmt.Sprintf("scan %s: mismatch, found %s", expectedID, item.ID))
		return Result{FailureReason: fmt.Sprintf("item mismatch: found %s, expected %s", item.ID, expectedID)}
	}
	if s.opts.Rand() < s.failureRate {
		s.record("scan " + expectedID + ": FAIL")
		if s.opts.confirmed("retry scan of " + expectedID) {
			s.opts.pause()
			s.record("scan " + expectedID + ": OK (retry)")
			return Result{Success: true}
		}
		return Result{FailureReason: "sensor verification failed for " + expectedID}
	}
	s.record("scan " + expectedID + ": OK")
	return Result{Success: true}
}

func (s *Sensor) Readings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.readings))
	copy(out, s.readings)
	return out
}

func (s *Sensor) record(reading string) {
	s.mu.Lock()
	s.readings = append(s.readings, reading)
	s.mu.Unlock()
}

// Gripper holds items between pick and drop.
type Gripper struct {
	mu       sync.Mutex
	held     []domain.Item
	pickCost float64
	opts     Options
}

func NewGripper(pickCost float64, opts Options) *Gripper {
	return &Gripper{pickCost: pickCost, opts: opts.normalized()}
}

func (g *Gripper) Pick(ctx context.Context, item domain.Item) Result {
	if canceled(ctx) {
		return Result{FailureReason: "pick canceled"}
	}
	g.opts.pause()
	g.mu.Lock()
	g.held = append(g.held, item)
	g.mu.Unlock()
	return Result{Success: true, CostConsumed: g.pickCost}
}

// Drop releases the most recently picked item.
func (g *Gripper) Drop() (domain.Item, bool) {
	g.opts.pause()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.held) == 0 {
		return domain.Item{}, false
	}
	item := g.held[len(g.held)-1]
	g.held = g.held[:len(g.held)-1]
	return item, true
}

// Clear releases everything held. Used unconditionally on error recovery.
func (g *Gripper) Clear() []domain.Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	released := g.held
	g.held = nil
	return released
}

func (g *Gripper) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}

// Station is the packing workspace where retrieved items are staged before
// the optimizer orders them into the container.
type Station struct {
	mu     sync.Mutex
	id     string
	staged []domain.Item
	packed []string
}

func NewStation(id string) *Station {
	return &Station{id: id}
}

func (s *Station) ID() string { return s.id }

func (s *Station) Stage(item domain.Item) {
	s.mu.Lock()
	s.staged = append(s.staged, item)
	s.mu.Unlock()
}

// DrainStaged returns the staged items in staging order and clears the
// staging area.
func (s *Station) DrainStaged() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.staged
	s.staged = nil
	return items
}

func (s *Station) RecordPacked(orderID string) {
	s.mu.Lock()
	s.packed = append(s.packed, orderID)
	s.mu.Unlock()
}

func (s *Station) StagedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

func (s *Station) PackedOrders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.packed))
	copy(out, s.packed)
	return out
}
