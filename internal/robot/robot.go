// Package robot drives one task at a time through the operational state
// machine, gating every capability call on the battery.
package robot

import (
	"context"
	"fmt"
	"sync"

	"warebot/internal/battery"
	"warebot/internal/capability"
	"warebot/internal/domain"
	"warebot/internal/inventory"
	"warebot/internal/packing"
)

// Navigator, Sensor and Gripper are the capability seams the driver
// consumes; production implementations live in internal/capability.
type Navigator interface {
	MoveTo(ctx context.Context, target string) capability.Result
	Location() string
}

type Sensor interface {
	Verify(ctx context.Context, item domain.Item, expectedID string) capability.Result
}

type Gripper interface {
	Pick(ctx context.Context, item domain.Item) capability.Result
	Drop() (domain.Item, bool)
	Clear() []domain.Item
	Held() int
}

// Costs are the battery costs and charging policy knobs.
type Costs struct {
	Move         float64
	Retrieve     float64
	Pack         float64
	ChargeRate   float64
	LowThreshold float64
}

// Robot is the single orchestrator instance.
type Robot struct {
	ID   string
	Mode string

	mu     sync.Mutex
	status Status

	gate    *battery.Gate
	nav     Navigator
	sensor  Sensor
	grip    Gripper
	inv     *inventory.Store
	station *capability.Station
	costs   Costs

	// notify receives operational events for the log; nil is a no-op.
	notify func(evtType string, payload map[string]any)
}

func New(id, mode string, gate *battery.Gate, nav Navigator, sensor Sensor, grip Gripper, inv *inventory.Store, station *capability.Station, costs Costs) *Robot {
	return &Robot{
		ID:      id,
		Mode:    mode,
		status:  StatusIdle,
		gate:    gate,
		nav:     nav,
		sensor:  sensor,
		grip:    grip,
		inv:     inv,
		station: station,
		costs:   costs,
	}
}

// OnEvent sets the operational event hook.
func (r *Robot) OnEvent(fn func(evtType string, payload map[string]any)) {
	r.notify = fn
}

func (r *Robot) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Robot) Battery() float64 { return r.gate.Level() }

func (r *Robot) Location() string { return r.nav.Location() }

func (r *Robot) HeldItems() int { return r.grip.Held() }

func (r *Robot) apply(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := Next(r.status, ev)
	if err != nil {
		return err
	}
	r.status = next
	return nil
}

func (r *Robot) emit(evtType string, payload map[string]any) {
	if r.notify != nil {
		r.notify(evtType, payload)
	}
}

// ExecuteTask drives one dequeued task through navigate, verify, grip and
// stage. When finalize is set (last task of its order) the staged set is
// drained through the packing optimizer and the packed sequence returned.
// A capability failure leaves the robot recovered to IDLE holding nothing
// and returns a CapabilityError for the engine to record against the task.
func (r *Robot) ExecuteTask(ctx context.Context, task domain.Task, finalize bool) ([]domain.Item, error) {
	if err := r.apply(EventTaskStarted); err != nil {
		return nil, err
	}

	item, err := r.inv.Find(task.ItemID)
	if err != nil {
		return nil, r.fault("lookup", fmt.Sprintf("item %s no longer in inventory", task.ItemID))
	}

	// NAVIGATING: move to the item's slot.
	if err := r.ensureCapacity(ctx, r.costs.Move, EventResumeNavigating); err != nil {
		return nil, err
	}
	res := r.nav.MoveTo(ctx, item.Location)
	if !res.Success {
		return nil, r.fault("navigate", res.FailureReason)
	}
	if err := r.gate.Consume(res.CostConsumed); err != nil {
		return nil, err
	}
	if err := r.apply(EventArrived); err != nil {
		return nil, err
	}

	// RETRIEVING: verify, grip, mutate inventory, carry to the station.
	if err := r.ensureCapacity(ctx, r.costs.Retrieve, EventResumeRetrieving); err != nil {
		return nil, err
	}
	if res := r.sensor.Verify(ctx, item, task.ItemID); !res.Success {
		return nil, r.fault("sense", res.FailureReason)
	}
	res = r.grip.Pick(ctx, item)
	if !res.Success {
		return nil, r.fault("grip", res.FailureReason)
	}
	// Retrieval is the point of inventory mutation.
	if _, err := r.inv.Remove(item.ID); err != nil {
		return nil, err
	}
	if err := r.gate.Consume(res.CostConsumed); err != nil {
		return nil, err
	}
	if err := r.ensureCapacity(ctx, r.costs.Move, EventResumeRetrieving); err != nil {
		return nil, err
	}
	res = r.nav.MoveTo(ctx, r.station.ID())
	if !res.Success {
		return nil, r.fault("navigate", res.FailureReason)
	}
	if err := r.gate.Consume(res.CostConsumed); err != nil {
		return nil, err
	}
	dropped, ok := r.grip.Drop()
	if !ok {
		return nil, r.fault("grip", "gripper empty at station")
	}
	for i := 0; i < task.Quantity; i++ {
		r.station.Stage(dropped)
	}
	if err := r.apply(EventItemSecured); err != nil {
		return nil, err
	}
	r.emit("robot.staged", map[string]any{
		"task_id": task.ID, "item_id": item.ID, "quantity": task.Quantity, "battery": r.gate.Level(),
	})

	// PACKING: the staged set becomes the optimizer input; the container
	// is only packed once the order's last task gets here.
	var packed []domain.Item
	if finalize {
		if err := r.ensureCapacity(ctx, r.costs.Pack, EventResumePacking); err != nil {
			return nil, err
		}
		packed = packing.Sequence(r.station.DrainStaged())
		r.station.RecordPacked(task.OrderID)
		if err := r.gate.Consume(r.costs.Pack); err != nil {
			return nil, err
		}
		r.emit("robot.packed", map[string]any{
			"order_id": task.OrderID, "items": len(packed), "battery": r.gate.Level(),
		})
	}
	if err := r.apply(EventPacked); err != nil {
		return nil, err
	}
	return packed, nil
}

// ensureCapacity charges proactively when the projected level after the
// next operation would be insufficient or below the low threshold. The
// interrupted step is re-entered for the same task afterwards.
func (r *Robot) ensureCapacity(ctx context.Context, cost float64, resume Event) error {
	if r.gate.CanPerform(cost) && r.gate.Level()-cost >= r.costs.LowThreshold {
		return nil
	}
	if err := r.apply(EventBatteryLow); err != nil {
		return err
	}
	r.emit("robot.charging", map[string]any{"battery": r.gate.Level(), "needed": cost})
	for r.gate.Level() < r.gate.Max() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rate := r.costs.ChargeRate
		if rate <= 0 {
			rate = r.gate.Max()
		}
		r.gate.Replenish(rate)
	}
	r.emit("robot.charged", map[string]any{"battery": r.gate.Level()})
	return r.apply(resume)
}

// fault records the failure, transitions to ERROR and immediately runs the
// unconditional recovery: any held item is released before IDLE.
func (r *Robot) fault(op, reason string) error {
	if err := r.apply(EventFault); err != nil {
		return err
	}
	r.emit("robot.fault", map[string]any{"op": op, "reason": reason})
	released := r.grip.Clear()
	if err := r.apply(EventRecovered); err != nil {
		return err
	}
	r.emit("robot.recovered", map[string]any{"released_items": len(released)})
	return domain.CapabilityError{Op: op, Reason: reason}
}
