package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"warebot/internal/battery"
	"warebot/internal/capability"
	"warebot/internal/config"
	"warebot/internal/domain"
	"warebot/internal/events"
	"warebot/internal/inventory"
	"warebot/internal/queue"
	"warebot/internal/repo"
	"warebot/internal/robot"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time

	Inventory *inventory.Store
	Queue     *queue.Queue
	Robot     *robot.Robot
	Station   *capability.Station
}

// Options tune the capability providers; zero values give full-speed
// deterministic behavior suitable for tests.
type Options struct {
	Capability capability.Options
}

func New(db *sql.DB, cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	inv := inventory.New()
	gate := battery.New(cfg.Robot.MaxCapacity)
	station := capability.NewStation(cfg.Station.ID)

	capOpts := opts.Capability
	if capOpts.Mode == "" {
		capOpts.Mode = cfg.Robot.AutomationMode
	}
	nav := capability.NewNavigator(station.ID(), cfg.Robot.MoveCost, cfg.Capabilities.ObstacleRate, cfg.Capabilities.RerouteFailRate, capOpts)
	sensor := capability.NewSensor(cfg.Capabilities.SensorFailureRate, capOpts)
	grip := capability.NewGripper(cfg.Robot.RetrieveCost, capOpts)

	bot := robot.New(cfg.Robot.ID, cfg.Robot.AutomationMode, gate, nav, sensor, grip, inv, station, robot.Costs{
		Move:         cfg.Robot.MoveCost,
		Retrieve:     cfg.Robot.RetrieveCost,
		Pack:         cfg.Robot.PackCost,
		ChargeRate:   cfg.Robot.ChargeRate,
		LowThreshold: cfg.Robot.LowBatteryThreshold,
	})

	e := &Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Now:       time.Now,
		Inventory: inv,
		Queue:     queue.New(inv),
		Robot:     bot,
		Station:   station,
	}
	bot.OnEvent(func(evtType string, payload map[string]any) {
		// operational events are best effort; a failed write must not
		// interrupt a running task
		_ = e.Events.AppendDirect(context.Background(), evtType, "robot", cfg.Robot.ID, events.EventPayload(payload))
	})
	return e, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Bootstrap loads persisted inventory into the in-memory store, seeding
// from config when the database holds no items yet. Queued tasks from a
// previous run are re-enqueued in creation order.
func (e *Engine) Bootstrap(ctx context.Context) error {
	items, err := e.Repo.ListItems(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 && len(e.Config.Items) > 0 {
		for _, seed := range e.Config.Items {
			if _, err := e.AddItem(ctx, seed.ID, seed.Name, seed.Weight, seed.Fragile, seed.Location); err != nil {
				return fmt.Errorf("seed item %s: %w", seed.ID, err)
			}
		}
		return nil
	}
	for _, it := range items {
		if err := e.Inventory.Add(it); err != nil {
			return fmt.Errorf("load item %s: %w", it.ID, err)
		}
	}
	queued, err := e.Repo.ListTasks(ctx, repo.TaskFilters{Status: domain.TaskQueued})
	if err != nil {
		return err
	}
	for _, t := range queued {
		if err := e.Queue.Enqueue(t); err != nil {
			return fmt.Errorf("restore task %s: %w", t.ID, err)
		}
	}
	return nil
}

// AddItem validates, persists and indexes a new inventory item.
func (e *Engine) AddItem(ctx context.Context, id, name string, weight float64, fragile bool, location string) (domain.Item, error) {
	it, err := domain.NewItem(id, name, weight, fragile, location)
	if err != nil {
		return domain.Item{}, err
	}
	it.AddedAt = e.stamp()
	if err := e.Inventory.Add(it); err != nil {
		return domain.Item{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		e.rollbackAdd(it.ID)
		return domain.Item{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertItemTx(ctx, tx, it); err != nil {
		e.rollbackAdd(it.ID)
		return domain.Item{}, err
	}
	if err := e.Events.Append(ctx, tx, "item.added", "item", it.ID, events.EventPayload{
		"name": it.Name, "weight": it.Weight, "location": it.Location,
	}); err != nil {
		e.rollbackAdd(it.ID)
		return domain.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		e.rollbackAdd(it.ID)
		return domain.Item{}, err
	}
	return it, nil
}

func (e *Engine) rollbackAdd(id string) {
	_, _ = e.Inventory.Remove(id)
}

// RemoveItem removes an item from both the index and the database.
func (e *Engine) RemoveItem(ctx context.Context, id string) (domain.Item, error) {
	it, err := e.Inventory.Remove(id)
	if err != nil {
		return domain.Item{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Item{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteItemTx(ctx, tx, it.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Item{}, err
	}
	if err := e.Events.Append(ctx, tx, "item.removed", "item", it.ID, nil); err != nil {
		return domain.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Item{}, err
	}
	return it, nil
}

// SubmitOrder validates every line against the live inventory, persists
// the order with one task per line and enqueues the tasks FIFO. Admission
// is all or nothing.
func (e *Engine) SubmitOrder(ctx context.Context, customerID string, lines []domain.OrderLine) (domain.Order, error) {
	if customerID == "" {
		return domain.Order{}, fmt.Errorf("%w: customer id is required", domain.ErrInvalidRecord)
	}
	if len(lines) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order has no lines", domain.ErrInvalidRecord)
	}
	for i := range lines {
		// item ids are uppercased at admission; lines must match regardless
		// of the submitted casing
		lines[i].ItemID = strings.ToUpper(strings.TrimSpace(lines[i].ItemID))
		if lines[i].Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: line %d quantity must be positive", domain.ErrInvalidRecord, i)
		}
		if _, err := e.Inventory.Find(lines[i].ItemID); err != nil {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrUnknownItem, lines[i].ItemID)
		}
	}

	now := e.stamp()
	o := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Lines:      lines,
		Status:     domain.OrderPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	tasks := make([]domain.Task, 0, len(lines))
	for _, line := range lines {
		tasks = append(tasks, domain.Task{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			Status:    domain.TaskQueued,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertOrderTx(ctx, tx, o); err != nil {
		return domain.Order{}, err
	}
	for _, t := range tasks {
		if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
			return domain.Order{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "order.submitted", "order", o.ID, events.EventPayload{
		"customer_id": customerID, "lines": len(lines),
	}); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}

	for _, t := range tasks {
		if err := e.Queue.Enqueue(t); err != nil {
			return domain.Order{}, err
		}
	}
	return o, nil
}

// CancelTask removes a still-queued task and marks it failed. Tasks that
// have already been dequeued cannot be cancelled.
func (e *Engine) CancelTask(ctx context.Context, taskID string) (domain.Task, error) {
	t, err := e.Queue.Remove(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := domain.EnsureTaskTransition(t.Status, domain.TaskFailed); err != nil {
		return domain.Task{}, err
	}
	if err := e.Repo.UpdateTaskStatusTx(ctx, tx, t.ID, domain.TaskFailed, "cancelled", now); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.cancelled", "task", t.ID, events.EventPayload{"order_id": t.OrderID}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.TaskFailed
	t.Reason = "cancelled"
	t.UpdatedAt = now
	return t, nil
}

// RunOne dequeues and executes a single task, updating task and order
// status around the robot run. It returns the finished task, or
// domain.ErrEmptyQueue when there is nothing to do.
func (e *Engine) RunOne(ctx context.Context) (domain.Task, error) {
	t, err := e.Queue.Dequeue()
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.markActive(ctx, t); err != nil {
		return domain.Task{}, err
	}

	finalize, err := e.isLastTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	packed, execErr := e.Robot.ExecuteTask(ctx, t, finalize)
	if execErr != nil {
		if ferr := e.markFailed(ctx, t, execErr); ferr != nil {
			return domain.Task{}, ferr
		}
		t.Status = domain.TaskFailed
		t.Reason = execErr.Error()
		return t, execErr
	}
	if err := e.markDone(ctx, t, finalize, packed); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.TaskDone
	return t, nil
}

// Run executes up to n tasks and returns the ones that finished, stopping
// early when the queue drains. A task failure stops the run and surfaces
// the error alongside the tasks finished so far.
func (e *Engine) Run(ctx context.Context, n int) ([]domain.Task, error) {
	var finished []domain.Task
	for i := 0; n <= 0 || i < n; i++ {
		t, err := e.RunOne(ctx)
		if errors.Is(err, domain.ErrEmptyQueue) {
			return finished, nil
		}
		if err != nil {
			return finished, err
		}
		finished = append(finished, t)
	}
	return finished, nil
}

func (e *Engine) markActive(ctx context.Context, t domain.Task) error {
	if err := domain.EnsureTaskTransition(t.Status, domain.TaskActive); err != nil {
		return err
	}
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskStatusTx(ctx, tx, t.ID, domain.TaskActive, "", now); err != nil {
		return err
	}
	o, err := e.Repo.GetOrder(ctx, t.OrderID)
	if err != nil {
		return err
	}
	if o.Status == domain.OrderPending {
		if err := domain.EnsureOrderTransition(o.Status, domain.OrderInProgress); err != nil {
			return err
		}
		if err := e.Repo.UpdateOrderStatusTx(ctx, tx, o.ID, domain.OrderInProgress, now); err != nil {
			return err
		}
	}
	if err := e.Events.Append(ctx, tx, "task.started", "task", t.ID, events.EventPayload{"order_id": t.OrderID}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) isLastTask(ctx context.Context, t domain.Task) (bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	remaining, err := e.Repo.CountRemainingTasksTx(ctx, tx, t.OrderID, t.ID)
	if err != nil {
		return false, err
	}
	return remaining == 0, tx.Commit()
}

func (e *Engine) markDone(ctx context.Context, t domain.Task, finalize bool, packed []domain.Item) error {
	if err := domain.EnsureTaskTransition(domain.TaskActive, domain.TaskDone); err != nil {
		return err
	}
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskStatusTx(ctx, tx, t.ID, domain.TaskDone, "", now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.done", "task", t.ID, events.EventPayload{"order_id": t.OrderID}); err != nil {
		return err
	}
	if finalize {
		if err := domain.EnsureOrderTransition(domain.OrderInProgress, domain.OrderCompleted); err != nil {
			return err
		}
		if err := e.Repo.UpdateOrderStatusTx(ctx, tx, t.OrderID, domain.OrderCompleted, now); err != nil {
			return err
		}
		sequence := make([]string, 0, len(packed))
		for _, it := range packed {
			sequence = append(sequence, it.ID)
		}
		if err := e.Events.Append(ctx, tx, "order.completed", "order", t.OrderID, events.EventPayload{
			"packed_sequence": sequence,
		}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// markFailed fails the task and its order. Staged items from earlier tasks
// of the order are discarded with the failed container, and the order's
// remaining queued tasks are pulled from the queue and failed with it.
func (e *Engine) markFailed(ctx context.Context, t domain.Task, cause error) error {
	discarded := e.Station.DrainStaged()
	siblings, err := e.Repo.ListTasks(ctx, repo.TaskFilters{OrderID: t.OrderID, Status: domain.TaskQueued})
	if err != nil {
		return err
	}
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskStatusTx(ctx, tx, t.ID, domain.TaskFailed, cause.Error(), now); err != nil {
		return err
	}
	for _, sib := range siblings {
		if _, err := e.Queue.Remove(sib.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := e.Repo.UpdateTaskStatusTx(ctx, tx, sib.ID, domain.TaskFailed, "order failed", now); err != nil {
			return err
		}
	}
	if err := e.Repo.UpdateOrderStatusTx(ctx, tx, t.OrderID, domain.OrderFailed, now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.failed", "task", t.ID, events.EventPayload{
		"order_id": t.OrderID, "reason": cause.Error(),
	}); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "order.failed", "order", t.OrderID, events.EventPayload{
		"task_id": t.ID, "reason": cause.Error(), "discarded_items": len(discarded),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Snapshot is the operational state summary served by status surfaces.
type Snapshot struct {
	RobotID       string         `json:"robot_id"`
	RobotStatus   string         `json:"robot_status"`
	Battery       float64        `json:"battery"`
	BatteryMax    float64        `json:"battery_max"`
	Location      string         `json:"location"`
	HeldItems     int            `json:"held_items"`
	QueueDepth    int            `json:"queue_depth"`
	InventorySize int            `json:"inventory_size"`
	StagedItems   int            `json:"staged_items"`
	PackedOrders  int            `json:"packed_orders"`
	TaskCounts    map[string]int `json:"task_counts"`
	LastEvents    []domain.Event `json:"last_events,omitempty"`
}

func (e *Engine) Snapshot(ctx context.Context, eventLimit int) (Snapshot, error) {
	counts, err := e.Repo.CountTasksByStatus(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		RobotID:       e.Robot.ID,
		RobotStatus:   string(e.Robot.Status()),
		Battery:       e.Robot.Battery(),
		BatteryMax:    e.Config.Robot.MaxCapacity,
		Location:      e.Robot.Location(),
		HeldItems:     e.Robot.HeldItems(),
		QueueDepth:    e.Queue.Depth(),
		InventorySize: e.Inventory.Len(),
		StagedItems:   e.Station.StagedCount(),
		PackedOrders:  len(e.Station.PackedOrders()),
		TaskCounts:    counts,
	}
	if eventLimit > 0 {
		evts, err := e.Repo.LatestEvents(ctx, eventLimit, "", "", "")
		if err != nil {
			return Snapshot{}, err
		}
		snap.LastEvents = evts
	}
	return snap, nil
}
