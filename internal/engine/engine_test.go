package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"warebot/internal/capability"
	"warebot/internal/config"
	"warebot/internal/db"
	"warebot/internal/domain"
	"warebot/internal/engine"
	"warebot/internal/migrate"
	"warebot/internal/repo"
)

type testEnv struct {
	Engine *engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("ROBOT-001")
	eng, err := engine.New(conn, cfg, engine.Options{
		// Rand pinned above every failure rate so runs are deterministic
		Capability: capability.Options{Rand: func() float64 { return 1 }},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func TestBootstrapSeedsInventory(t *testing.T) {
	env := newTestEnv(t)
	if env.Engine.Inventory.Len() == 0 {
		t.Fatalf("expected seeded inventory")
	}
	items, err := env.Engine.Repo.ListItems(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != env.Engine.Inventory.Len() {
		t.Fatalf("db has %d items, index has %d", len(items), env.Engine.Inventory.Len())
	}
}

func TestAddAndRemoveItem(t *testing.T) {
	env := newTestEnv(t)
	it, err := env.Engine.AddItem(env.Ctx, "sku900", "Test widget", 1.5, false, "Z9")
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if it.ID != "SKU900" {
		t.Fatalf("expected normalized id, got %s", it.ID)
	}
	if _, err := env.Engine.AddItem(env.Ctx, "SKU900", "dup", 1, false, "Z9"); !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := env.Engine.RemoveItem(env.Ctx, "SKU900"); err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if _, err := env.Engine.Repo.GetItem(env.Ctx, "SKU900"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected item deleted from db, got %v", err)
	}
}

func TestSubmitOrderRejectsUnknownItem(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SubmitOrder(env.Ctx, "cust-1", []domain.OrderLine{
		{ItemID: "SKU001", Quantity: 1},
		{ItemID: "SKU999", Quantity: 1},
	})
	if !errors.Is(err, domain.ErrUnknownItem) {
		t.Fatalf("expected unknown item rejection, got %v", err)
	}
	// nothing admitted
	if env.Engine.Queue.Depth() != 0 {
		t.Fatalf("rejected order must enqueue nothing")
	}
	orders, err := env.Engine.Repo.ListOrders(env.Ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 0 {
		t.Fatalf("rejected order must not persist")
	}
}

func TestOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	o, err := env.Engine.SubmitOrder(env.Ctx, "cust-1", []domain.OrderLine{
		{ItemID: "SKU001", Quantity: 1},
		{ItemID: "SKU004", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if env.Engine.Queue.Depth() != 2 {
		t.Fatalf("expected 2 queued tasks, got %d", env.Engine.Queue.Depth())
	}

	finished, err := env.Engine.Run(env.Ctx, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(finished) != 2 {
		t.Fatalf("expected 2 finished tasks, got %d", len(finished))
	}
	got, err := env.Engine.Repo.GetOrder(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.OrderCompleted {
		t.Fatalf("expected completed order, got %s", got.Status)
	}
	// retrieved items left the inventory
	if _, err := env.Engine.Inventory.Find("SKU001"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("SKU001 should be retrieved, got %v", err)
	}

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 1, "order.completed", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 {
		t.Fatalf("expected order.completed event")
	}
	var payload struct {
		PackedSequence []string `json:"packed_sequence"`
	}
	if err := json.Unmarshal([]byte(evts[0].Payload), &payload); err != nil {
		t.Fatal(err)
	}
	// SKU004 (3.4) outweighs SKU001 (0.2)
	if len(payload.PackedSequence) != 2 || payload.PackedSequence[0] != "SKU004" || payload.PackedSequence[1] != "SKU001" {
		t.Fatalf("unexpected packed sequence %v", payload.PackedSequence)
	}
}

func TestSubmitOrderNormalizesLineIDs(t *testing.T) {
	env := newTestEnv(t)
	o, err := env.Engine.SubmitOrder(env.Ctx, "cust-1", []domain.OrderLine{{ItemID: " sku001 ", Quantity: 1}})
	if err != nil {
		t.Fatalf("lowercase line id must match admitted item: %v", err)
	}
	if o.Lines[0].ItemID != "SKU001" {
		t.Fatalf("expected normalized line id, got %q", o.Lines[0].ItemID)
	}
	tasks, err := env.Engine.Repo.ListTasks(env.Ctx, repo.TaskFilters{OrderID: o.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ItemID != "SKU001" {
		t.Fatalf("unexpected tasks %v", tasks)
	}
}

func TestRestartPreservesQueueOrder(t *testing.T) {
	env := newTestEnv(t)
	// all within the same pinned second, so timestamps cannot break ties
	var want []string
	for i := 0; i < 8; i++ {
		o, err := env.Engine.SubmitOrder(env.Ctx, "cust-1", []domain.OrderLine{{ItemID: "SKU001", Quantity: 1}})
		if err != nil {
			t.Fatal(err)
		}
		tasks, err := env.Engine.Repo.ListTasks(env.Ctx, repo.TaskFilters{OrderID: o.ID})
		if err != nil {
			t.Fatal(err)
		}
		want = append(want, tasks[0].ID)
	}

	restarted, err := engine.New(env.Engine.DB, env.Engine.Config, engine.Options{
		Capability: capability.Options{Rand: func() float64 { return 1 }},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := restarted.Bootstrap(env.Ctx); err != nil {
		t.Fatal(err)
	}
	for i, id := range want {
		task, err := restarted.Queue.Dequeue()
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if task.ID != id {
			t.Fatalf("position %d: restored %s, submitted %s", i, task.ID, id)
		}
	}
}

func TestCancelQueuedTask(t *testing.T) {
	env := newTestEnv(t)
	o, err := env.Engine.SubmitOrder(env.Ctx, "cust-1", []domain.OrderLine{{ItemID: "SKU002", Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	tasks, err := env.Engine.Repo.ListTasks(env.Ctx, repo.TaskFilters{OrderID: o.ID})
	if err != nil {
		t.Fatal(err)
	}
	cancelled, err := env.Engine.CancelTask(env.Ctx, tasks[0].ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.TaskFailed || cancelled.Reason != "cancelled" {
		t.Fatalf("unexpected cancelled task %+v", cancelled)
	}
	if env.Engine.Queue.Depth() != 0 {
		t.Fatalf("cancelled task must leave the queue")
	}
	if _, err := env.Engine.CancelTask(env.Ctx, tasks[0].ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second cancel, got %v", err)
	}
}

func TestTaskFailureFailsOrder(t *testing.T) {
	env := newTestEnv(t)
	o, err := env.Engine.SubmitOrder(env.Ctx, "cust-1", []domain.OrderLine{
		{ItemID: "SKU001", Quantity: 1},
		{ItemID: "SKU002", Quantity: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	// the first task's item vanishes between admission and execution
	if _, err := env.Engine.Inventory.Remove("SKU001"); err != nil {
		t.Fatal(err)
	}

	_, err = env.Engine.Run(env.Ctx, 0)
	var capErr domain.CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected capability error, got %v", err)
	}
	got, err := env.Engine.Repo.GetOrder(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.OrderFailed {
		t.Fatalf("expected failed order, got %s", got.Status)
	}
	// the sibling task is pulled from the queue and failed with the order
	if env.Engine.Queue.Depth() != 0 {
		t.Fatalf("failed order must leave no queued tasks, depth %d", env.Engine.Queue.Depth())
	}
	tasks, err := env.Engine.Repo.ListTasks(env.Ctx, repo.TaskFilters{OrderID: o.ID})
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range tasks {
		if task.Status != domain.TaskFailed {
			t.Fatalf("task %s should be failed, got %s", task.ID, task.Status)
		}
	}
}

func TestRunOnEmptyQueue(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.RunOne(env.Ctx); !errors.Is(err, domain.ErrEmptyQueue) {
		t.Fatalf("expected empty queue error, got %v", err)
	}
	finished, err := env.Engine.Run(env.Ctx, 5)
	if err != nil || len(finished) != 0 {
		t.Fatalf("run on empty queue: %v %v", finished, err)
	}
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SubmitOrder(env.Ctx, "cust-1", []domain.OrderLine{{ItemID: "SKU003", Quantity: 2}}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Run(env.Ctx, 0); err != nil {
		t.Fatal(err)
	}
	snap, err := env.Engine.Snapshot(env.Ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if snap.RobotStatus != "IDLE" {
		t.Fatalf("expected idle robot, got %s", snap.RobotStatus)
	}
	if snap.PackedOrders != 1 {
		t.Fatalf("expected 1 packed order, got %d", snap.PackedOrders)
	}
	if snap.TaskCounts[domain.TaskDone] != 1 {
		t.Fatalf("expected 1 done task, got %v", snap.TaskCounts)
	}
	if len(snap.LastEvents) == 0 {
		t.Fatalf("expected events in snapshot")
	}
}
