package domain

import (
	"fmt"
	"strings"
)

// Item is a catalogued warehouse item. Weight is fixed at construction;
// replacing a weight means replacing the record.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Fragile  bool    `json:"fragile"`
	Location string  `json:"location"`
	AddedAt  string  `json:"added_at,omitempty" format:"date-time"`
}

// NewItem validates and normalizes an item record.
func NewItem(id, name string, weight float64, fragile bool, location string) (Item, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	name = strings.TrimSpace(name)
	if id == "" {
		return Item{}, fmt.Errorf("%w: item id is empty", ErrInvalidRecord)
	}
	if weight < 0 {
		return Item{}, fmt.Errorf("%w: weight %.2f is negative", ErrInvalidRecord, weight)
	}
	if location == "" {
		return Item{}, fmt.Errorf("%w: location is empty", ErrInvalidRecord)
	}
	return Item{ID: id, Name: name, Weight: weight, Fragile: fragile, Location: location}, nil
}

// OrderLine is one (item, quantity) pair of an order.
type OrderLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type Order struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customer_id"`
	Lines      []OrderLine `json:"lines"`
	Status     string      `json:"status" enum:"pending,in_progress,completed,failed"`
	CreatedAt  string      `json:"created_at" format:"date-time"`
	UpdatedAt  string      `json:"updated_at" format:"date-time"`
}

// Task is the unit of robot work derived from one order line. It is owned
// by the queue until dequeued, then by the orchestrator.
type Task struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status" enum:"queued,active,done,failed"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// Order statuses.
const (
	OrderPending    = "pending"
	OrderInProgress = "in_progress"
	OrderCompleted  = "completed"
	OrderFailed     = "failed"
)

// Task statuses.
const (
	TaskQueued = "queued"
	TaskActive = "active"
	TaskDone   = "done"
	TaskFailed = "failed"
)

// Automation modes. Semi-automatic gates recovery attempts behind an
// external confirmation; it does not change the state set.
const (
	ModeFullAuto = "full"
	ModeSemiAuto = "semi"
)

// EnsureOrderTransition guards order status changes.
func EnsureOrderTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case OrderPending:
		if newStatus == OrderInProgress || newStatus == OrderFailed {
			return nil
		}
	case OrderInProgress:
		if newStatus == OrderCompleted || newStatus == OrderFailed {
			return nil
		}
	}
	return fmt.Errorf("invalid order status transition %s -> %s", oldStatus, newStatus)
}

// EnsureTaskTransition guards task status changes.
func EnsureTaskTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case TaskQueued:
		if newStatus == TaskActive || newStatus == TaskFailed {
			return nil
		}
	case TaskActive:
		if newStatus == TaskDone || newStatus == TaskFailed {
			return nil
		}
	}
	return fmt.Errorf("invalid task status transition %s -> %s", oldStatus, newStatus)
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
