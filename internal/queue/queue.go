// Package queue holds pending robot tasks in strict FIFO order. Tasks are
// validated against the inventory once, at admission; dequeue does not
// re-check.
package queue

import (
	"fmt"
	"sync"

	"warebot/internal/domain"
	"warebot/internal/inventory"
)

type Queue struct {
	mu    sync.Mutex
	tasks []domain.Task
	inv   *inventory.Store
}

func New(inv *inventory.Store) *Queue {
	return &Queue{inv: inv}
}

// Enqueue appends a task to the tail after verifying its item exists.
func (q *Queue) Enqueue(task domain.Task) error {
	if _, err := q.inv.Find(task.ItemID); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownItem, task.ItemID)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

// Dequeue removes and returns the head. An empty queue is a valid steady
// state for the caller; it is still reported as an error here so the
// orchestrator can distinguish it from a task.
func (q *Queue) Dequeue() (domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return domain.Task{}, domain.ErrEmptyQueue
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, nil
}

// Remove aborts a still-queued task by id.
func (q *Queue) Remove(taskID string) (domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, task := range q.tasks {
		if task.ID == taskID {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return task, nil
		}
	}
	return domain.Task{}, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
}

func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
