package warebotsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Warebot HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Item represents an inventory record.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Fragile  bool    `json:"fragile"`
	Location string  `json:"location"`
	AddedAt  string  `json:"added_at,omitempty"`
}

// OrderLine is one requested item within an order.
type OrderLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Order represents a submitted order.
type Order struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customer_id"`
	Lines      []OrderLine `json:"lines"`
	Status     string      `json:"status"`
	CreatedAt  string      `json:"created_at"`
	UpdatedAt  string      `json:"updated_at"`
}

// Task is one unit of robot work.
type Task struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Payload    string `json:"payload_json"`
}

// Snapshot is the robot status summary.
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
}

// RunResult reports a run invocation.
type RunResult struct {
	Finished []Task `json:"finished"`
	Error    string `json:"error,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// AddItem adds an inventory item.
func (c *Client) AddItem(ctx context.Context, item Item) (Item, error) {
	var resp struct {
		Item Item `json:"item"`
	}
	err := c.do(ctx, http.MethodPost, "v0/items", item, &resp)
	return resp.Item, err
}

// Items lists inventory, optionally filtered by location.
func (c *Client) Items(ctx context.Context, location string) ([]Item, error) {
	endpoint := "v0/items"
	if location != "" {
		endpoint += "?location=" + url.QueryEscape(location)
	}
	var resp struct {
		Items []Item `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// RemoveItem removes an item by id.
func (c *Client) RemoveItem(ctx context.Context, id string) (Item, error) {
	var resp struct {
		Item Item `json:"item"`
	}
	err := c.do(ctx, http.MethodDelete, "v0/items/"+url.PathEscape(id), nil, &resp)
	return resp.Item, err
}

// SubmitOrder submits an order.
func (c *Client) SubmitOrder(ctx context.Context, customerID string, lines []OrderLine) (Order, error) {
	body := map[string]any{
		"customer_id": customerID,
		"lines":       lines,
	}
	var resp struct {
		Order Order `json:"order"`
	}
	err := c.do(ctx, http.MethodPost, "v0/orders", body, &resp)
	return resp.Order, err
}

// Order fetches an order and its tasks.
func (c *Client) Order(ctx context.Context, id string) (Order, []Task, error) {
	var resp struct {
		Order Order  `json:"order"`
		Tasks []Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, "v0/orders/"+url.PathEscape(id), nil, &resp)
	return resp.Order, resp.Tasks, err
}

// CancelTask cancels a queued task.
func (c *Client) CancelTask(ctx context.Context, id string) (Task, error) {
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodDelete, "v0/tasks/"+url.PathEscape(id), nil, &resp)
	return resp.Task, err
}

// Run executes up to n queued tasks; 0 drains the queue.
func (c *Client) Run(ctx context.Context, n int) (RunResult, error) {
	var resp RunResult
	err := c.do(ctx, http.MethodPost, "v0/run", map[string]any{"tasks": n}, &resp)
	return resp, err
}

// Status returns the robot status snapshot.
func (c *Client) Status(ctx context.Context) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodGet, "v0/status", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
