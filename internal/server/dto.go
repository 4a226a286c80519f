package server

import (
	"warebot/internal/domain"
)

// Request payloads

type CreateItemRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Fragile  bool    `json:"fragile,omitempty"`
	Location string  `json:"location"`
}

type OrderLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type SubmitOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	Lines      []OrderLineRequest `json:"lines"`
}

type RunRequest struct {
	Tasks int `json:"tasks,omitempty" doc:"Number of tasks to run; 0 drains the queue"`
}

// Response payloads

type ItemResponse struct {
	Item domain.Item `json:"item"`
}

type ItemListResponse struct {
	Items []domain.Item `json:"items"`
	Total int           `json:"total"`
}

type OrderResponse struct {
	Order domain.Order  `json:"order"`
	Tasks []domain.Task `json:"tasks,omitempty"`
}

type OrderListResponse struct {
	Orders []domain.Order `json:"orders"`
	Total  int            `json:"total"`
}

type TaskResponse struct {
	Task domain.Task `json:"task"`
}

type RunResponse struct {
	Finished []domain.Task `json:"finished"`
	Error    string        `json:"error,omitempty"`
}

type EventListResponse struct {
	Events []domain.Event `json:"events"`
}

func toOrderLines(lines []OrderLineRequest) []domain.OrderLine {
	out := make([]domain.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.OrderLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return out
}
