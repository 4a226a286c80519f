package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"warebot/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

// ErrNotFound is re-exported so callers outside the storage layer can
// branch without importing database/sql.
var ErrNotFound = domain.ErrNotFound

func (r Repo) InsertItemTx(ctx context.Context, tx *sql.Tx, it domain.Item) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO items(id,name,weight,fragile,location,added_at) VALUES (?,?,?,?,?,?)`,
		it.ID, it.Name, it.Weight, boolInt(it.Fragile), it.Location, it.AddedAt)
	return err
}

func (r Repo) DeleteItemTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetItem(ctx context.Context, id string) (domain.Item, error) {
	var it domain.Item
	var fragile int
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,weight,fragile,location,added_at FROM items WHERE id=?`, id).
		Scan(&it.ID, &it.Name, &it.Weight, &fragile, &it.Location, &it.AddedAt)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	it.Fragile = fragile != 0
	return it, err
}

func (r Repo) ListItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,weight,fragile,location,added_at FROM items ORDER BY added_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Item
	for rows.Next() {
		var it domain.Item
		var fragile int
		if err := rows.Scan(&it.ID, &it.Name, &it.Weight, &fragile, &it.Location, &it.AddedAt); err != nil {
			return nil, err
		}
		it.Fragile = fragile != 0
		res = append(res, it)
	}
	return res, nil
}

func (r Repo) InsertOrderTx(ctx context.Context, tx *sql.Tx, o domain.Order) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO orders(id,customer_id,status,created_at,updated_at) VALUES (?,?,?,?,?)`,
		o.ID, o.CustomerID, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for pos, line := range o.Lines {
		if _, err := tx.ExecContext(ctx, `INSERT INTO order_lines(order_id,item_id,quantity,pos) VALUES (?,?,?,?)`,
			o.ID, line.ItemID, line.Quantity, pos); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := r.DB.QueryRowContext(ctx, `SELECT id,customer_id,status,created_at,updated_at FROM orders WHERE id=?`, id).
		Scan(&o.ID, &o.CustomerID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT item_id,quantity FROM order_lines WHERE order_id=? ORDER BY pos ASC`, id)
	if err != nil {
		return o, err
	}
	defer rows.Close()
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ItemID, &line.Quantity); err != nil {
			return o, err
		}
		o.Lines = append(o.Lines, line)
	}
	return o, nil
}

func (r Repo) ListOrders(ctx context.Context, status string) ([]domain.Order, error) {
	clauses := []string{"1=1"}
	var args []any
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := r.DB.QueryContext(ctx, `SELECT id,customer_id,status,created_at,updated_at FROM orders `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, nil
}

func (r Repo) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,order_id,item_id,quantity,status,reason,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.OrderID, t.ItemID, t.Quantity, t.Status, nullable(t.Reason), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	var reason sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,order_id,item_id,quantity,status,reason,created_at,updated_at FROM tasks WHERE id=?`, id).
		Scan(&t.ID, &t.OrderID, &t.ItemID, &t.Quantity, &t.Status, &reason, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if reason.Valid {
		t.Reason = reason.String
	}
	return t, err
}

type TaskFilters struct {
	OrderID string
	Status  string
	Limit   int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.OrderID != "" {
		clauses = append(clauses, "order_id=?")
		args = append(args, f.OrderID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	// rowid is the persisted insertion sequence; created_at alone has
	// one-second resolution, which would shuffle tasks admitted within
	// the same second
	query := `SELECT id,order_id,item_id,quantity,status,reason,created_at,updated_at FROM tasks ` + where + ` ORDER BY rowid ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		var reason sql.NullString
		if err := rows.Scan(&t.ID, &t.OrderID, &t.ItemID, &t.Quantity, &t.Status, &reason, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if reason.Valid {
			t.Reason = reason.String
		}
		res = append(res, t)
	}
	return res, nil
}

func (r Repo) UpdateTaskStatusTx(ctx context.Context, tx *sql.Tx, id, status, reason, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, reason=?, updated_at=? WHERE id=?`, status, nullable(reason), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRemainingTasksTx counts an order's tasks that still have to run,
// excluding the given task.
func (r Repo) CountRemainingTasksTx(ctx context.Context, tx *sql.Tx, orderID, excludeTaskID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM tasks WHERE order_id=? AND id!=? AND status IN (?,?)`,
		orderID, excludeTaskID, domain.TaskQueued, domain.TaskActive).Scan(&n)
	return n, err
}

func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, nil
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityIDCol sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityIDCol, &e.Payload); err != nil {
			return nil, err
		}
		if entityIDCol.Valid {
			e.EntityID = entityIDCol.String
		}
		res = append(res, e)
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
