package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/pagination"
	"github.com/orderdesk/api/internal/platform/sqldb"
	"github.com/orderdesk/api/internal/repositories"
)

const (
	orderColumns     = `id, customer_id, order_date, status, shipping_address_id, billing_address_id, total_amount, updated_at`
	orderLineColumns = `order_id, seq_id, product_id, quantity, unit_price, subtotal, status`
)

// OrderRepository persists order headers and lines.
type OrderRepository struct {
	provider *sqldb.Provider
}

// NewOrderRepository constructs a SQL-backed order repository.
func NewOrderRepository(provider *sqldb.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires sql provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// Insert writes the header and all of its lines. Callers wrap it in a unit of work.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("orders.insert: order id is required")
	}
	q := r.provider.Querier(ctx)
	_, err := q.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID,
		order.CustomerID,
		order.OrderDate.UTC(),
		order.Status,
		nullString(order.ShippingAddressID),
		nullString(order.BillingAddressID),
		order.TotalAmount,
		order.UpdatedAt.UTC(),
	)
	if err != nil {
		return sqldb.WrapError("orders.insert", err)
	}

	for _, line := range order.Lines {
		line.OrderID = order.ID
		if err := r.InsertLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// UpdateHeader persists status, address references, total and updated timestamp.
func (r *OrderRepository) UpdateHeader(ctx context.Context, order domain.Order) error {
	res, err := r.provider.Querier(ctx).ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, shipping_address_id = $2, billing_address_id = $3, total_amount = $4, updated_at = $5
		 WHERE id = $6`,
		order.Status,
		nullString(order.ShippingAddressID),
		nullString(order.BillingAddressID),
		order.TotalAmount,
		order.UpdatedAt.UTC(),
		order.ID,
	)
	return expectAffected("orders.update", res, err, "order %s", order.ID)
}

// TransitionStatus moves an order from one status to another. The update only matches while the row still
// holds from, so a concurrent writer that committed first turns this call into a conflict.
func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID, from, to string, updatedAt time.Time) error {
	const op = "orders.transition"

	orderID = strings.TrimSpace(orderID)
	res, err := r.provider.Querier(ctx).ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, updatedAt.UTC(), orderID, from,
	)
	if err != nil {
		return sqldb.WrapError(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return sqldb.WrapError(op, err)
	}
	if affected > 0 {
		return nil
	}

	found, err := r.Exists(ctx, orderID)
	if err != nil {
		return err
	}
	if !found {
		return sqldb.NotFound(op, "order %s not found", orderID)
	}
	return sqldb.Conflict(op, "order %s is no longer %s", orderID, from)
}

// FindByID loads the header together with its lines ordered by sequence.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	row := r.provider.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, strings.TrimSpace(orderID))
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, sqldb.WrapError("orders.find", err)
	}

	lines, err := r.FindLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines
	return order, nil
}

// Exists reports whether the order id resolves.
func (r *OrderRepository) Exists(ctx context.Context, orderID string) (bool, error) {
	return exists(ctx, r.provider, "orders.exists", `SELECT 1 FROM orders WHERE id = $1`, strings.TrimSpace(orderID))
}

// List returns orders newest first. Order ids are ULID based so descending id order tracks creation time,
// which also makes the id a stable keyset cursor.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	const op = "orders.list"

	var (
		conditions []string
		args       []any
	)
	if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" {
		args = append(args, customerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		args = append(args, cursor.After)
		conditions = append(conditions, fmt.Sprintf("id < $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY id DESC`

	pageSize := filter.Pagination.PageSize
	if pageSize > 0 {
		args = append(args, pageSize+1)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.provider.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, sqldb.WrapError(op, err)
	}
	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return domain.CursorPage[domain.Order]{}, sqldb.WrapError(op, err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return domain.CursorPage[domain.Order]{}, sqldb.WrapError(op, err)
	}
	rows.Close()

	var nextToken string
	if pageSize > 0 && len(orders) > pageSize {
		orders = orders[:pageSize]
		nextToken, err = pagination.EncodeToken(pagination.Cursor{After: orders[len(orders)-1].ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

// Delete removes the header and its lines.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	q := r.provider.Querier(ctx)
	orderID = strings.TrimSpace(orderID)
	if _, err := q.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = $1`, orderID); err != nil {
		return sqldb.WrapError("orders.delete_lines", err)
	}
	res, err := q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	return expectAffected("orders.delete", res, err, "order %s", orderID)
}

// FindLines returns an order's lines ordered by sequence.
func (r *OrderRepository) FindLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.provider.Querier(ctx).QueryContext(ctx,
		`SELECT `+orderLineColumns+` FROM order_lines WHERE order_id = $1 ORDER BY seq_id`, strings.TrimSpace(orderID))
	if err != nil {
		return nil, sqldb.WrapError("orders.lines", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		line, err := scanOrderLine(rows)
		if err != nil {
			return nil, sqldb.WrapError("orders.lines", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, sqldb.WrapError("orders.lines", err)
	}
	return lines, nil
}

// FindLine loads a single line by order id and sequence.
func (r *OrderRepository) FindLine(ctx context.Context, orderID string, seqID int) (domain.OrderLine, error) {
	row := r.provider.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+orderLineColumns+` FROM order_lines WHERE order_id = $1 AND seq_id = $2`, strings.TrimSpace(orderID), seqID)
	line, err := scanOrderLine(row)
	if err != nil {
		return domain.OrderLine{}, sqldb.WrapError("orders.line", err)
	}
	return line, nil
}

// NextLineSeq returns the next free line sequence for an order, starting at 1.
func (r *OrderRepository) NextLineSeq(ctx context.Context, orderID string) (int, error) {
	var next int
	err := r.provider.Querier(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq_id), 0) + 1 FROM order_lines WHERE order_id = $1`, strings.TrimSpace(orderID)).Scan(&next)
	if err != nil {
		return 0, sqldb.WrapError("orders.next_line_seq", err)
	}
	return next, nil
}

// InsertLine appends a line to an existing order.
func (r *OrderRepository) InsertLine(ctx context.Context, line domain.OrderLine) error {
	_, err := r.provider.Querier(ctx).ExecContext(ctx,
		`INSERT INTO order_lines (`+orderLineColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		line.OrderID,
		line.SeqID,
		line.ProductID,
		line.Quantity,
		line.UnitPrice,
		line.Subtotal,
		line.Status,
	)
	return sqldb.WrapError("orders.insert_line", err)
}

// UpdateLine persists quantity, subtotal and status of a line.
func (r *OrderRepository) UpdateLine(ctx context.Context, line domain.OrderLine) error {
	res, err := r.provider.Querier(ctx).ExecContext(ctx,
		`UPDATE order_lines SET quantity = $1, subtotal = $2, status = $3 WHERE order_id = $4 AND seq_id = $5`,
		line.Quantity,
		line.Subtotal,
		line.Status,
		line.OrderID,
		line.SeqID,
	)
	return expectAffected("orders.update_line", res, err, "order %s line %d", line.OrderID, line.SeqID)
}

// DeleteLine removes a single line.
func (r *OrderRepository) DeleteLine(ctx context.Context, orderID string, seqID int) error {
	res, err := r.provider.Querier(ctx).ExecContext(ctx,
		`DELETE FROM order_lines WHERE order_id = $1 AND seq_id = $2`, strings.TrimSpace(orderID), seqID)
	return expectAffected("orders.delete_line", res, err, "order %s line %d", orderID, seqID)
}

func (r *OrderRepository) attachLines(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	const op = "orders.list_lines"

	index := make(map[string]int, len(orders))
	args := make([]any, 0, len(orders))
	for i := range orders {
		orders[i].Lines = make([]domain.OrderLine, 0)
		index[orders[i].ID] = i
		args = append(args, orders[i].ID)
	}

	rows, err := r.provider.Querier(ctx).QueryContext(ctx,
		`SELECT `+orderLineColumns+` FROM order_lines WHERE order_id IN (`+placeholders(1, len(args))+`) ORDER BY order_id, seq_id`,
		args...)
	if err != nil {
		return sqldb.WrapError(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		line, err := scanOrderLine(rows)
		if err != nil {
			return sqldb.WrapError(op, err)
		}
		if i, ok := index[line.OrderID]; ok {
			orders[i].Lines = append(orders[i].Lines, line)
		}
	}
	return sqldb.WrapError(op, rows.Err())
}

func expectAffected(op string, res sql.Result, err error, format string, args ...any) error {
	if err != nil {
		return sqldb.WrapError(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return sqldb.WrapError(op, err)
	}
	if affected == 0 {
		return sqldb.NotFound(op, format+" not found", args...)
	}
	return nil
}

func scanOrder(row scanner) (domain.Order, error) {
	var (
		o        domain.Order
		shipping sql.NullString
		billing  sql.NullString
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.Status, &shipping, &billing, &o.TotalAmount, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.OrderDate = o.OrderDate.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	o.ShippingAddressID = stringPtr(shipping)
	o.BillingAddressID = stringPtr(billing)
	return o, nil
}

func scanOrderLine(row scanner) (domain.OrderLine, error) {
	var l domain.OrderLine
	err := row.Scan(&l.OrderID, &l.SeqID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Subtotal, &l.Status)
	return l, err
}
