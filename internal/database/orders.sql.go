// source: orders.sql

package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, session_key, order_no, service_type, payment_type, status, total_amount,
       created_at, paid_at, printed_at, cancelled_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.SessionKey,
		&i.OrderNo,
		&i.ServiceType,
		&i.PaymentType,
		&i.Status,
		&i.TotalAmount,
		&i.CreatedAt,
		&i.PaidAt,
		&i.PrintedAt,
		&i.CancelledAt,
	)
	return i, err
}

const cancelOrder = `-- name: CancelOrder :execrows
UPDATE orders
SET status = 'CANCELLED', cancelled_at = now()
WHERE id = $1 AND status IN ('CREATED', 'PAID')
`

func (q *Queries) CancelOrder(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, cancelOrder, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (session_key, order_no, service_type, status, total_amount)
VALUES ($1, $2, $3, 'CREATED', 0)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	SessionKey  string      `json:"session_key"`
	OrderNo     string      `json:"order_no"`
	ServiceType ServiceType `json:"service_type"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.SessionKey, arg.OrderNo, string(arg.ServiceType))
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, name, qty, base_price, line_total, image_path)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, product_id, name, qty, base_price, line_total, image_path
`

type CreateOrderItemParams struct {
	OrderID   int64          `json:"order_id"`
	ProductID int64          `json:"product_id"`
	Name      string         `json:"name"`
	Qty       int32          `json:"qty"`
	BasePrice pgtype.Numeric `json:"base_price"`
	LineTotal pgtype.Numeric `json:"line_total"`
	ImagePath pgtype.Text    `json:"image_path"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.Name,
		arg.Qty,
		arg.BasePrice,
		arg.LineTotal,
		arg.ImagePath,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.Name,
		&i.Qty,
		&i.BasePrice,
		&i.LineTotal,
		&i.ImagePath,
	)
	return i, err
}

const createOrderItemVariant = `-- name: CreateOrderItemVariant :one
INSERT INTO order_item_variants (order_item_id, group_id, group_name, value_id, value_name, extra_price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_item_id, group_id, group_name, value_id, value_name, extra_price
`

type CreateOrderItemVariantParams struct {
	OrderItemID int64          `json:"order_item_id"`
	GroupID     int64          `json:"group_id"`
	GroupName   string         `json:"group_name"`
	ValueID     int64          `json:"value_id"`
	ValueName   string         `json:"value_name"`
	ExtraPrice  pgtype.Numeric `json:"extra_price"`
}

func (q *Queries) CreateOrderItemVariant(ctx context.Context, arg CreateOrderItemVariantParams) (OrderItemVariant, error) {
	row := q.db.QueryRow(ctx, createOrderItemVariant,
		arg.OrderItemID,
		arg.GroupID,
		arg.GroupName,
		arg.ValueID,
		arg.ValueName,
		arg.ExtraPrice,
	)
	var i OrderItemVariant
	err := row.Scan(
		&i.ID,
		&i.OrderItemID,
		&i.GroupID,
		&i.GroupName,
		&i.ValueID,
		&i.ValueName,
		&i.ExtraPrice,
	)
	return i, err
}

const getLastOrderSequence = `-- name: GetLastOrderSequence :one
SELECT COALESCE(MAX(substring(order_no FROM char_length($1::text) + 1)::int), 0)::int4 AS seq
FROM orders
WHERE order_no LIKE $1::text || '%'
`

// Returns the highest sequence already issued under the given day prefix
// (e.g. "K-20260301-"), or 0 when none exists.
func (q *Queries) GetLastOrderSequence(ctx context.Context, prefix string) (int32, error) {
	row := q.db.QueryRow(ctx, getLastOrderSequence, prefix)
	var seq int32
	err := row.Scan(&seq)
	return seq, err
}

const lockOrderNumberPrefix = `-- name: LockOrderNumberPrefix :exec
SELECT pg_advisory_xact_lock(hashtext($1::text))
`

// Serializes order numbering for one day prefix until the transaction ends.
func (q *Queries) LockOrderNumberPrefix(ctx context.Context, prefix string) error {
	_, err := q.db.Exec(ctx, lockOrderNumberPrefix, prefix)
	return err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	return scanOrder(row)
}

const listOrderItemVariantsByOrderItem = `-- name: ListOrderItemVariantsByOrderItem :many
SELECT id, order_item_id, group_id, group_name, value_id, value_name, extra_price
FROM order_item_variants
WHERE order_item_id = $1
ORDER BY id ASC
`

func (q *Queries) ListOrderItemVariantsByOrderItem(ctx context.Context, orderItemID int64) ([]OrderItemVariant, error) {
	rows, err := q.db.Query(ctx, listOrderItemVariantsByOrderItem, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItemVariant{}
	for rows.Next() {
		var i OrderItemVariant
		if err := rows.Scan(
			&i.ID,
			&i.OrderItemID,
			&i.GroupID,
			&i.GroupName,
			&i.ValueID,
			&i.ValueName,
			&i.ExtraPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT id, order_id, product_id, name, qty, base_price, line_total, image_path
FROM order_items
WHERE order_id = $1
ORDER BY id ASC
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.Name,
			&i.Qty,
			&i.BasePrice,
			&i.LineTotal,
			&i.ImagePath,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1::text)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`

type ListOrdersParams struct {
	Status NullOrderStatus `json:"status"`
	Limit  int32           `json:"limit"`
	Offset int32           `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markOrderPaid = `-- name: MarkOrderPaid :execrows
UPDATE orders
SET status = 'PAID', paid_at = now()
WHERE id = $1 AND status = 'CREATED'
`

func (q *Queries) MarkOrderPaid(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, markOrderPaid, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markOrderPrinted = `-- name: MarkOrderPrinted :execrows
UPDATE orders
SET status = 'PRINTED', printed_at = now()
WHERE id = $1 AND status IN ('CREATED', 'PAID')
`

func (q *Queries) MarkOrderPrinted(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, markOrderPrinted, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const setOrderPaymentType = `-- name: SetOrderPaymentType :execrows
UPDATE orders
SET payment_type = $2
WHERE id = $1 AND status = 'CREATED'
`

type SetOrderPaymentTypeParams struct {
	ID          int64       `json:"id"`
	PaymentType PaymentType `json:"payment_type"`
}

func (q *Queries) SetOrderPaymentType(ctx context.Context, arg SetOrderPaymentTypeParams) (int64, error) {
	result, err := q.db.Exec(ctx, setOrderPaymentType, arg.ID, string(arg.PaymentType))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateOrderTotal = `-- name: UpdateOrderTotal :one
UPDATE orders
SET total_amount = $2
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderTotalParams struct {
	ID          int64          `json:"id"`
	TotalAmount pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderTotal, arg.ID, arg.TotalAmount)
	return scanOrder(row)
}
