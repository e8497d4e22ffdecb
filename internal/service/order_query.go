package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiosk-pos/api/internal/database"
)

const (
	localTimeLayout  = "2006-01-02 15:04:05"
	defaultListLimit = 50
	maxListLimit     = 200
)

// ErrInvalidStatus is returned by List for an unknown status filter.
var ErrInvalidStatus = newError(ErrValidation, "invalid status")

// FullOrder is the order with its item and variant snapshots, as used by the
// receipt renderer. The *_local fields are the timestamps in the shop's zone.
type FullOrder struct {
	database.Order
	CreatedAtLocal   string          `json:"created_at_local"`
	PaidAtLocal      *string         `json:"paid_at_local"`
	PrintedAtLocal   *string         `json:"printed_at_local"`
	CancelledAtLocal *string         `json:"cancelled_at_local"`
	Items            []FullOrderItem `json:"items"`
}

// FullOrderItem is one order item with its variants.
type FullOrderItem struct {
	database.OrderItem
	Variants []database.OrderItemVariant `json:"variants"`
}

// GetFull loads an order with items ordered by id, each with its variants
// ordered by id.
func (s *OrderService) GetFull(ctx context.Context, orderID int64) (*FullOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	full := &FullOrder{
		Order:            order,
		CreatedAtLocal:   order.CreatedAt.In(s.loc).Format(localTimeLayout),
		PaidAtLocal:      s.localTime(order.PaidAt),
		PrintedAtLocal:   s.localTime(order.PrintedAt),
		CancelledAtLocal: s.localTime(order.CancelledAt),
		Items:            make([]FullOrderItem, 0, len(items)),
	}
	for _, item := range items {
		variants, err := store.ListOrderItemVariantsByOrderItem(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("list order item variants: %w", err)
		}
		full.Items = append(full.Items, FullOrderItem{OrderItem: item, Variants: variants})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return full, nil
}

// List returns orders newest first, optionally filtered by status.
func (s *OrderService) List(ctx context.Context, status string, limit, offset int) ([]database.Order, error) {
	filter := database.NullOrderStatus{}
	if status != "" {
		switch st := database.OrderStatus(status); st {
		case database.OrderStatusCREATED, database.OrderStatusPAID,
			database.OrderStatusPRINTED, database.OrderStatusCANCELLED:
			filter = database.NullOrderStatus{OrderStatus: st, Valid: true}
		default:
			return nil, ErrInvalidStatus
		}
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	orders, err := s.newStore(tx).ListOrders(ctx, database.ListOrdersParams{
		Status: filter,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return orders, nil
}

func (s *OrderService) localTime(ts pgtype.Timestamptz) *string {
	if !ts.Valid {
		return nil
	}
	v := ts.Time.In(s.loc).Format(localTimeLayout)
	return &v
}
