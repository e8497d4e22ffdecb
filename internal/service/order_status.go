package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kiosk-pos/api/internal/database"
	"github.com/kiosk-pos/api/internal/metrics"
)

// Transition names used in events and metrics.
const (
	TransitionPaymentType = "payment_type"
	TransitionPaid        = "paid"
	TransitionPrinted     = "printed"
	TransitionCancelled   = "cancelled"
)

// TransitionResult reports whether a status change took effect, plus the
// order as it is after the attempt.
type TransitionResult struct {
	Changed bool           `json:"changed"`
	Order   database.Order `json:"order"`
}

// SetPaymentType records how a CREATED order will be paid.
func (s *OrderService) SetPaymentType(ctx context.Context, orderID int64, paymentType string) (*TransitionResult, error) {
	pt := database.PaymentType(paymentType)
	if pt != database.PaymentTypeCounter && pt != database.PaymentTypeQr {
		return nil, ErrInvalidPaymentType
	}
	return s.transition(ctx, orderID, TransitionPaymentType, func(store OrderStore) (int64, error) {
		return store.SetOrderPaymentType(ctx, database.SetOrderPaymentTypeParams{ID: orderID, PaymentType: pt})
	})
}

// MarkPaid moves CREATED to PAID.
func (s *OrderService) MarkPaid(ctx context.Context, orderID int64) (*TransitionResult, error) {
	return s.transition(ctx, orderID, TransitionPaid, func(store OrderStore) (int64, error) {
		return store.MarkOrderPaid(ctx, orderID)
	})
}

// MarkPrinted moves CREATED or PAID to PRINTED.
func (s *OrderService) MarkPrinted(ctx context.Context, orderID int64) (*TransitionResult, error) {
	return s.transition(ctx, orderID, TransitionPrinted, func(store OrderStore) (int64, error) {
		return store.MarkOrderPrinted(ctx, orderID)
	})
}

// Cancel moves CREATED or PAID to CANCELLED.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) (*TransitionResult, error) {
	return s.transition(ctx, orderID, TransitionCancelled, func(store OrderStore) (int64, error) {
		return store.CancelOrder(ctx, orderID)
	})
}

// transition runs a guarded update. A status that does not allow the change
// is not an error: the result just reports Changed=false.
func (s *OrderService) transition(ctx context.Context, orderID int64, name string, apply func(OrderStore) (int64, error)) (*TransitionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	n, err := apply(store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	metrics.ObserveTransition(name, n > 0)
	return &TransitionResult{Changed: n > 0, Order: order}, nil
}
