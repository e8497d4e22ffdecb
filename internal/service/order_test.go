package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiosk-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	commits     int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getSessionForUpdateFn   func(ctx context.Context, key string) (database.GetSessionForUpdateRow, error)
	expireSessionFn         func(ctx context.Context, key string) (int64, error)
	getProductForOrderFn    func(ctx context.Context, id int64) (database.GetProductForOrderRow, error)
	listGroupsFn            func(ctx context.Context, productID int64) ([]database.ListActiveVariantGroupsByProductRow, error)
	listValuesFn            func(ctx context.Context, groupIDs []int64) ([]database.ListVariantValuesByGroupsRow, error)
	lockPrefixFn            func(ctx context.Context, prefix string) error
	getLastOrderSequenceFn  func(ctx context.Context, prefix string) (int32, error)
	createOrderFn           func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn       func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	createOrderItemVarFn    func(ctx context.Context, arg database.CreateOrderItemVariantParams) (database.OrderItemVariant, error)
	updateOrderTotalFn      func(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	getOrderFn              func(ctx context.Context, id int64) (database.Order, error)
	listOrdersFn            func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listOrderItemsFn        func(ctx context.Context, orderID int64) ([]database.OrderItem, error)
	listOrderItemVariantsFn func(ctx context.Context, itemID int64) ([]database.OrderItemVariant, error)
	setPaymentTypeFn        func(ctx context.Context, arg database.SetOrderPaymentTypeParams) (int64, error)
	markPaidFn              func(ctx context.Context, id int64) (int64, error)
	markPrintedFn           func(ctx context.Context, id int64) (int64, error)
	cancelFn                func(ctx context.Context, id int64) (int64, error)
}

func (m *mockOrderStore) GetSessionForUpdate(ctx context.Context, key string) (database.GetSessionForUpdateRow, error) {
	return m.getSessionForUpdateFn(ctx, key)
}
func (m *mockOrderStore) ExpireSession(ctx context.Context, key string) (int64, error) {
	return m.expireSessionFn(ctx, key)
}
func (m *mockOrderStore) GetProductForOrder(ctx context.Context, id int64) (database.GetProductForOrderRow, error) {
	return m.getProductForOrderFn(ctx, id)
}
func (m *mockOrderStore) ListActiveVariantGroupsByProduct(ctx context.Context, productID int64) ([]database.ListActiveVariantGroupsByProductRow, error) {
	return m.listGroupsFn(ctx, productID)
}
func (m *mockOrderStore) ListVariantValuesByGroups(ctx context.Context, groupIDs []int64) ([]database.ListVariantValuesByGroupsRow, error) {
	return m.listValuesFn(ctx, groupIDs)
}
func (m *mockOrderStore) LockOrderNumberPrefix(ctx context.Context, prefix string) error {
	if m.lockPrefixFn == nil {
		return nil
	}
	return m.lockPrefixFn(ctx, prefix)
}
func (m *mockOrderStore) GetLastOrderSequence(ctx context.Context, prefix string) (int32, error) {
	return m.getLastOrderSequenceFn(ctx, prefix)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItemVariant(ctx context.Context, arg database.CreateOrderItemVariantParams) (database.OrderItemVariant, error) {
	return m.createOrderItemVarFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
	return m.updateOrderTotalFn(ctx, arg)
}
func (m *mockOrderStore) GetOrder(ctx context.Context, id int64) (database.Order, error) {
	return m.getOrderFn(ctx, id)
}
func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	return m.listOrdersFn(ctx, arg)
}
func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error) {
	return m.listOrderItemsFn(ctx, orderID)
}
func (m *mockOrderStore) ListOrderItemVariantsByOrderItem(ctx context.Context, itemID int64) ([]database.OrderItemVariant, error) {
	return m.listOrderItemVariantsFn(ctx, itemID)
}
func (m *mockOrderStore) SetOrderPaymentType(ctx context.Context, arg database.SetOrderPaymentTypeParams) (int64, error) {
	return m.setPaymentTypeFn(ctx, arg)
}
func (m *mockOrderStore) MarkOrderPaid(ctx context.Context, id int64) (int64, error) {
	return m.markPaidFn(ctx, id)
}
func (m *mockOrderStore) MarkOrderPrinted(ctx context.Context, id int64) (int64, error) {
	return m.markPrintedFn(ctx, id)
}
func (m *mockOrderStore) CancelOrder(ctx context.Context, id int64) (int64, error) {
	return m.cancelFn(ctx, id)
}

// --- Test helpers ---

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func activeSession(key string) database.GetSessionForUpdateRow {
	return database.GetSessionForUpdateRow{
		Session: database.Session{
			ID:         1,
			SessionKey: key,
			Status:     database.SessionStatusACTIVE,
			StartedAt:  testNow.Add(-time.Minute),
			LastSeenAt: testNow.Add(-time.Minute),
			ExpiresAt:  testNow.Add(6 * time.Minute),
		},
		DbNow: testNow,
	}
}

// newTestService creates an OrderService with mocked dependencies and a
// fixed clock in UTC.
func newTestService(store *mockOrderStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	svc := NewOrderService(pool, newStore, time.UTC)
	svc.now = func() time.Time { return testNow }
	return svc, tx
}

// recorder captures what the pipeline writes.
type recorder struct {
	order    database.CreateOrderParams
	items    []database.CreateOrderItemParams
	variants []database.CreateOrderItemVariantParams
	total    pgtype.Numeric
}

// defaultStore returns a store with one active session "sess-1" and a catalog
// of product 10 (Nasi Goreng, 25000) with a required "Spice" group (max 1)
// and an optional "Topping" group (max 2).
func defaultStore(rec *recorder) *mockOrderStore {
	return &mockOrderStore{
		getSessionForUpdateFn: func(ctx context.Context, key string) (database.GetSessionForUpdateRow, error) {
			if key == "sess-1" {
				return activeSession(key), nil
			}
			return database.GetSessionForUpdateRow{}, pgx.ErrNoRows
		},
		expireSessionFn: func(ctx context.Context, key string) (int64, error) {
			return 1, nil
		},
		getProductForOrderFn: func(ctx context.Context, id int64) (database.GetProductForOrderRow, error) {
			switch id {
			case 10:
				return database.GetProductForOrderRow{
					ID:        10,
					Name:      "Nasi Goreng",
					BasePrice: makeNumeric("25000.00"),
					ImagePath: pgtype.Text{String: "img/nasi.png", Valid: true},
					IsActive:  true,
				}, nil
			case 20:
				return database.GetProductForOrderRow{
					ID:        20,
					Name:      "Es Teh",
					BasePrice: makeNumeric("5000.00"),
					IsActive:  true,
				}, nil
			case 30:
				return database.GetProductForOrderRow{ID: 30, Name: "Old Menu", BasePrice: makeNumeric("1000.00")}, nil
			}
			return database.GetProductForOrderRow{}, pgx.ErrNoRows
		},
		listGroupsFn: func(ctx context.Context, productID int64) ([]database.ListActiveVariantGroupsByProductRow, error) {
			if productID != 10 {
				return nil, nil
			}
			return []database.ListActiveVariantGroupsByProductRow{
				{ID: 100, ProductID: 10, Name: "Spice", IsRequired: true, MaxSelect: 1},
				{ID: 200, ProductID: 10, Name: "Topping", IsRequired: false, MaxSelect: 2},
			}, nil
		},
		listValuesFn: func(ctx context.Context, groupIDs []int64) ([]database.ListVariantValuesByGroupsRow, error) {
			return []database.ListVariantValuesByGroupsRow{
				{ID: 101, GroupID: 100, Name: "Mild", ExtraPrice: makeNumeric("0"), IsActive: true},
				{ID: 102, GroupID: 100, Name: "Hot", ExtraPrice: makeNumeric("1000.00"), IsActive: true},
				{ID: 201, GroupID: 200, Name: "Egg", ExtraPrice: makeNumeric("3000.00"), IsActive: true},
				{ID: 202, GroupID: 200, Name: "Chicken", ExtraPrice: makeNumeric("5000.00"), IsActive: true},
				{ID: 203, GroupID: 200, Name: "Cheese", ExtraPrice: makeNumeric("4000.00"), IsActive: true},
				{ID: 204, GroupID: 200, Name: "Sold Out", ExtraPrice: makeNumeric("2000.00"), IsActive: false},
			}, nil
		},
		getLastOrderSequenceFn: func(ctx context.Context, prefix string) (int32, error) {
			return 0, nil
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			rec.order = arg
			return database.Order{
				ID:          7,
				SessionKey:  arg.SessionKey,
				OrderNo:     arg.OrderNo,
				ServiceType: arg.ServiceType,
				Status:      database.OrderStatusCREATED,
				TotalAmount: makeNumeric("0"),
				CreatedAt:   testNow,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			rec.items = append(rec.items, arg)
			return database.OrderItem{
				ID:        int64(len(rec.items)),
				OrderID:   arg.OrderID,
				ProductID: arg.ProductID,
				Name:      arg.Name,
				Qty:       arg.Qty,
				BasePrice: arg.BasePrice,
				LineTotal: arg.LineTotal,
				ImagePath: arg.ImagePath,
			}, nil
		},
		createOrderItemVarFn: func(ctx context.Context, arg database.CreateOrderItemVariantParams) (database.OrderItemVariant, error) {
			rec.variants = append(rec.variants, arg)
			return database.OrderItemVariant{ID: int64(len(rec.variants)), OrderItemID: arg.OrderItemID}, nil
		},
		updateOrderTotalFn: func(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
			rec.total = arg.TotalAmount
			return database.Order{
				ID:          arg.ID,
				OrderNo:     rec.order.OrderNo,
				Status:      database.OrderStatusCREATED,
				TotalAmount: arg.TotalAmount,
			}, nil
		},
	}
}

func basicCart(items ...CartItem) CartRequest {
	return CartRequest{
		SessionKey:  "sess-1",
		ServiceType: "dine_in",
		Items:       items,
	}
}

// =====================
// Validation tests
// =====================

func TestCreateFromCart_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  CartRequest
		want error
	}{
		{"missing session key", CartRequest{ServiceType: "dine_in", Items: []CartItem{{ProductID: 20, Qty: 1}}}, ErrSessionKeyRequired},
		{"bad service type", CartRequest{SessionKey: "sess-1", ServiceType: "delivery", Items: []CartItem{{ProductID: 20, Qty: 1}}}, ErrInvalidServiceType},
		{"no items", basicCart(), ErrEmptyItems},
		{"all items dropped", basicCart(CartItem{ProductID: 0, Qty: 1}, CartItem{ProductID: 20, Qty: 0}), ErrEmptyItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(defaultStore(&recorder{}))
			_, err := svc.CreateFromCart(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got: %v", tt.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation kind, got: %v", err)
			}
		})
	}
}

func TestNormalizeItems(t *testing.T) {
	got := normalizeItems([]CartItem{
		{ProductID: -1, Qty: 3},
		{ProductID: 10, Qty: 150, VariantValueIDs: []int64{201, 0, 101, 201, -4}},
		{ProductID: 20, Qty: -2},
		{ProductID: 20, Qty: 1},
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].Qty != 99 {
		t.Errorf("expected qty clamped to 99, got %d", got[0].Qty)
	}
	ids := got[0].VariantValueIDs
	if len(ids) != 2 || ids[0] != 101 || ids[1] != 201 {
		t.Errorf("expected variant ids [101 201], got %v", ids)
	}
	if got[1].ProductID != 20 || got[1].Qty != 1 {
		t.Errorf("unexpected second item: %+v", got[1])
	}
}

// =====================
// Session gate tests
// =====================

func TestCreateFromCart_SessionNotFound(t *testing.T) {
	svc, _ := newTestService(defaultStore(&recorder{}))

	req := basicCart(CartItem{ProductID: 20, Qty: 1})
	req.SessionKey = "nope"
	_, err := svc.CreateFromCart(context.Background(), req)
	if !errors.Is(err, ErrSessionNotFound) || !errors.Is(err, ErrSession) {
		t.Fatalf("expected ErrSessionNotFound, got: %v", err)
	}
}

func TestCreateFromCart_SessionClosed(t *testing.T) {
	store := defaultStore(&recorder{})
	store.getSessionForUpdateFn = func(ctx context.Context, key string) (database.GetSessionForUpdateRow, error) {
		row := activeSession(key)
		row.Session.Status = database.SessionStatusCLOSED
		return row, nil
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1}))
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got: %v", err)
	}
}

func TestCreateFromCart_SessionExpiredIsPersisted(t *testing.T) {
	expired := false
	store := defaultStore(&recorder{})
	store.getSessionForUpdateFn = func(ctx context.Context, key string) (database.GetSessionForUpdateRow, error) {
		row := activeSession(key)
		row.Session.ExpiresAt = testNow.Add(-time.Second)
		return row, nil
	}
	store.expireSessionFn = func(ctx context.Context, key string) (int64, error) {
		expired = true
		return 1, nil
	}
	store.getProductForOrderFn = func(ctx context.Context, id int64) (database.GetProductForOrderRow, error) {
		t.Fatal("catalog must not be read for an expired session")
		return database.GetProductForOrderRow{}, nil
	}
	svc, tx := newTestService(store)

	_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1}))
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got: %v", err)
	}
	if !expired {
		t.Error("expected ExpireSession to be called")
	}
	if tx.commits != 1 {
		t.Errorf("expected the expiry to be committed once, got %d commits", tx.commits)
	}
}

// =====================
// Catalog tests
// =====================

func TestCreateFromCart_ProductNotFound(t *testing.T) {
	svc, tx := newTestService(defaultStore(&recorder{}))

	_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 999, Qty: 1}))
	if !errors.Is(err, ErrProductNotFound) || !errors.Is(err, ErrCatalog) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
	if !strings.Contains(err.Error(), "item[0]") {
		t.Errorf("expected item index in error, got: %v", err)
	}
	if tx.commits != 0 {
		t.Errorf("expected no commit, got %d", tx.commits)
	}
}

func TestCreateFromCart_ProductInactive(t *testing.T) {
	svc, _ := newTestService(defaultStore(&recorder{}))

	_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 30, Qty: 1}))
	if !errors.Is(err, ErrProductInactive) {
		t.Fatalf("expected ErrProductInactive, got: %v", err)
	}
}

func TestCreateFromCart_InvalidVariantValue(t *testing.T) {
	tests := []struct {
		name string
		ids  []int64
	}{
		{"unknown value", []int64{101, 999}},
		{"inactive value", []int64{101, 204}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(defaultStore(&recorder{}))
			_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 10, Qty: 1, VariantValueIDs: tt.ids}))
			if !errors.Is(err, ErrInvalidVariantValue) || !errors.Is(err, ErrCatalog) {
				t.Fatalf("expected ErrInvalidVariantValue, got: %v", err)
			}
		})
	}
}

func TestCreateFromCart_MissingRequiredGroup(t *testing.T) {
	svc, _ := newTestService(defaultStore(&recorder{}))

	_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 10, Qty: 1, VariantValueIDs: []int64{201}}))
	if !errors.Is(err, ErrMissingRequired) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrMissingRequired, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Spice") {
		t.Errorf("expected group name in error, got: %v", err)
	}
}

func TestCreateFromCart_TooManySelections(t *testing.T) {
	tests := []struct {
		name string
		ids  []int64
	}{
		{"required group max 1", []int64{101, 102}},
		{"optional group max 2", []int64{101, 201, 202, 203}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(defaultStore(&recorder{}))
			_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 10, Qty: 1, VariantValueIDs: tt.ids}))
			if !errors.Is(err, ErrTooManySelections) {
				t.Fatalf("expected ErrTooManySelections, got: %v", err)
			}
		})
	}
}

func TestCreateFromCart_UnlimitedGroup(t *testing.T) {
	store := defaultStore(&recorder{})
	store.listGroupsFn = func(ctx context.Context, productID int64) ([]database.ListActiveVariantGroupsByProductRow, error) {
		return []database.ListActiveVariantGroupsByProductRow{
			{ID: 200, ProductID: 10, Name: "Topping", MaxSelect: 0},
		}, nil
	}
	svc, _ := newTestService(store)

	res, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 10, Qty: 1, VariantValueIDs: []int64{201, 202, 203}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 25000 + 3000 + 5000 + 4000
	if !res.TotalAmount.Equal(decimal.NewFromInt(37000)) {
		t.Errorf("expected total 37000, got %s", res.TotalAmount)
	}
}

// =====================
// Pricing and snapshot tests
// =====================

func TestCreateFromCart_PricingAndSnapshot(t *testing.T) {
	rec := &recorder{}
	svc, tx := newTestService(defaultStore(rec))

	res, err := svc.CreateFromCart(context.Background(), basicCart(
		CartItem{ProductID: 10, Qty: 2, VariantValueIDs: []int64{201, 102, 201}},
		CartItem{ProductID: 20, Qty: 3},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// (25000 + 1000 + 3000) * 2 + 5000 * 3 = 73000
	if !res.TotalAmount.Equal(decimal.NewFromInt(73000)) {
		t.Errorf("expected total 73000, got %s", res.TotalAmount)
	}
	if !numericEquals(rec.total, "73000") {
		t.Errorf("expected stored total 73000, got %v", rec.total)
	}
	if res.Status != database.OrderStatusCREATED {
		t.Errorf("expected CREATED, got %s", res.Status)
	}
	if res.OrderID != 7 {
		t.Errorf("expected order id 7, got %d", res.OrderID)
	}
	if tx.commits != 1 {
		t.Errorf("expected 1 commit, got %d", tx.commits)
	}

	if len(rec.items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(rec.items))
	}
	first := rec.items[0]
	if first.Name != "Nasi Goreng" || first.Qty != 2 || first.OrderID != 7 {
		t.Errorf("unexpected first item: %+v", first)
	}
	if !numericEquals(first.BasePrice, "25000") || !numericEquals(first.LineTotal, "58000") {
		t.Errorf("unexpected first item prices: base=%v line=%v", first.BasePrice, first.LineTotal)
	}
	if first.ImagePath.String != "img/nasi.png" {
		t.Errorf("expected image path snapshot, got %v", first.ImagePath)
	}
	if !numericEquals(rec.items[1].LineTotal, "15000") {
		t.Errorf("expected second line total 15000, got %v", rec.items[1].LineTotal)
	}

	// Variants follow group order: Spice before Topping.
	if len(rec.variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(rec.variants))
	}
	if rec.variants[0].GroupName != "Spice" || rec.variants[0].ValueName != "Hot" {
		t.Errorf("unexpected first variant: %+v", rec.variants[0])
	}
	if rec.variants[1].GroupName != "Topping" || rec.variants[1].ValueName != "Egg" || !numericEquals(rec.variants[1].ExtraPrice, "3000") {
		t.Errorf("unexpected second variant: %+v", rec.variants[1])
	}
}

func TestCreateFromCart_QtyClamped(t *testing.T) {
	rec := &recorder{}
	svc, _ := newTestService(defaultStore(rec))

	res, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 500}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.items[0].Qty != 99 {
		t.Errorf("expected qty 99, got %d", rec.items[0].Qty)
	}
	if !res.TotalAmount.Equal(decimal.NewFromInt(495000)) {
		t.Errorf("expected total 495000, got %s", res.TotalAmount)
	}
}

// =====================
// Order number tests
// =====================

func TestCreateFromCart_OrderNumber(t *testing.T) {
	tests := []struct {
		name string
		last int32
		want string
	}{
		{"first of the day", 0, "K-20260301-0001"},
		{"next in sequence", 41, "K-20260301-0042"},
		{"past four digits", 9999, "K-20260301-10000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			store := defaultStore(rec)
			store.getLastOrderSequenceFn = func(ctx context.Context, prefix string) (int32, error) {
				if prefix != "K-20260301-" {
					t.Errorf("unexpected prefix %q", prefix)
				}
				return tt.last, nil
			}
			svc, _ := newTestService(store)

			res, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1}))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.OrderNo != tt.want || rec.order.OrderNo != tt.want {
				t.Errorf("expected %s, got %s", tt.want, res.OrderNo)
			}
		})
	}
}

func TestCreateFromCart_OrderNumberUsesShopTimezone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	var gotPrefix string
	store := defaultStore(&recorder{})
	store.getLastOrderSequenceFn = func(ctx context.Context, prefix string) (int32, error) {
		gotPrefix = prefix
		return 0, nil
	}
	svc, _ := newTestService(store)
	svc.loc = jakarta
	// 2026-03-01 20:00 UTC is already March 2nd in UTC+7.
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC) }

	if _, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPrefix != "K-20260302-" {
		t.Errorf("expected K-20260302-, got %q", gotPrefix)
	}
}

// =====================
// Retry on unique constraint violation
// =====================

func TestCreateFromCart_RetryOnOrderNumberConflict(t *testing.T) {
	rec := &recorder{}
	store := defaultStore(rec)
	seq := int32(0)
	store.getLastOrderSequenceFn = func(ctx context.Context, prefix string) (int32, error) {
		return seq, nil
	}
	calls := 0
	createOrder := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		calls++
		if calls == 1 {
			// Another kiosk committed 0001 meanwhile.
			seq = 1
			return database.Order{}, &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "orders_order_no_key",
			}
		}
		return createOrder(ctx, arg)
	}
	svc, _ := newTestService(store)

	res, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1}))
	if err != nil {
		t.Fatalf("expected success after retry, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 create attempts, got %d", calls)
	}
	if res.OrderNo != "K-20260301-0002" {
		t.Errorf("expected K-20260301-0002, got %s", res.OrderNo)
	}
}

func TestCreateFromCart_RetryExhausted(t *testing.T) {
	store := defaultStore(&recorder{})
	calls := 0
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		calls++
		return database.Order{}, &pgconn.PgError{
			Code:           "23505",
			ConstraintName: "orders_order_no_key",
		}
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1}))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got: %v", err)
	}
	if calls != maxOrderNumberRetries {
		t.Errorf("expected %d attempts, got %d", maxOrderNumberRetries, calls)
	}
}

func TestCreateFromCart_OtherUniqueViolationNotRetried(t *testing.T) {
	store := defaultStore(&recorder{})
	calls := 0
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		calls++
		return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "something_else"}
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1}))
	if err == nil || errors.Is(err, ErrConflict) {
		t.Fatalf("expected a plain error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
	if Kind(err) != "internal" {
		t.Errorf("expected internal kind, got %s", Kind(err))
	}
}

func TestCreateFromCart_BeginError(t *testing.T) {
	store := defaultStore(&recorder{})
	svc := NewOrderService(&mockTxBeginner{err: errors.New("pool closed")}, func(db database.DBTX) OrderStore { return store }, time.UTC)

	_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1}))
	if err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin tx error, got: %v", err)
	}
}

// =====================
// Order number locking
// =====================

func TestCreateFromCart_LocksDayPrefixBeforeReadingSequence(t *testing.T) {
	store := defaultStore(&recorder{})
	var calls []string
	store.lockPrefixFn = func(ctx context.Context, prefix string) error {
		calls = append(calls, "lock "+prefix)
		return nil
	}
	store.getLastOrderSequenceFn = func(ctx context.Context, prefix string) (int32, error) {
		calls = append(calls, "sequence "+prefix)
		return 4, nil
	}
	svc, _ := newTestService(store)

	res, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"lock K-20260301-", "sequence K-20260301-"}
	if len(calls) != len(want) || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("calls: got %v, want %v", calls, want)
	}
	if res.OrderNo != "K-20260301-0005" {
		t.Errorf("expected K-20260301-0005, got %s", res.OrderNo)
	}
}

func TestCreateFromCart_LockError(t *testing.T) {
	store := defaultStore(&recorder{})
	store.lockPrefixFn = func(ctx context.Context, prefix string) error {
		return errors.New("lock timeout")
	}
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		t.Fatal("order must not be inserted without the lock")
		return database.Order{}, nil
	}
	svc, tx := newTestService(store)

	_, err := svc.CreateFromCart(context.Background(), basicCart(CartItem{ProductID: 20, Qty: 1}))
	if err == nil || !strings.Contains(err.Error(), "lock order number") {
		t.Fatalf("expected lock error, got: %v", err)
	}
	if tx.commits != 0 {
		t.Errorf("expected no commit, got %d", tx.commits)
	}
}

// =====================
// Failures after the first insert
// =====================

func TestCreateFromCart_WriteFailureAfterInsertCommitsNothing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*mockOrderStore)
		want   string
	}{
		{
			name: "item insert",
			mutate: func(s *mockOrderStore) {
				s.createOrderItemFn = func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
					return database.OrderItem{}, errors.New("disk full")
				}
			},
			want: "create order item: disk full",
		},
		{
			name: "variant insert",
			mutate: func(s *mockOrderStore) {
				s.createOrderItemVarFn = func(ctx context.Context, arg database.CreateOrderItemVariantParams) (database.OrderItemVariant, error) {
					return database.OrderItemVariant{}, errors.New("disk full")
				}
			},
			want: "create order item variant: disk full",
		},
		{
			name: "total update",
			mutate: func(s *mockOrderStore) {
				s.updateOrderTotalFn = func(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
					return database.Order{}, errors.New("disk full")
				}
			},
			want: "update order total: disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			store := defaultStore(rec)
			tt.mutate(store)
			svc, tx := newTestService(store)

			_, err := svc.CreateFromCart(context.Background(), basicCart(
				CartItem{ProductID: 10, Qty: 1, VariantValueIDs: []int64{101, 201}},
			))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q, got: %v", tt.want, err)
			}
			if rec.order.OrderNo == "" {
				t.Fatal("expected the order insert to have run first")
			}
			if tx.commits != 0 {
				t.Errorf("expected no commit, got %d", tx.commits)
			}
			if Kind(err) != "internal" {
				t.Errorf("expected internal kind, got %s", Kind(err))
			}
		})
	}
}

// =====================
// Input trimming
// =====================

func TestCreateFromCart_TrimsSessionKeyAndServiceType(t *testing.T) {
	rec := &recorder{}
	svc, _ := newTestService(defaultStore(rec))

	res, err := svc.CreateFromCart(context.Background(), CartRequest{
		SessionKey:  "  sess-1\t",
		ServiceType: " take_away ",
		Items:       []CartItem{{ProductID: 20, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.order.SessionKey != "sess-1" || res.ServiceType != database.ServiceTypeTakeAway {
		t.Errorf("unexpected order params: %+v", rec.order)
	}

	_, err = svc.CreateFromCart(context.Background(), CartRequest{
		SessionKey:  "   ",
		ServiceType: "dine_in",
		Items:       []CartItem{{ProductID: 20, Qty: 1}},
	})
	if !errors.Is(err, ErrSessionKeyRequired) {
		t.Errorf("blank session key: expected ErrSessionKeyRequired, got %v", err)
	}
}

func TestCreateOrderResult_MarshalJSON(t *testing.T) {
	res := CreateOrderResult{
		OrderID:     7,
		OrderNo:     "K-20260301-0001",
		TotalAmount: decimal.NewFromInt(73000),
		Status:      database.OrderStatusCREATED,
		ServiceType: database.ServiceTypeDineIn,
	}
	b, err := json.Marshal(&res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"order_id":7,"order_no":"K-20260301-0001","status":"CREATED","service_type":"dine_in","total_amount":73000.00}`
	if string(b) != want {
		t.Errorf("got %s\nwant %s", b, want)
	}
}

func TestNormalizeItems_SaturatedQtyClampsToMax(t *testing.T) {
	got := normalizeItems([]CartItem{{ProductID: 10, Qty: math.MaxInt}, {ProductID: 20, Qty: math.MinInt}})
	if len(got) != 1 || got[0].Qty != maxItemQty {
		t.Fatalf("expected one line with qty %d, got %+v", maxItemQty, got)
	}
}
