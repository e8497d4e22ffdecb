package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiosk-pos/api/internal/database"
	"github.com/kiosk-pos/api/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	maxOrderNumberRetries = 3
	maxItemQty            = 99
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create, read and move orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetSessionForUpdate(ctx context.Context, sessionKey string) (database.GetSessionForUpdateRow, error)
	ExpireSession(ctx context.Context, sessionKey string) (int64, error)
	GetProductForOrder(ctx context.Context, id int64) (database.GetProductForOrderRow, error)
	ListActiveVariantGroupsByProduct(ctx context.Context, productID int64) ([]database.ListActiveVariantGroupsByProductRow, error)
	ListVariantValuesByGroups(ctx context.Context, groupIds []int64) ([]database.ListVariantValuesByGroupsRow, error)
	LockOrderNumberPrefix(ctx context.Context, prefix string) error
	GetLastOrderSequence(ctx context.Context, prefix string) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemVariant(ctx context.Context, arg database.CreateOrderItemVariantParams) (database.OrderItemVariant, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	GetOrder(ctx context.Context, id int64) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error)
	ListOrderItemVariantsByOrderItem(ctx context.Context, orderItemID int64) ([]database.OrderItemVariant, error)
	SetOrderPaymentType(ctx context.Context, arg database.SetOrderPaymentTypeParams) (int64, error)
	MarkOrderPaid(ctx context.Context, id int64) (int64, error)
	MarkOrderPrinted(ctx context.Context, id int64) (int64, error)
	CancelOrder(ctx context.Context, id int64) (int64, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CartRequest is the kiosk cart submitted for checkout.
type CartRequest struct {
	SessionKey  string
	ServiceType string
	Items       []CartItem
}

// CartItem is a single line in the cart.
type CartItem struct {
	ProductID       int64
	Qty             int
	VariantValueIDs []int64
}

// CreateOrderResult is returned to the kiosk after checkout.
type CreateOrderResult struct {
	OrderID     int64                `json:"order_id"`
	OrderNo     string               `json:"order_no"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Status      database.OrderStatus `json:"status"`
	ServiceType database.ServiceType `json:"service_type"`
}

// MarshalJSON writes total_amount as a JSON number with two decimals, the
// same form order rows use.
func (r CreateOrderResult) MarshalJSON() ([]byte, error) {
	type plain CreateOrderResult
	return json.Marshal(struct {
		plain
		TotalAmount json.Number `json:"total_amount"`
	}{plain(r), json.Number(r.TotalAmount.StringFixed(2))})
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	loc      *time.Location
	now      func() time.Time
}

// NewOrderService creates a new OrderService. Order numbers are dated in loc.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, loc *time.Location) *OrderService {
	if loc == nil {
		loc = time.Local
	}
	return &OrderService{pool: pool, newStore: newStore, loc: loc, now: time.Now}
}

// pricedVariant is a validated variant selection ready to snapshot.
type pricedVariant struct {
	groupID    int64
	groupName  string
	valueID    int64
	valueName  string
	extraPrice decimal.Decimal
}

// pricedItem holds a prepared order item and its variants.
type pricedItem struct {
	params   database.CreateOrderItemParams
	variants []pricedVariant
}

// CreateFromCart validates the cart and the session, prices every item from
// the catalog and stores the order snapshot atomically.
// Retries up to maxOrderNumberRetries times when a concurrent checkout takes
// the same order number.
func (s *OrderService) CreateFromCart(ctx context.Context, req CartRequest) (*CreateOrderResult, error) {
	res, err := s.createFromCart(ctx, req)
	if err != nil {
		metrics.OrderCreateFailures.WithLabelValues(Kind(err)).Inc()
		return nil, err
	}
	metrics.OrdersCreated.WithLabelValues(string(res.ServiceType)).Inc()
	return res, nil
}

func (s *OrderService) createFromCart(ctx context.Context, req CartRequest) (*CreateOrderResult, error) {
	sessionKey := strings.TrimSpace(req.SessionKey)
	if sessionKey == "" {
		return nil, ErrSessionKeyRequired
	}
	serviceType, err := validateServiceType(strings.TrimSpace(req.ServiceType))
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	items := normalizeItems(req.Items)
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, sessionKey, serviceType, items)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			metrics.OrderNumberRetries.Inc()
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %v", ErrOrderNumberConflict, lastErr)
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_no_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, sessionKey string, serviceType database.ServiceType, items []CartItem) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Session gate ---
	st, err := loadSession(ctx, store, sessionKey)
	if err != nil {
		return nil, err
	}
	if st.Expired {
		// Keep the EXPIRED transition even though checkout fails.
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return nil, ErrSessionExpired
	}
	if st.Status != database.SessionStatusACTIVE {
		return nil, ErrSessionNotActive
	}

	// --- Price items from the catalog ---
	total := decimal.Zero
	priced := make([]pricedItem, 0, len(items))
	for i, item := range items {
		pi, lineTotal, err := priceItem(ctx, store, i, item)
		if err != nil {
			return nil, err
		}
		total = total.Add(lineTotal)
		priced = append(priced, pi)
	}

	// --- Order number ---
	// The advisory lock queues concurrent checkouts for the same day; the
	// unique constraint and retry loop remain as a backstop.
	prefix := orderNoPrefix(s.now().In(s.loc))
	if err := store.LockOrderNumberPrefix(ctx, prefix); err != nil {
		return nil, fmt.Errorf("lock order number: %w", err)
	}
	last, err := store.GetLastOrderSequence(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("get last order sequence: %w", err)
	}
	orderNo := formatOrderNo(prefix, last+1)

	// --- Insert order, items and variants ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		SessionKey:  sessionKey,
		OrderNo:     orderNo,
		ServiceType: serviceType,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	for _, pi := range priced {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		for _, v := range pi.variants {
			if _, err := store.CreateOrderItemVariant(ctx, database.CreateOrderItemVariantParams{
				OrderItemID: item.ID,
				GroupID:     v.groupID,
				GroupName:   v.groupName,
				ValueID:     v.valueID,
				ValueName:   v.valueName,
				ExtraPrice:  decimalToNumeric(v.extraPrice),
			}); err != nil {
				return nil, fmt.Errorf("create order item variant: %w", err)
			}
		}
	}

	order, err = store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
		ID:          order.ID,
		TotalAmount: decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{
		OrderID:     order.ID,
		OrderNo:     order.OrderNo,
		TotalAmount: total,
		Status:      database.OrderStatusCREATED,
		ServiceType: serviceType,
	}, nil
}

// priceItem checks the product and the variant selection against the catalog
// and returns the item snapshot with its line total.
func priceItem(ctx context.Context, store OrderStore, i int, item CartItem) (pricedItem, decimal.Decimal, error) {
	product, err := store.GetProductForOrder(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricedItem{}, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
		}
		return pricedItem{}, decimal.Zero, fmt.Errorf("item[%d]: get product: %w", i, err)
	}
	if !product.IsActive {
		return pricedItem{}, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrProductInactive)
	}

	groups, err := store.ListActiveVariantGroupsByProduct(ctx, product.ID)
	if err != nil {
		return pricedItem{}, decimal.Zero, fmt.Errorf("item[%d]: list variant groups: %w", i, err)
	}

	values := map[int64]database.ListVariantValuesByGroupsRow{}
	if len(groups) > 0 {
		groupIDs := make([]int64, len(groups))
		for j, g := range groups {
			groupIDs[j] = g.ID
		}
		rows, err := store.ListVariantValuesByGroups(ctx, groupIDs)
		if err != nil {
			return pricedItem{}, decimal.Zero, fmt.Errorf("item[%d]: list variant values: %w", i, err)
		}
		for _, v := range rows {
			values[v.ID] = v
		}
	}

	selected := map[int64][]database.ListVariantValuesByGroupsRow{}
	for _, id := range item.VariantValueIDs {
		v, ok := values[id]
		if !ok || !v.IsActive {
			return pricedItem{}, decimal.Zero, fmt.Errorf("item[%d]: %w %d", i, ErrInvalidVariantValue, id)
		}
		selected[v.GroupID] = append(selected[v.GroupID], v)
	}

	extra := decimal.Zero
	var variants []pricedVariant
	for _, g := range groups {
		picks := selected[g.ID]
		if g.IsRequired && len(picks) == 0 {
			return pricedItem{}, decimal.Zero, fmt.Errorf("item[%d]: %w %q", i, ErrMissingRequired, g.Name)
		}
		if g.MaxSelect > 0 && len(picks) > int(g.MaxSelect) {
			return pricedItem{}, decimal.Zero, fmt.Errorf("item[%d]: %w for %q (max %d)", i, ErrTooManySelections, g.Name, g.MaxSelect)
		}
		for _, v := range picks {
			price := numericToDecimal(v.ExtraPrice)
			extra = extra.Add(price)
			variants = append(variants, pricedVariant{
				groupID:    g.ID,
				groupName:  g.Name,
				valueID:    v.ID,
				valueName:  v.Name,
				extraPrice: price,
			})
		}
	}

	// line_total = (base_price + extras) * qty
	basePrice := numericToDecimal(product.BasePrice)
	lineTotal := basePrice.Add(extra).Mul(decimal.NewFromInt(int64(item.Qty)))

	return pricedItem{
		params: database.CreateOrderItemParams{
			ProductID: product.ID,
			Name:      product.Name,
			Qty:       int32(item.Qty),
			BasePrice: decimalToNumeric(basePrice),
			LineTotal: decimalToNumeric(lineTotal),
			ImagePath: product.ImagePath,
		},
		variants: variants,
	}, lineTotal, nil
}

// normalizeItems drops unusable lines, clamps quantities and turns variant
// ids into a sorted set. It never fails; an empty result means no items.
func normalizeItems(items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 || it.Qty <= 0 {
			continue
		}
		if it.Qty > maxItemQty {
			it.Qty = maxItemQty
		}
		it.VariantValueIDs = normalizeIDs(it.VariantValueIDs)
		out = append(out, it)
	}
	return out
}

func normalizeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// --- Helpers ---

func validateServiceType(s string) (database.ServiceType, error) {
	switch st := database.ServiceType(s); st {
	case database.ServiceTypeDineIn, database.ServiceTypeTakeAway:
		return st, nil
	}
	return "", ErrInvalidServiceType
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
