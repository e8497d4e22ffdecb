package enum

// ── Staff roles (CHECK constrained in DB) ──

const (
	RoleManager = "MANAGER"
	RoleCashier = "CASHIER"
)

// ── Order board events (websocket "type" field) ──

const (
	EventOrderCreated     = "order.created"
	EventOrderPaid        = "order.paid"
	EventOrderPrinted     = "order.printed"
	EventOrderCancelled   = "order.cancelled"
	EventOrderPaymentType = "order.payment_type"
)
