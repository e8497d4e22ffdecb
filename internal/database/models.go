package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderStatus string

const (
	OrderStatusCREATED   OrderStatus = "CREATED"
	OrderStatusPAID      OrderStatus = "PAID"
	OrderStatusPRINTED   OrderStatus = "PRINTED"
	OrderStatusCANCELLED OrderStatus = "CANCELLED"
)

func (e *OrderStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderStatus(s)
	case string:
		*e = OrderStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderStatus: %T", src)
	}
	return nil
}

type NullOrderStatus struct {
	OrderStatus OrderStatus
	Valid       bool // Valid is true if OrderStatus is not NULL
}

// Value implements the driver Valuer interface.
func (ns NullOrderStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.OrderStatus), nil
}

type PaymentType string

const (
	PaymentTypeCounter PaymentType = "counter"
	PaymentTypeQr      PaymentType = "qr"
)

type NullPaymentType struct {
	PaymentType PaymentType
	Valid       bool // Valid is true if PaymentType is not NULL
}

// Scan implements the sql.Scanner interface.
func (ns *NullPaymentType) Scan(value interface{}) error {
	if value == nil {
		ns.PaymentType, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	switch s := value.(type) {
	case string:
		ns.PaymentType = PaymentType(s)
	case []byte:
		ns.PaymentType = PaymentType(s)
	default:
		return fmt.Errorf("unsupported scan type for NullPaymentType: %T", value)
	}
	return nil
}

// Value implements the driver Valuer interface.
func (ns NullPaymentType) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.PaymentType), nil
}

// MarshalJSON encodes NULL as null and a value as its string.
func (ns NullPaymentType) MarshalJSON() ([]byte, error) {
	if !ns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(string(ns.PaymentType))
}

type ServiceType string

const (
	ServiceTypeDineIn   ServiceType = "dine_in"
	ServiceTypeTakeAway ServiceType = "take_away"
)

type SessionStatus string

const (
	SessionStatusACTIVE  SessionStatus = "ACTIVE"
	SessionStatusEXPIRED SessionStatus = "EXPIRED"
	SessionStatusCLOSED  SessionStatus = "CLOSED"
)

type StaffRole string

const (
	StaffRoleMANAGER StaffRole = "MANAGER"
	StaffRoleCASHIER StaffRole = "CASHIER"
)

type Order struct {
	ID          int64              `json:"id"`
	SessionKey  string             `json:"session_key"`
	OrderNo     string             `json:"order_no"`
	ServiceType ServiceType        `json:"service_type"`
	PaymentType NullPaymentType    `json:"payment_type"`
	Status      OrderStatus        `json:"status"`
	TotalAmount pgtype.Numeric     `json:"total_amount"`
	CreatedAt   time.Time          `json:"created_at"`
	PaidAt      pgtype.Timestamptz `json:"paid_at"`
	PrintedAt   pgtype.Timestamptz `json:"printed_at"`
	CancelledAt pgtype.Timestamptz `json:"cancelled_at"`
}

type OrderItem struct {
	ID        int64          `json:"id"`
	OrderID   int64          `json:"order_id"`
	ProductID int64          `json:"product_id"`
	Name      string         `json:"name"`
	Qty       int32          `json:"qty"`
	BasePrice pgtype.Numeric `json:"base_price"`
	LineTotal pgtype.Numeric `json:"line_total"`
	ImagePath pgtype.Text    `json:"image_path"`
}

type OrderItemVariant struct {
	ID          int64          `json:"id"`
	OrderItemID int64          `json:"order_item_id"`
	GroupID     int64          `json:"group_id"`
	GroupName   string         `json:"group_name"`
	ValueID     int64          `json:"value_id"`
	ValueName   string         `json:"value_name"`
	ExtraPrice  pgtype.Numeric `json:"extra_price"`
}

type Session struct {
	ID         int64              `json:"id"`
	SessionKey string             `json:"session_key"`
	Status     SessionStatus      `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	LastSeenAt time.Time          `json:"last_seen_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
	ClosedAt   pgtype.Timestamptz `json:"closed_at"`
}

type Staff struct {
	ID             uuid.UUID   `json:"id"`
	Username       string      `json:"username"`
	HashedPassword string      `json:"hashed_password"`
	FullName       string      `json:"full_name"`
	Role           StaffRole   `json:"role"`
	Pin            pgtype.Text `json:"pin"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
}
