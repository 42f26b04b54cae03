package model

import (
	"encoding/json"
	"time"
)

// Payment methods accepted at checkout.
const (
	PaymentStripe = "stripe"
	PaymentCOD    = "cod"
)

// Order and vendor-order statuses.  Orders move forward only; the
// single backward-looking exit is an explicit cancellation.
const (
	OrderPending    = "pending"
	OrderPaid       = "paid"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

// validNext encodes the permitted forward transitions.  Terminal
// states map to the empty set.
var validNext = map[string]map[string]bool{
	OrderPending:    {OrderPaid: true, OrderCancelled: true},
	OrderPaid:       {OrderProcessing: true, OrderCancelled: true},
	OrderProcessing: {OrderShipped: true, OrderCancelled: true},
	OrderShipped:    {OrderDelivered: true},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

// CanTransition reports whether an order or vendor order may move
// from one status to another.
func CanTransition(from, to string) bool {
	return validNext[from][to]
}

// CanVendorTransition reports whether a vendor may move their own
// suborder from one status to another.  Settlement owns the
// pending→paid move; a vendor advances fulfillment from paid onward
// (processing, shipped, delivered) and may cancel an order that has
// not yet shipped.
func CanVendorTransition(from, to string) bool {
	if to == OrderPaid {
		return false
	}
	if from == OrderPending {
		return to == OrderCancelled
	}
	return CanTransition(from, to)
}

// ValidPaymentMethod reports whether the given payment method is one
// the checkout accepts.
func ValidPaymentMethod(m string) bool {
	return m == PaymentStripe || m == PaymentCOD
}

// Order is the immutable-after-creation header of a completed
// checkout.  Only Status and PaymentIntentID change after the commit
// transaction.  Either UserID is set (registered checkout) or
// IsGuest is true and the guest contact fields carry the shopper's
// details.
//
// Fields:
//  ID              – UUID primary key, also the payment reference.
//  UserID          – shopper, nil for guest orders.
//  IsGuest         – guest checkout marker.
//  GuestEmail/Name/Phone – guest contact snapshot.
//  Status          – lifecycle state, see constants above.
//  PaymentMethod   – stripe or cod.
//  SubtotalCents   – sum of final line totals before the coupon.
//  DiscountCents   – order-level coupon discount.
//  TotalCents      – max(0, subtotal − discount).
//  Currency        – ISO currency code, lower case.
//  CouponID        – applied coupon, nil when none.
//  PaymentIntentID – external payment intent, empty until created.
//  ShippingAddress – JSON snapshot taken at checkout.
type Order struct {
	ID              string          // orders.id (UUID)
	UserID          *uint64         // orders.user_id (nullable)
	IsGuest         bool            // orders.is_guest
	GuestEmail      string          // orders.guest_email
	GuestName       string          // orders.guest_name
	GuestPhone      string          // orders.guest_phone
	Status          string          // orders.status
	PaymentMethod   string          // orders.payment_method
	SubtotalCents   int64           // orders.subtotal_cents
	DiscountCents   int64           // orders.discount_cents
	TotalCents      int64           // orders.total_cents
	Currency        string          // orders.currency
	CouponID        *uint64         // orders.coupon_id (nullable)
	PaymentIntentID string          // orders.payment_intent_id
	ShippingAddress json.RawMessage // orders.shipping_address (JSON)
	CreatedAt       time.Time       // orders.created_at

	VendorOrders []VendorOrder `json:"vendor_orders,omitempty"`
}

// VendorOrder is the slice of an order attributable to one vendor.
// It mirrors the order's payment status and then progresses through
// fulfillment independently, with its own total.
type VendorOrder struct {
	ID         string    // vendor_orders.id (UUID)
	OrderID    string    // vendor_orders.order_id
	VendorID   uint64    // vendor_orders.vendor_id
	Status     string    // vendor_orders.status
	TotalCents int64     // vendor_orders.total_cents
	CreatedAt  time.Time // vendor_orders.created_at

	Items []OrderItem `json:"items,omitempty"`
}

// OrderItem is an immutable sale line.  SKUID is nullable so that a
// later catalog deletion cannot orphan the sale record; the code and
// name snapshots keep the line meaningful regardless.
type OrderItem struct {
	ID             string  // order_items.id (UUID)
	OrderID        string  // order_items.order_id
	VendorOrderID  string  // order_items.vendor_order_id
	SKUID          *uint64 // order_items.sku_id (nullable)
	ProductID      uint64  // order_items.product_id
	SKUCode        string  // order_items.sku_code snapshot
	ProductName    string  // order_items.product_name snapshot
	Quantity       int64   // order_items.quantity
	UnitPriceCents int64   // order_items.unit_price_cents (final)
}
