// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderPlacedEvent is published when a checkout commits. It contains
// enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type OrderPlacedEvent struct {
    OrderID       string  `json:"order_id"`
    UserID        *uint64 `json:"user_id,omitempty"`
    IsGuest       bool    `json:"is_guest"`
    PaymentMethod string  `json:"payment_method"`
    VendorIDs     []uint64 `json:"vendor_ids"`
    ItemCount     int64   `json:"item_count"`
    SubtotalCents int64   `json:"subtotal_cents"`
    DiscountCents int64   `json:"discount_cents"`
    TotalCents    int64   `json:"total_cents"`
    Currency      string  `json:"currency"`
    PlacedAt      string  `json:"placed_at"`
}

// PaymentConfirmedEvent is published when a payment webhook settles
// an order.
type PaymentConfirmedEvent struct {
    OrderID         string `json:"order_id"`
    PaymentIntentID string `json:"payment_intent_id"`
    TotalCents      int64  `json:"total_cents"`
    ConfirmedAt     string `json:"confirmed_at"`
}

// OrderStatusChangedEvent is published when a vendor moves one of
// their suborders along the fulfillment pipeline.
type OrderStatusChangedEvent struct {
    OrderID       string `json:"order_id"`
    VendorOrderID string `json:"vendor_order_id"`
    VendorID      uint64 `json:"vendor_id"`
    Status        string `json:"status"`
    ChangedAt     string `json:"changed_at"`
}
