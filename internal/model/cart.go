package model

import "time"

// Cart is the single working set of a registered shopper.  There is
// exactly one cart per user, created lazily on first access.  Guest
// checkout never persists a cart; it operates on transient lines
// built from the request payload.
type Cart struct {
	ID        uint64    // carts.id
	UserID    uint64    // carts.user_id (unique)
	CreatedAt time.Time // carts.created_at
	UpdatedAt time.Time // carts.updated_at
}

// CartItem is a unique (cart, SKU) pair.  UnitPriceCents is captured
// at add/update time from the catalog (product base price plus SKU
// adjustment) and is not recomputed on read; the pricing engine works
// from this captured price at checkout.
type CartItem struct {
	ID             uint64    // cart_items.id
	CartID         uint64    // cart_items.cart_id
	SKUID          uint64    // cart_items.sku_id
	Quantity       int64     // cart_items.quantity
	UnitPriceCents int64     // cart_items.unit_price_cents
	CreatedAt      time.Time // cart_items.created_at
	UpdatedAt      time.Time // cart_items.updated_at
}
