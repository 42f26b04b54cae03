package model

import "time"

// Reservation statuses.  `active` is the only state that counts
// toward held stock; `converted` and `released` are terminal.
const (
	ReservationActive    = "active"
	ReservationConverted = "converted"
	ReservationReleased  = "released"
)

// Reservation is a time-bounded claim on stock tied to a
// (SKU, user, cart) triple.  While active and unexpired it reduces
// the SKU's effective availability without touching the authoritative
// stock count.  The reservation manager guarantees at most one
// active reservation per triple; upserting refreshes quantity and
// expiry rather than stacking rows.
//
// Fields:
//  ID        – UUID primary key.
//  SKUID     – SKU being held.
//  UserID    – shopper holding the stock.
//  CartID    – cart the hold belongs to.
//  Quantity  – units held.
//  ExpiresAt – when the hold lapses (15 minutes from the last refresh).
//  Status    – active, converted or released.
//  CreatedAt – when the hold was first created.
type Reservation struct {
	ID        string    // reservations.id (UUID)
	SKUID     uint64    // reservations.sku_id
	UserID    uint64    // reservations.user_id
	CartID    uint64    // reservations.cart_id
	Quantity  int64     // reservations.quantity
	ExpiresAt time.Time // reservations.expires_at
	Status    string    // reservations.status
	CreatedAt time.Time // reservations.created_at
}
