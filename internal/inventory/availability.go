// Package inventory holds the pure stock-availability arithmetic shared
// by the reservation and checkout paths.  Keeping the math here, free
// of SQL, lets both the MySQL repositories and the test fakes apply
// exactly the same policy.
package inventory

import "fmt"

// InsufficientStockError is returned when a hold or checkout requests
// more units than the SKU can currently satisfy.  Available carries
// the quantity the caller could still take, so the API layer can tell
// the shopper how many units remain.
type InsufficientStockError struct {
	SKUID     uint64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %d: requested %d, available %d",
		e.SKUID, e.Requested, e.Available)
}

// Available computes the effective availability of a SKU: the
// authoritative stock count minus everything held by active,
// unexpired reservations.  Reserved quantities can momentarily exceed
// stock (e.g. after a vendor adjustment shrinks stock under existing
// holds), so the result is clamped at zero.
func Available(stock, activeReserved int64) int64 {
	avail := stock - activeReserved
	if avail < 0 {
		return 0
	}
	return avail
}

// CheckHold decides whether a shopper may hold `requested` units.
// `ownActive` is the quantity of the shopper's own current active
// reservation on the SKU, which must not count against them: holding
// 3 and asking for 5 is a request for 5 total, not 8.  Returns nil
// when the hold fits, or an *InsufficientStockError carrying the
// quantity actually available to this shopper.
func CheckHold(skuID uint64, stock, activeReserved, ownActive, requested int64) error {
	avail := Available(stock, activeReserved-ownActive)
	if requested > avail {
		return &InsufficientStockError{SKUID: skuID, Requested: requested, Available: avail}
	}
	return nil
}
