package model

import "time"

// Coupon discount types.  For `percentage` DiscountValue is basis
// points (1000 = 10.00%); for `fixed` it is an amount in cents.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Coupon is an order-level discount code.  A coupon is valid when it
// is active, the current time falls inside [StartsAt, EndsAt] and the
// use cap has not been reached.  CurrentUses is incremented exactly
// once per successful application, via a conditional update that
// re-checks the cap (see CouponRepo.RedeemTx).
//
// Fields:
//  ID               – primary key identifier.
//  Code             – unique coupon code.
//  DiscountType     – percentage or fixed.
//  DiscountValue    – basis points or cents, per DiscountType.
//  MinPurchaseCents – minimum order subtotal for the coupon to apply.
//  StartsAt/EndsAt  – validity window (inclusive).
//  MaxUses          – total redemption cap across all shoppers.
//  CurrentUses      – redemptions so far.
//  IsActive         – kill switch.
type Coupon struct {
	ID               uint64    // coupons.id
	Code             string    // coupons.code
	DiscountType     string    // coupons.discount_type
	DiscountValue    int64     // coupons.discount_value
	MinPurchaseCents int64     // coupons.min_purchase_cents
	StartsAt         time.Time // coupons.starts_at
	EndsAt           time.Time // coupons.ends_at
	MaxUses          int64     // coupons.max_uses
	CurrentUses      int64     // coupons.current_uses
	IsActive         bool      // coupons.is_active
	CreatedAt        time.Time // coupons.created_at
}

// ValidAt reports whether the coupon could be applied at the given
// instant: active, inside its window and under its use cap.  It does
// not check the minimum purchase amount; the pricing engine does that
// against the computed subtotal.
func (c *Coupon) ValidAt(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if now.Before(c.StartsAt) || now.After(c.EndsAt) {
		return false
	}
	return c.CurrentUses < c.MaxUses
}

// BulkDiscount is one tier of a vendor's quantity discount ladder.
// At checkout the tier with the highest MinQuantity not exceeding the
// shopper's total quantity from that vendor applies to every one of
// that vendor's lines.  DiscountBPs is basis points (1000 = 10.00%).
type BulkDiscount struct {
	ID          uint64    // bulk_discounts.id
	VendorID    uint64    // bulk_discounts.vendor_id
	MinQuantity int64     // bulk_discounts.min_quantity
	DiscountBPs int64     // bulk_discounts.discount_bps
	IsActive    bool      // bulk_discounts.is_active
	CreatedAt   time.Time // bulk_discounts.created_at
}
