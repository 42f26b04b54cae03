// Package pricing implements the deterministic checkout pricing rules:
// per-vendor bulk-quantity discounts applied per line, then a single
// optional order-level coupon.  Everything works on integer cents and
// basis points; given identical inputs the output is identical, with
// no clock or randomness involved beyond the coupon validity check,
// which is performed against an instant the caller supplies.
package pricing

import (
	"time"

	"github.com/iliyamo/marketplace-checkout/internal/model"
)

// Line is one checkout line as the engine sees it: the captured unit
// price and the vendor the quantity counts toward.
type Line struct {
	SKUID          uint64
	VendorID       uint64
	Quantity       int64
	UnitPriceCents int64
}

// PricedLine is a Line with the bulk discount resolved.  DiscountBPs
// is the applied tier in basis points, zero when no tier matched.
type PricedLine struct {
	Line
	DiscountBPs         int64
	FinalUnitPriceCents int64
	LineTotalCents      int64
}

// Quote is the full pricing result for one checkout attempt.
type Quote struct {
	Lines         []PricedLine
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
	CouponApplied bool
}

// roundHalfUpDiv divides num by den rounding half away from zero.
// All pricing inputs are non-negative, so half-up and half-away
// coincide; the guard keeps the helper honest anyway.
func roundHalfUpDiv(num, den int64) int64 {
	if num < 0 {
		return -((-num + den/2) / den)
	}
	return (num + den/2) / den
}

// applyBPs discounts a cent amount by the given basis points,
// rounding half-up to whole cents ("quantize" semantics).
func applyBPs(cents, bps int64) int64 {
	return roundHalfUpDiv(cents*(10000-bps), 10000)
}

// bestTier returns the discount (in basis points) of the tier with
// the highest MinQuantity not exceeding qty, or zero when no active
// tier matches.  Tiers need not be sorted.
func bestTier(tiers []model.BulkDiscount, qty int64) int64 {
	var bestMin, bestBPs int64 = -1, 0
	for _, t := range tiers {
		if !t.IsActive || t.MinQuantity > qty {
			continue
		}
		if t.MinQuantity > bestMin {
			bestMin = t.MinQuantity
			bestBPs = t.DiscountBPs
		}
	}
	return bestBPs
}

// Price runs the full pricing pass over a checkout's lines.
//
// For each vendor the total quantity across that vendor's lines
// selects a single bulk tier; its percentage is applied to every
// line's unit price independently, rounded half-up to cents.  The
// discounted line totals sum into the subtotal.  A coupon is applied
// only when it is valid at `now` and the subtotal meets its minimum;
// an invalid or unknown coupon is silently ignored and the quote
// reports CouponApplied=false.  The total never goes below zero.
func Price(lines []Line, tiers map[uint64][]model.BulkDiscount, coupon *model.Coupon, now time.Time) Quote {
	vendorQty := make(map[uint64]int64, len(lines))
	for _, l := range lines {
		vendorQty[l.VendorID] += l.Quantity
	}

	q := Quote{Lines: make([]PricedLine, 0, len(lines))}
	for _, l := range lines {
		bps := bestTier(tiers[l.VendorID], vendorQty[l.VendorID])
		unit := l.UnitPriceCents
		if bps > 0 {
			unit = applyBPs(unit, bps)
		}
		pl := PricedLine{
			Line:                l,
			DiscountBPs:         bps,
			FinalUnitPriceCents: unit,
			LineTotalCents:      unit * l.Quantity,
		}
		q.SubtotalCents += pl.LineTotalCents
		q.Lines = append(q.Lines, pl)
	}

	if coupon != nil && coupon.ValidAt(now) && q.SubtotalCents >= coupon.MinPurchaseCents {
		q.DiscountCents = CouponDiscount(coupon, q.SubtotalCents)
		q.CouponApplied = q.DiscountCents > 0
	}

	q.TotalCents = q.SubtotalCents - q.DiscountCents
	if q.TotalCents < 0 {
		q.TotalCents = 0
	}
	return q
}

// CouponDiscount computes the discount a coupon grants on a subtotal:
// a quantized percentage for percentage coupons, or the fixed amount
// capped at the subtotal.  Validity and minimum-purchase checks are
// the caller's concern.
func CouponDiscount(c *model.Coupon, subtotalCents int64) int64 {
	switch c.DiscountType {
	case model.DiscountPercentage:
		return roundHalfUpDiv(subtotalCents*c.DiscountValue, 10000)
	case model.DiscountFixed:
		if c.DiscountValue > subtotalCents {
			return subtotalCents
		}
		return c.DiscountValue
	}
	return 0
}
