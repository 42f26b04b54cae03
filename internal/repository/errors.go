// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrNegativeStock signals that a ledger write
// would have driven a SKU's stock below zero.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist or is
// not visible to the caller. Handlers should translate this into an
// HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as moving a vendor order to a status
// the transition table does not allow. Handlers should translate
// this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrNegativeStock is returned when applying an inventory delta
// would drive a SKU's stock below zero. The ledger enforces this at
// write time regardless of which caller produced the delta.
var ErrNegativeStock = errors.New("stock would go negative")

// ErrCouponExhausted is returned by the conditional redemption
// update when the coupon's usage cap was reached by a concurrent
// checkout. Callers treat it the same way as an invalid code: the
// order proceeds without the discount.
var ErrCouponExhausted = errors.New("coupon exhausted")
