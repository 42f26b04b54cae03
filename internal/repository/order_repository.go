package repository

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/marketplace-checkout/internal/inventory"
	"github.com/iliyamo/marketplace-checkout/internal/model"
)

// CommitLine is one fully priced line entering the checkout commit.
// UnitPriceCents already includes any bulk-tier discount; the product
// name and SKU code ride along as snapshots for the order items.
type CommitLine struct {
	SKUID          uint64
	VendorID       uint64
	ProductID      uint64
	SKUCode        string
	ProductName    string
	Quantity       int64
	UnitPriceCents int64
}

// CouponCharge names the coupon a checkout wants to redeem and the
// discount it was priced with. If redemption loses the usage-cap race
// inside the commit, the order falls back to undiscounted totals.
type CouponCharge struct {
	CouponID      uint64
	DiscountCents int64
}

// CommitInput carries everything CommitCheckout writes. Order must
// arrive with its identity, guest and payment fields populated and
// SubtotalCents set; discount, total and coupon columns are resolved
// inside the transaction. CartID is zero for guest checkouts, which
// have no cart rows or reservations to touch.
type CommitInput struct {
	Order  *model.Order
	Lines  []CommitLine
	Coupon *CouponCharge
	UserID uint64
	CartID uint64
}

// OrderRepo provides data access to the orders, vendor_orders and
// order_items tables, and owns the single all-or-nothing transaction
// that turns holds into a placed order.
type OrderRepo struct {
	db      *sql.DB
	stocks  *StockRepo
	holds   *ReservationRepo
	coupons *CouponRepo
	carts   *CartRepo
}

// NewOrderRepo returns a new OrderRepo. The collaborating repos are
// used only through their ...Tx methods so every write lands in the
// one commit transaction.
func NewOrderRepo(db *sql.DB, stocks *StockRepo, holds *ReservationRepo, coupons *CouponRepo, carts *CartRepo) *OrderRepo {
	return &OrderRepo{db: db, stocks: stocks, holds: holds, coupons: coupons, carts: carts}
}

// CommitCheckout performs the whole settlement in one transaction:
// locks every line's SKU row in ascending id order, re-verifies that
// live availability (excluding the shopper's own holds) still covers
// each quantity, converts the holds, writes a negative sale entry to
// the inventory ledger per line, redeems the coupon under its usage
// cap, and inserts the order with its per-vendor suborders and item
// snapshots. Any failure rolls the whole thing back; on shortage the
// error is *inventory.InsufficientStockError for the first short SKU.
//
// A lost coupon race is not a failure: the order commits with
// undiscounted totals and no coupon reference, mirroring how an
// invalid code is silently ignored at pricing time.
func (r *OrderRepo) CommitCheckout(ctx context.Context, in CommitInput) (*model.Order, error) {
	lines := make([]CommitLine, len(in.Lines))
	copy(lines, in.Lines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].SKUID < lines[j].SKUID })

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Duplicate SKUs are adjacent after the sort; the availability
	// check must see their combined quantity, or each slice would
	// pass on its own while the sum eats into other shoppers' holds.
	for i := 0; i < len(lines); {
		skuID := lines[i].SKUID
		var want int64
		j := i
		for ; j < len(lines) && lines[j].SKUID == skuID; j++ {
			want += lines[j].Quantity
		}
		sku, err := r.stocks.LockTx(ctx, tx, skuID)
		if err != nil {
			return nil, err
		}
		if !sku.IsActive {
			return nil, ErrNotFound
		}
		reserved, err := r.stocks.ActiveReservedTx(ctx, tx, skuID, in.UserID, in.CartID)
		if err != nil {
			return nil, err
		}
		if err := inventory.CheckHold(skuID, sku.StockQuantity, reserved, 0, want); err != nil {
			return nil, err
		}
		i = j
	}

	order := in.Order
	now := time.Now().UTC()
	order.CreatedAt = now
	order.Status = model.OrderPending
	order.DiscountCents = 0
	order.CouponID = nil
	if in.Coupon != nil {
		switch err := r.coupons.RedeemTx(ctx, tx, in.Coupon.CouponID); err {
		case nil:
			order.DiscountCents = in.Coupon.DiscountCents
			cid := in.Coupon.CouponID
			order.CouponID = &cid
		case ErrCouponExhausted:
			// fall through with zero discount
		default:
			return nil, err
		}
	}
	order.TotalCents = order.SubtotalCents - order.DiscountCents
	if order.TotalCents < 0 {
		order.TotalCents = 0
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, is_guest, guest_email, guest_name, guest_phone,
		                     status, payment_method, subtotal_cents, discount_cents, total_cents,
		                     currency, coupon_id, payment_intent_id, shipping_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.IsGuest, order.GuestEmail, order.GuestName, order.GuestPhone,
		order.Status, order.PaymentMethod, order.SubtotalCents, order.DiscountCents, order.TotalCents,
		order.Currency, order.CouponID, order.PaymentIntentID, order.ShippingAddress, now,
	)
	if err != nil {
		return nil, err
	}

	// One suborder per vendor, in first-seen order of the sorted lines.
	vendorTotals := make(map[uint64]int64)
	var vendorSeq []uint64
	for _, l := range lines {
		if _, ok := vendorTotals[l.VendorID]; !ok {
			vendorSeq = append(vendorSeq, l.VendorID)
		}
		vendorTotals[l.VendorID] += l.UnitPriceCents * l.Quantity
	}
	vendorOrderIDs := make(map[uint64]string, len(vendorSeq))
	order.VendorOrders = order.VendorOrders[:0]
	for _, vid := range vendorSeq {
		vo := model.VendorOrder{
			ID:         uuid.NewString(),
			OrderID:    order.ID,
			VendorID:   vid,
			Status:     model.OrderPending,
			TotalCents: vendorTotals[vid],
			CreatedAt:  now,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vendor_orders (id, order_id, vendor_id, status, total_cents, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			vo.ID, vo.OrderID, vo.VendorID, vo.Status, vo.TotalCents, now,
		); err != nil {
			return nil, err
		}
		vendorOrderIDs[vid] = vo.ID
		order.VendorOrders = append(order.VendorOrders, vo)
	}

	for _, l := range lines {
		skuID := l.SKUID
		item := model.OrderItem{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			VendorOrderID:  vendorOrderIDs[l.VendorID],
			SKUID:          &skuID,
			ProductID:      l.ProductID,
			SKUCode:        l.SKUCode,
			ProductName:    l.ProductName,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, vendor_order_id, sku_id, product_id,
			                          sku_code, product_name, quantity, unit_price_cents)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.OrderID, item.VendorOrderID, item.SKUID, item.ProductID,
			item.SKUCode, item.ProductName, item.Quantity, item.UnitPriceCents,
		); err != nil {
			return nil, err
		}
		for i := range order.VendorOrders {
			if order.VendorOrders[i].VendorID == l.VendorID {
				order.VendorOrders[i].Items = append(order.VendorOrders[i].Items, item)
			}
		}

		if in.CartID != 0 {
			if err := r.holds.ConvertTx(ctx, tx, l.SKUID, in.UserID, in.CartID); err != nil {
				return nil, err
			}
		}
		if err := r.stocks.ApplyTx(ctx, tx, model.InventoryTransaction{
			SKUID:     l.SKUID,
			Type:      model.TxSale,
			Quantity:  -l.Quantity,
			Reference: order.ID,
		}); err != nil {
			return nil, err
		}
	}

	if in.CartID != 0 {
		if err := r.carts.ClearTx(ctx, tx, in.CartID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return order, nil
}

// AttachPaymentIntent records the payment intent id created for an
// order after the commit. Failing to create the intent is not fatal
// to the order, so this runs outside the commit transaction.
func (r *OrderRepo) AttachPaymentIntent(ctx context.Context, orderID, intentID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_intent_id = ? WHERE id = ?`, intentID, orderID,
	)
	return err
}

// MarkPaidByIntent settles the order referenced by a payment intent:
// the order moves pending -> paid and its vendor suborders cascade
// with it. The status guards make redelivered webhooks a no-op; the
// returned flag reports whether this call did the settlement.
func (r *OrderRepo) MarkPaidByIntent(ctx context.Context, intentID string) (orderID string, settled bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE payment_intent_id = ? FOR UPDATE`, intentID,
	).Scan(&orderID)
	if err == sql.ErrNoRows {
		return "", false, ErrNotFound
	}
	if err != nil {
		return "", false, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
		model.OrderPaid, orderID, model.OrderPending,
	)
	if err != nil {
		return "", false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE vendor_orders SET status = ? WHERE order_id = ? AND status = ?`,
			model.OrderPaid, orderID, model.OrderPending,
		); err != nil {
			return "", false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	committed = true
	return orderID, n > 0, nil
}

// UpdateVendorOrderStatus moves one vendor suborder along the
// fulfillment transition table. The vendor id must own the suborder
// (ErrForbidden otherwise) and the move must be allowed by
// model.CanVendorTransition (ErrConflict otherwise) — in particular a
// vendor can never mark their own suborder paid; that move belongs to
// payment settlement. Returns the order id for event publication.
func (r *OrderRepo) UpdateVendorOrderStatus(ctx context.Context, vendorOrderID string, vendorID uint64, next string) (orderID string, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var owner uint64
	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT vendor_id, status, order_id FROM vendor_orders WHERE id = ? FOR UPDATE`,
		vendorOrderID,
	).Scan(&owner, &current, &orderID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if owner != vendorID {
		return "", ErrForbidden
	}
	if !model.CanVendorTransition(current, next) {
		return "", ErrConflict
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE vendor_orders SET status = ? WHERE id = ?`, next, vendorOrderID,
	); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return orderID, nil
}

// GetByID loads an order with its vendor suborders and items nested.
// When forUser is non-nil the order must belong to that user,
// otherwise ErrForbidden; guest orders are only reachable without an
// owner filter (the checkout response is the guest's receipt).
func (r *OrderRepo) GetByID(ctx context.Context, orderID string, forUser *uint64) (*model.Order, error) {
	var o model.Order
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, is_guest, guest_email, guest_name, guest_phone,
		        status, payment_method, subtotal_cents, discount_cents, total_cents,
		        currency, coupon_id, payment_intent_id, shipping_address, created_at
		 FROM orders WHERE id = ?`, orderID,
	).Scan(
		&o.ID, &o.UserID, &o.IsGuest, &o.GuestEmail, &o.GuestName, &o.GuestPhone,
		&o.Status, &o.PaymentMethod, &o.SubtotalCents, &o.DiscountCents, &o.TotalCents,
		&o.Currency, &o.CouponID, &o.PaymentIntentID, &o.ShippingAddress, &o.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if forUser != nil && (o.UserID == nil || *o.UserID != *forUser) {
		return nil, ErrForbidden
	}

	vrows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, vendor_id, status, total_cents, created_at
		 FROM vendor_orders WHERE order_id = ? ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	byID := make(map[string]int)
	for vrows.Next() {
		var vo model.VendorOrder
		if err := vrows.Scan(&vo.ID, &vo.OrderID, &vo.VendorID, &vo.Status, &vo.TotalCents, &vo.CreatedAt); err != nil {
			return nil, err
		}
		byID[vo.ID] = len(o.VendorOrders)
		o.VendorOrders = append(o.VendorOrders, vo)
	}
	if err := vrows.Err(); err != nil {
		return nil, err
	}

	irows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, vendor_order_id, sku_id, product_id,
		        sku_code, product_name, quantity, unit_price_cents
		 FROM order_items WHERE order_id = ?`, orderID,
	)
	if err != nil {
		return nil, err
	}
	defer irows.Close()
	for irows.Next() {
		var it model.OrderItem
		if err := irows.Scan(&it.ID, &it.OrderID, &it.VendorOrderID, &it.SKUID, &it.ProductID,
			&it.SKUCode, &it.ProductName, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		if idx, ok := byID[it.VendorOrderID]; ok {
			o.VendorOrders[idx].Items = append(o.VendorOrders[idx].Items, it)
		}
	}
	return &o, irows.Err()
}

// ListByUser returns the user's orders newest first, headers only.
// Callers wanting line detail follow up with GetByID.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, is_guest, guest_email, guest_name, guest_phone,
		        status, payment_method, subtotal_cents, discount_cents, total_cents,
		        currency, coupon_id, payment_intent_id, shipping_address, created_at
		 FROM orders WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.IsGuest, &o.GuestEmail, &o.GuestName, &o.GuestPhone,
			&o.Status, &o.PaymentMethod, &o.SubtotalCents, &o.DiscountCents, &o.TotalCents,
			&o.Currency, &o.CouponID, &o.PaymentIntentID, &o.ShippingAddress, &o.CreatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// VendorOrdersForVendor lists a vendor's suborders newest first for
// the vendor dashboard.
func (r *OrderRepo) VendorOrdersForVendor(ctx context.Context, vendorID uint64, limit int) ([]model.VendorOrder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, vendor_id, status, total_cents, created_at
		 FROM vendor_orders WHERE vendor_id = ? ORDER BY created_at DESC LIMIT ?`,
		vendorID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vos []model.VendorOrder
	for rows.Next() {
		var vo model.VendorOrder
		if err := rows.Scan(&vo.ID, &vo.OrderID, &vo.VendorID, &vo.Status, &vo.TotalCents, &vo.CreatedAt); err != nil {
			return nil, err
		}
		vos = append(vos, vo)
	}
	return vos, rows.Err()
}
