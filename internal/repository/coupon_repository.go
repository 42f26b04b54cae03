package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/marketplace-checkout/internal/model"
)

// CouponRepo provides data access to the coupons table. Redemption
// counting is done with a conditional update so the usage cap holds
// under concurrent checkouts without a separate lock.
type CouponRepo struct {
	db *sql.DB
}

// NewCouponRepo returns a new CouponRepo bound to the provided database.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

const couponColumns = `id, code, discount_type, discount_value, min_purchase_cents,
	starts_at, ends_at, max_uses, current_uses, is_active, created_at`

func scanCoupon(row *sql.Row) (*model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinPurchaseCents,
		&c.StartsAt, &c.EndsAt, &c.MaxUses, &c.CurrentUses, &c.IsActive, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByCode loads a coupon by its code. Returns ErrNotFound for an
// unknown code; callers deciding whether to apply a discount treat
// that the same as an invalid coupon.
func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return scanCoupon(r.db.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = ?`, code))
}

// Create inserts a new coupon and returns it with the assigned id.
func (r *CouponRepo) Create(ctx context.Context, c *model.Coupon) (*model.Coupon, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO coupons (code, discount_type, discount_value, min_purchase_cents,
		                      starts_at, ends_at, max_uses, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Code, c.DiscountType, c.DiscountValue, c.MinPurchaseCents,
		c.StartsAt, c.EndsAt, c.MaxUses, c.IsActive,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return scanCoupon(r.db.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = ?`, id))
}

// RedeemTx increments the coupon's usage count within the caller's
// transaction, but only while the cap has room and the coupon is
// still active and inside its validity window. When the guarded
// update matches no row the redemption lost the race (or the coupon
// lapsed between pricing and commit) and ErrCouponExhausted is
// returned; the checkout then recomputes totals without the discount
// rather than failing the order.
func (r *CouponRepo) RedeemTx(ctx context.Context, tx *sql.Tx, couponID uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE coupons SET current_uses = current_uses + 1
		 WHERE id = ? AND is_active = TRUE
		   AND starts_at <= UTC_TIMESTAMP() AND ends_at >= UTC_TIMESTAMP()
		   AND current_uses < max_uses`,
		couponID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCouponExhausted
	}
	return nil
}
