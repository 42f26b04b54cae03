package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/marketplace-checkout/internal/model"
)

// CartLine is a cart item joined with the SKU columns checkout and
// the cart view need: the vendor the quantity counts toward, the
// catalog name snapshot and the live active flag.
type CartLine struct {
	Item        model.CartItem
	VendorID    uint64
	ProductID   uint64
	SKUCode     string
	ProductName string
	SKUActive   bool
}

// CartRepo provides data access to the carts and cart_items tables.
// Each registered user has at most one cart; guest checkouts never
// touch these tables.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a new CartRepo bound to the provided database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

// GetOrCreate returns the user's cart, creating an empty one when
// none exists yet.
func (r *CartRepo) GetOrCreate(ctx context.Context, userID uint64) (*model.Cart, error) {
	var c model.Cart
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ?`, userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return &c, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO carts (user_id) VALUES (?)`, userID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.getByID(ctx, uint64(id))
}

func (r *CartRepo) getByID(ctx context.Context, id uint64) (*model.Cart, error) {
	var c model.Cart
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertItem adds a SKU to the cart or replaces the quantity of an
// existing line. The unit price is captured at add time so the cart
// view and checkout price the same number even if the catalog price
// moves afterwards. The caller must already have secured a hold for
// the new quantity.
func (r *CartRepo) UpsertItem(ctx context.Context, cartID, skuID uint64, quantity, unitPriceCents int64) (*model.CartItem, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = ?, updated_at = UTC_TIMESTAMP()
		 WHERE cart_id = ? AND sku_id = ?`,
		quantity, cartID, skuID,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, sku_id, quantity, unit_price_cents)
			 VALUES (?, ?, ?, ?)`,
			cartID, skuID, quantity, unitPriceCents,
		); err != nil {
			return nil, err
		}
	}
	var it model.CartItem
	err = r.db.QueryRowContext(ctx,
		`SELECT id, cart_id, sku_id, quantity, unit_price_cents, created_at, updated_at
		 FROM cart_items WHERE cart_id = ? AND sku_id = ?`,
		cartID, skuID,
	).Scan(&it.ID, &it.CartID, &it.SKUID, &it.Quantity, &it.UnitPriceCents, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// RemoveItem deletes one line from the cart. Returns ErrNotFound when
// the SKU was not in the cart, so handlers can 404 instead of
// silently succeeding.
func (r *CartRepo) RemoveItem(ctx context.Context, cartID, skuID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = ? AND sku_id = ?`, cartID, skuID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every line from the cart.
func (r *CartRepo) Clear(ctx context.Context, cartID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	return err
}

// ClearTx removes every line from the cart within the caller's
// transaction. The checkout commit uses it so the cart empties
// atomically with the order insert.
func (r *CartRepo) ClearTx(ctx context.Context, tx *sql.Tx, cartID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	return err
}

// Lines returns the cart's items joined with the SKU and product
// columns pricing needs, ordered by SKU id so callers that lock rows
// while iterating do so in a deterministic order.
func (r *CartRepo) Lines(ctx context.Context, cartID uint64) ([]CartLine, error) {
	const q = `SELECT ci.id, ci.cart_id, ci.sku_id, ci.quantity, ci.unit_price_cents,
	                  ci.created_at, ci.updated_at,
	                  s.vendor_id, s.product_id, s.sku_code, p.name, s.is_active
	           FROM cart_items ci
	           JOIN skus s ON s.id = ci.sku_id
	           JOIN products p ON p.id = s.product_id
	           WHERE ci.cart_id = ?
	           ORDER BY ci.sku_id`
	rows, err := r.db.QueryContext(ctx, q, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(
			&l.Item.ID, &l.Item.CartID, &l.Item.SKUID, &l.Item.Quantity, &l.Item.UnitPriceCents,
			&l.Item.CreatedAt, &l.Item.UpdatedAt,
			&l.VendorID, &l.ProductID, &l.SKUCode, &l.ProductName, &l.SKUActive,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
