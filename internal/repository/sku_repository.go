package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/marketplace-checkout/internal/model"
)

// StockRepo provides data access to the skus and inventory_transactions
// tables. Stock is never written directly: every change goes through
// ApplyTx, which records a signed ledger entry and moves the cached
// stock_quantity in the same statement pair, so the ledger always
// reconciles with the cached value.
type StockRepo struct {
	db *sql.DB
}

// NewStockRepo returns a new StockRepo bound to the provided database.
func NewStockRepo(db *sql.DB) *StockRepo { return &StockRepo{db: db} }

// GetByID loads a single SKU by primary key. Returns ErrNotFound when
// the row does not exist.
func (r *StockRepo) GetByID(ctx context.Context, id uint64) (*model.SKU, error) {
	const q = `SELECT id, product_id, vendor_id, sku_code, attributes, price_adjustment_cents,
	                  stock_quantity, is_active, created_at, updated_at
	           FROM skus WHERE id = ?`
	var s model.SKU
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ProductID, &s.VendorID, &s.SKUCode, &s.Attributes, &s.PriceAdjustmentCents,
		&s.StockQuantity, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// PricedSKU is a SKU joined with the catalog columns callers price
// and display with. UnitPriceCents is the product's base price plus
// the SKU's adjustment.
type PricedSKU struct {
	SKU            model.SKU
	ProductName    string
	UnitPriceCents int64
}

// GetPriced loads a SKU together with its product name and effective
// unit price. Cart adds and guest checkout lines both capture their
// unit price from this.
func (r *StockRepo) GetPriced(ctx context.Context, id uint64) (*PricedSKU, error) {
	const q = `SELECT s.id, s.product_id, s.vendor_id, s.sku_code, s.attributes, s.price_adjustment_cents,
	                  s.stock_quantity, s.is_active, s.created_at, s.updated_at,
	                  p.name, p.base_price_cents + s.price_adjustment_cents
	           FROM skus s JOIN products p ON p.id = s.product_id
	           WHERE s.id = ?`
	var ps PricedSKU
	s := &ps.SKU
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ProductID, &s.VendorID, &s.SKUCode, &s.Attributes, &s.PriceAdjustmentCents,
		&s.StockQuantity, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		&ps.ProductName, &ps.UnitPriceCents,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

// LockTx loads a SKU with SELECT ... FOR UPDATE inside the provided
// transaction. Concurrent holds and conversions on the same SKU
// serialize on this row lock; callers must acquire locks in ascending
// SKU id order when touching more than one SKU to avoid deadlocks.
func (r *StockRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.SKU, error) {
	const q = `SELECT id, product_id, vendor_id, sku_code, attributes, price_adjustment_cents,
	                  stock_quantity, is_active, created_at, updated_at
	           FROM skus WHERE id = ? FOR UPDATE`
	var s model.SKU
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ProductID, &s.VendorID, &s.SKUCode, &s.Attributes, &s.PriceAdjustmentCents,
		&s.StockQuantity, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ApplyTx records one inventory ledger entry and applies its signed
// quantity to the SKU's cached stock_quantity within the provided
// transaction. The stock update is guarded so that a negative result
// can never be written; when the guard rejects the change the method
// returns ErrNegativeStock and writes nothing, leaving the caller to
// roll back. The caller is responsible for committing or rolling back
// the transaction.
func (r *StockRepo) ApplyTx(ctx context.Context, tx *sql.Tx, entry model.InventoryTransaction) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE skus SET stock_quantity = stock_quantity + ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND stock_quantity + ? >= 0`,
		entry.Quantity, entry.SKUID, entry.Quantity,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the SKU is gone or the delta would have driven
		// stock negative; distinguish so callers can report it.
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM skus WHERE id = ?`, entry.SKUID).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return ErrNegativeStock
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO inventory_transactions (sku_id, type, quantity, reference, note, created_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SKUID, entry.Type, entry.Quantity, entry.Reference, entry.Note, entry.CreatedBy,
	)
	return err
}

// Apply runs ApplyTx in its own transaction. Used by the vendor
// restock and adjustment endpoints where the ledger write is the
// whole operation.
func (r *StockRepo) Apply(ctx context.Context, entry model.InventoryTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := r.LockTx(ctx, tx, entry.SKUID); err != nil {
		return err
	}
	if err := r.ApplyTx(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SumDeltas returns the sum of all ledger quantities for a SKU. The
// invariant stock_quantity == SUM(quantity) can be verified with this
// against GetByID; reconciliation jobs and tests rely on it.
func (r *StockRepo) SumDeltas(ctx context.Context, skuID uint64) (int64, error) {
	var sum sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(quantity) FROM inventory_transactions WHERE sku_id = ?`, skuID,
	).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum.Int64, nil
}

// ListBySKU returns the ledger entries for a SKU, newest first, for
// the vendor-facing transaction log. The vendor id is checked so a
// vendor cannot read another vendor's movements.
func (r *StockRepo) ListBySKU(ctx context.Context, skuID, vendorID uint64, limit int) ([]model.InventoryTransaction, error) {
	var owner uint64
	err := r.db.QueryRowContext(ctx, `SELECT vendor_id FROM skus WHERE id = ?`, skuID).Scan(&owner)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if owner != vendorID {
		return nil, ErrForbidden
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sku_id, type, quantity, reference, note, created_by, created_at
		 FROM inventory_transactions
		 WHERE sku_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		skuID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.InventoryTransaction
	for rows.Next() {
		var e model.InventoryTransaction
		if err := rows.Scan(&e.ID, &e.SKUID, &e.Type, &e.Quantity, &e.Reference, &e.Note, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ActiveReservedTx returns the total quantity currently held by
// active, unexpired reservations on a SKU, optionally excluding one
// (user, cart) pair so a shopper updating their own line does not
// compete with their own hold. Runs inside the caller's transaction
// so the count is consistent with the row lock taken by LockTx.
func (r *StockRepo) ActiveReservedTx(ctx context.Context, tx *sql.Tx, skuID uint64, excludeUserID, excludeCartID uint64) (int64, error) {
	var sum sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT SUM(quantity) FROM reservations
		 WHERE sku_id = ? AND status = ? AND expires_at > UTC_TIMESTAMP()
		   AND NOT (user_id = ? AND cart_id = ?)`,
		skuID, model.ReservationActive, excludeUserID, excludeCartID,
	).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum.Int64, nil
}
