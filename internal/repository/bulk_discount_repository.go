package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/marketplace-checkout/internal/model"
)

// BulkDiscountRepo provides read access to vendors' quantity-tier
// discount tables. Tiers change rarely; they are read fresh per
// pricing pass rather than cached so a vendor's edit takes effect on
// the next checkout.
type BulkDiscountRepo struct {
	db *sql.DB
}

// NewBulkDiscountRepo returns a new BulkDiscountRepo bound to the
// provided database.
func NewBulkDiscountRepo(db *sql.DB) *BulkDiscountRepo { return &BulkDiscountRepo{db: db} }

// TiersForVendors returns the active discount tiers of the given
// vendors, keyed by vendor id. Vendors with no tiers are simply
// absent from the map.
func (r *BulkDiscountRepo) TiersForVendors(ctx context.Context, vendorIDs []uint64) (map[uint64][]model.BulkDiscount, error) {
	tiers := make(map[uint64][]model.BulkDiscount)
	if len(vendorIDs) == 0 {
		return tiers, nil
	}
	query := `SELECT id, vendor_id, min_quantity, discount_bps, is_active, created_at
	          FROM bulk_discounts WHERE is_active = TRUE AND vendor_id IN (`
	args := make([]interface{}, 0, len(vendorIDs))
	for i, id := range vendorIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += ")"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.BulkDiscount
		if err := rows.Scan(&t.ID, &t.VendorID, &t.MinQuantity, &t.DiscountBPs, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		tiers[t.VendorID] = append(tiers[t.VendorID], t)
	}
	return tiers, rows.Err()
}
