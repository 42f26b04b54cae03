package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/marketplace-checkout/internal/inventory"
	"github.com/iliyamo/marketplace-checkout/internal/model"
)

// ReservationRepo provides data access to the reservations table.
// A reservation is a timed hold on SKU units: while active and
// unexpired it subtracts from the availability every other shopper
// sees, without touching the SKU's stock_quantity. All expiry
// comparisons are performed in UTC.
type ReservationRepo struct {
	db     *sql.DB
	stocks *StockRepo
}

// NewReservationRepo returns a new ReservationRepo bound to the
// provided database. The stock repo supplies the row-lock and
// availability helpers used inside Hold's transaction.
func NewReservationRepo(db *sql.DB, stocks *StockRepo) *ReservationRepo {
	return &ReservationRepo{db: db, stocks: stocks}
}

// Hold places or refreshes a hold of qty units of a SKU for one
// (user, cart) pair, expiring ttl from now. The whole decision runs
// in a single transaction: the SKU row is locked, availability is
// computed from live stock minus everyone else's active unexpired
// holds, and only if qty fits is the hold written. A shopper's own
// existing hold on the same SKU is excluded from the competition and
// replaced rather than stacked, so raising a cart line from 2 to 3
// needs one extra unit of room, not three.
//
// On shortage the returned error is *inventory.InsufficientStockError
// carrying the quantity still available, and nothing is written.
func (r *ReservationRepo) Hold(ctx context.Context, skuID, userID, cartID uint64, qty int64, ttl time.Duration) (*model.Reservation, error) {
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

	sku, err := r.stocks.LockTx(ctx, tx, skuID)
	if err != nil {
		return nil, err
	}
	if !sku.IsActive {
		return nil, ErrNotFound
	}
	reserved, err := r.stocks.ActiveReservedTx(ctx, tx, skuID, userID, cartID)
	if err != nil {
		return nil, err
	}
	// Own hold already excluded by the query, so ownActive is 0 here.
	if err := inventory.CheckHold(skuID, sku.StockQuantity, reserved, 0, qty); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)
	res := &model.Reservation{
		SKUID:     skuID,
		UserID:    userID,
		CartID:    cartID,
		Quantity:  qty,
		ExpiresAt: expires,
		Status:    model.ReservationActive,
	}

	// Refresh an existing active hold in place; insert when none.
	upd, err := tx.ExecContext(ctx,
		`UPDATE reservations SET quantity = ?, expires_at = ?
		 WHERE sku_id = ? AND user_id = ? AND cart_id = ? AND status = ?`,
		qty, expires, skuID, userID, cartID, model.ReservationActive,
	)
	if err != nil {
		return nil, err
	}
	n, err := upd.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		res.ID = uuid.NewString()
		res.CreatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reservations (id, sku_id, user_id, cart_id, quantity, expires_at, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, skuID, userID, cartID, qty, expires, model.ReservationActive, now,
		)
		if err != nil {
			return nil, err
		}
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT id, created_at FROM reservations
			 WHERE sku_id = ? AND user_id = ? AND cart_id = ? AND status = ?`,
			skuID, userID, cartID, model.ReservationActive,
		).Scan(&res.ID, &res.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// Release marks the (sku, user, cart) hold released if it is still
// active. Releasing a hold that was already released, converted or
// swept is a no-op, so the cart handlers can call it unconditionally
// when a line is removed.
func (r *ReservationRepo) Release(ctx context.Context, skuID, userID, cartID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?
		 WHERE sku_id = ? AND user_id = ? AND cart_id = ? AND status = ?`,
		model.ReservationReleased, skuID, userID, cartID, model.ReservationActive,
	)
	return err
}

// ReleaseAllForCart releases every active hold belonging to a
// (user, cart) pair. Used when a cart is cleared.
func (r *ReservationRepo) ReleaseAllForCart(ctx context.Context, userID, cartID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?
		 WHERE user_id = ? AND cart_id = ? AND status = ?`,
		model.ReservationReleased, userID, cartID, model.ReservationActive,
	)
	return err
}

// ConvertTx marks the (sku, user, cart) hold converted within the
// caller's transaction. A hold that expired and was swept before the
// shopper reached checkout simply converts zero rows; the commit path
// has already re-verified availability under the SKU row lock, so the
// purchase proceeds either way.
func (r *ReservationRepo) ConvertTx(ctx context.Context, tx *sql.Tx, skuID, userID, cartID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?
		 WHERE sku_id = ? AND user_id = ? AND cart_id = ? AND status = ?`,
		model.ReservationConverted, skuID, userID, cartID, model.ReservationActive,
	)
	return err
}

// SweepExpired flips every active reservation whose expiry has passed
// to released in one conditional bulk update and returns the number
// of rows touched. The status guard makes concurrent sweeps
// idempotent: two sweepers racing over the same rows flip each row
// exactly once between them.
func (r *ReservationRepo) SweepExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?
		 WHERE status = ? AND expires_at <= UTC_TIMESTAMP()`,
		model.ReservationReleased, model.ReservationActive,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ActiveForCart returns the active unexpired holds for a (user, cart)
// pair keyed by SKU id. Checkout uses it to report which lines still
// carry a hold; lines without one are re-verified against live
// availability instead of failing outright.
func (r *ReservationRepo) ActiveForCart(ctx context.Context, userID, cartID uint64) (map[uint64]*model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sku_id, user_id, cart_id, quantity, expires_at, status, created_at
		 FROM reservations
		 WHERE user_id = ? AND cart_id = ? AND status = ? AND expires_at > UTC_TIMESTAMP()`,
		userID, cartID, model.ReservationActive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	holds := make(map[uint64]*model.Reservation)
	for rows.Next() {
		var h model.Reservation
		if err := rows.Scan(&h.ID, &h.SKUID, &h.UserID, &h.CartID, &h.Quantity, &h.ExpiresAt, &h.Status, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds[h.SKUID] = &h
	}
	return holds, rows.Err()
}
