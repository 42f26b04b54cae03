package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-checkout/internal/repository"
)

// CartHandler serves the registered shopper's cart. Every mutation
// that raises a line's quantity secures (or refreshes) a reservation
// hold first, so a cart line is always backed by stock that cannot be
// sold out from under the shopper while the hold lives. All methods
// assume JWT authentication has already run.
type CartHandler struct {
	CartRepo  *repository.CartRepo
	StockRepo *repository.StockRepo
	Holds     *repository.ReservationRepo
	HoldTTL   time.Duration
}

// NewCartHandler constructs a CartHandler. All dependencies must be
// non-nil.
func NewCartHandler(cartRepo *repository.CartRepo, stockRepo *repository.StockRepo, holds *repository.ReservationRepo, holdTTL time.Duration) *CartHandler {
	if cartRepo == nil || stockRepo == nil || holds == nil {
		panic("nil repository passed to NewCartHandler")
	}
	return &CartHandler{CartRepo: cartRepo, StockRepo: stockRepo, Holds: holds, HoldTTL: holdTTL}
}

type cartLineResponse struct {
	SKUID          uint64    `json:"sku_id"`
	SKUCode        string    `json:"sku_code"`
	ProductName    string    `json:"product_name"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LineTotalCents int64     `json:"line_total_cents"`
	HoldExpiresAt  time.Time `json:"hold_expires_at,omitempty"`
}

// Get handles GET /v1/cart. It returns the cart's lines with their
// captured prices and the expiry of each line's hold, if one is
// still active.
func (h *CartHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	cart, err := h.CartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return repoError(c, err)
	}
	lines, err := h.CartRepo.Lines(ctx, cart.ID)
	if err != nil {
		return repoError(c, err)
	}
	holds, err := h.Holds.ActiveForCart(ctx, userID, cart.ID)
	if err != nil {
		return repoError(c, err)
	}

	out := make([]cartLineResponse, 0, len(lines))
	var subtotal int64
	for _, l := range lines {
		r := cartLineResponse{
			SKUID:          l.Item.SKUID,
			SKUCode:        l.SKUCode,
			ProductName:    l.ProductName,
			Quantity:       l.Item.Quantity,
			UnitPriceCents: l.Item.UnitPriceCents,
			LineTotalCents: l.Item.UnitPriceCents * l.Item.Quantity,
		}
		if hold, ok := holds[l.Item.SKUID]; ok {
			r.HoldExpiresAt = hold.ExpiresAt
		}
		subtotal += r.LineTotalCents
		out = append(out, r)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"cart_id":        cart.ID,
		"items":          out,
		"subtotal_cents": subtotal,
	})
}

// AddItem handles POST /v1/cart/add_item. The body carries a sku_id
// and quantity. A hold for the full line quantity is secured before
// the cart row is written; on shortage the response is 409 with how
// many units are actually available and the cart is untouched.
func (h *CartHandler) AddItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		SKUID    uint64 `json:"sku_id"`
		Quantity int64  `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil || body.SKUID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "sku_id is required"})
	}
	if body.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
	}
	ctx := c.Request().Context()

	ps, err := h.StockRepo.GetPriced(ctx, body.SKUID)
	if err != nil {
		return repoError(c, err)
	}
	if !ps.SKU.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	cart, err := h.CartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return repoError(c, err)
	}

	// Adding the same SKU again replaces the quantity; the new total
	// is the existing line plus the increment.
	qty := body.Quantity
	lines, err := h.CartRepo.Lines(ctx, cart.ID)
	if err != nil {
		return repoError(c, err)
	}
	for _, l := range lines {
		if l.Item.SKUID == body.SKUID {
			qty += l.Item.Quantity
			break
		}
	}

	hold, err := h.Holds.Hold(ctx, body.SKUID, userID, cart.ID, qty, h.HoldTTL)
	if err != nil {
		return repoError(c, err)
	}
	item, err := h.CartRepo.UpsertItem(ctx, cart.ID, body.SKUID, qty, ps.UnitPriceCents)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"sku_id":           item.SKUID,
		"quantity":         item.Quantity,
		"unit_price_cents": item.UnitPriceCents,
		"hold_expires_at":  hold.ExpiresAt,
	})
}

// UpdateItem handles POST /v1/cart/update_item. Cart lines are
// keyed by SKU, so the body identifies the line by sku_id. The new
// quantity replaces the old one; the hold is refreshed (and its
// expiry window restarted) for the new amount. A quantity of zero
// removes the line.
func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		SKUID    uint64 `json:"sku_id"`
		Quantity int64  `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil || body.SKUID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "sku_id is required"})
	}
	if body.Quantity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be non-negative"})
	}
	skuID := body.SKUID
	ctx := c.Request().Context()
	cart, err := h.CartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return repoError(c, err)
	}

	if body.Quantity == 0 {
		if err := h.CartRepo.RemoveItem(ctx, cart.ID, skuID); err != nil {
			return repoError(c, err)
		}
		if err := h.Holds.Release(ctx, skuID, userID, cart.ID); err != nil {
			return repoError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	ps, err := h.StockRepo.GetPriced(ctx, skuID)
	if err != nil {
		return repoError(c, err)
	}
	hold, err := h.Holds.Hold(ctx, skuID, userID, cart.ID, body.Quantity, h.HoldTTL)
	if err != nil {
		return repoError(c, err)
	}
	item, err := h.CartRepo.UpsertItem(ctx, cart.ID, skuID, body.Quantity, ps.UnitPriceCents)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"sku_id":           item.SKUID,
		"quantity":         item.Quantity,
		"unit_price_cents": item.UnitPriceCents,
		"hold_expires_at":  hold.ExpiresAt,
	})
}

// RemoveItem handles POST /v1/cart/remove_item. The line's hold is
// released so the units return to the shared pool immediately
// instead of waiting out the TTL.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		SKUID uint64 `json:"sku_id"`
	}
	if err := c.Bind(&body); err != nil || body.SKUID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "sku_id is required"})
	}
	skuID := body.SKUID
	ctx := c.Request().Context()
	cart, err := h.CartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return repoError(c, err)
	}
	if err := h.CartRepo.RemoveItem(ctx, cart.ID, skuID); err != nil {
		return repoError(c, err)
	}
	if err := h.Holds.Release(ctx, skuID, userID, cart.ID); err != nil {
		return repoError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Clear handles POST /v1/cart/clear. All lines and their holds go at once.
func (h *CartHandler) Clear(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	cart, err := h.CartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return repoError(c, err)
	}
	if err := h.CartRepo.Clear(ctx, cart.ID); err != nil {
		return repoError(c, err)
	}
	if err := h.Holds.ReleaseAllForCart(ctx, userID, cart.ID); err != nil {
		return repoError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
