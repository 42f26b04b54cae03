package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-checkout/internal/model"
	"github.com/iliyamo/marketplace-checkout/internal/repository"
)

// VendorInventoryHandler lets vendors move their own stock through
// the inventory ledger: restocks, manual adjustments, and the
// per-SKU movement log. Direct writes to stock_quantity do not exist;
// whatever a vendor does lands as a signed ledger entry.
type VendorInventoryHandler struct {
	StockRepo *repository.StockRepo
}

// NewVendorInventoryHandler constructs a VendorInventoryHandler.
func NewVendorInventoryHandler(stockRepo *repository.StockRepo) *VendorInventoryHandler {
	if stockRepo == nil {
		panic("nil repository passed to NewVendorInventoryHandler")
	}
	return &VendorInventoryHandler{StockRepo: stockRepo}
}

// Restock handles POST /v1/vendor/skus/:sku_id/restock. The quantity
// must be positive and is recorded as a purchase entry.
func (h *VendorInventoryHandler) Restock(c echo.Context) error {
	return h.apply(c, model.TxPurchase, false)
}

// Adjust handles POST /v1/vendor/skus/:sku_id/adjust. The quantity
// may be negative (shrinkage, damage); a correction that would take
// stock below zero is rejected with 409.
func (h *VendorInventoryHandler) Adjust(c echo.Context) error {
	return h.apply(c, model.TxAdjustment, true)
}

func (h *VendorInventoryHandler) apply(c echo.Context, txType string, allowNegative bool) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	vendorID, err := getVendorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	skuID, err := pathID(c, "sku_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid sku id"})
	}
	var body struct {
		Quantity  int64  `json:"quantity"`
		Reference string `json:"reference"`
		Note      string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Quantity == 0 || (!allowNegative && body.Quantity < 0) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
	}
	ctx := c.Request().Context()

	sku, err := h.StockRepo.GetByID(ctx, skuID)
	if err != nil {
		return repoError(c, err)
	}
	if sku.VendorID != vendorID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	err = h.StockRepo.Apply(ctx, model.InventoryTransaction{
		SKUID:     skuID,
		Type:      txType,
		Quantity:  body.Quantity,
		Reference: body.Reference,
		Note:      body.Note,
		CreatedBy: &userID,
	})
	if errors.Is(err, repository.ErrNegativeStock) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "stock would go negative"})
	}
	if err != nil {
		return repoError(c, err)
	}

	sku, err = h.StockRepo.GetByID(ctx, skuID)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"sku_id":         skuID,
		"stock_quantity": sku.StockQuantity,
	})
}

// Transactions handles GET /v1/vendor/skus/:sku_id/transactions, the
// newest-first movement log for one of the vendor's SKUs.
func (h *VendorInventoryHandler) Transactions(c echo.Context) error {
	vendorID, err := getVendorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	skuID, err := pathID(c, "sku_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid sku id"})
	}
	entries, err := h.StockRepo.ListBySKU(c.Request().Context(), skuID, vendorID, 200)
	if err != nil {
		return repoError(c, err)
	}
	out := make([]echo.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, echo.Map{
			"id":         e.ID,
			"type":       e.Type,
			"quantity":   e.Quantity,
			"reference":  e.Reference,
			"note":       e.Note,
			"created_at": e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"sku_id": skuID, "transactions": out})
}
