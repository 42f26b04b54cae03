package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-checkout/internal/model"
	"github.com/iliyamo/marketplace-checkout/internal/queue"
	"github.com/iliyamo/marketplace-checkout/internal/repository"
	queue_publisher "github.com/iliyamo/marketplace-checkout/internal/service"
)

// OrderHandler serves order views for customers and fulfillment
// updates for vendors.
type OrderHandler struct {
	OrderRepo *repository.OrderRepo
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(orderRepo *repository.OrderRepo) *OrderHandler {
	if orderRepo == nil {
		panic("nil repository passed to NewOrderHandler")
	}
	return &OrderHandler{OrderRepo: orderRepo}
}

// ListMine handles GET /v1/orders. Returns the authenticated user's
// order headers, newest first.
func (h *OrderHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.OrderRepo.ListByUser(c.Request().Context(), userID, 100)
	if err != nil {
		return repoError(c, err)
	}
	out := make([]echo.Map, 0, len(orders))
	for _, o := range orders {
		out = append(out, echo.Map{
			"order_id":       o.ID,
			"status":         o.Status,
			"payment_method": o.PaymentMethod,
			"total_cents":    o.TotalCents,
			"currency":       o.Currency,
			"created_at":     o.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": out})
}

// GetMine handles GET /v1/orders/:id with the full vendor-order and
// item breakdown. The order must belong to the caller.
func (h *OrderHandler) GetMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	o, err := h.OrderRepo.GetByID(c.Request().Context(), orderID, &userID)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, orderDetail(o))
}

func orderDetail(o *model.Order) echo.Map {
	vos := make([]echo.Map, 0, len(o.VendorOrders))
	for _, vo := range o.VendorOrders {
		items := make([]echo.Map, 0, len(vo.Items))
		for _, it := range vo.Items {
			items = append(items, echo.Map{
				"sku_code":         it.SKUCode,
				"product_name":     it.ProductName,
				"quantity":         it.Quantity,
				"unit_price_cents": it.UnitPriceCents,
			})
		}
		vos = append(vos, echo.Map{
			"id":          vo.ID,
			"vendor_id":   vo.VendorID,
			"status":      vo.Status,
			"total_cents": vo.TotalCents,
			"items":       items,
		})
	}
	return echo.Map{
		"order_id":        o.ID,
		"status":          o.Status,
		"payment_method":  o.PaymentMethod,
		"subtotal_cents":  o.SubtotalCents,
		"discount_cents":  o.DiscountCents,
		"total_cents":     o.TotalCents,
		"currency":        o.Currency,
		"created_at":      o.CreatedAt,
		"vendor_orders":   vos,
	}
}

// Receipt handles GET /v1/orders/:id/receipt: a flat printable
// summary of the order, one row per item across all vendor
// suborders. Prices come from the item snapshots, so the receipt
// stays stable even if the catalog changes later.
func (h *OrderHandler) Receipt(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	o, err := h.OrderRepo.GetByID(c.Request().Context(), orderID, &userID)
	if err != nil {
		return repoError(c, err)
	}

	items := make([]echo.Map, 0)
	for _, vo := range o.VendorOrders {
		for _, it := range vo.Items {
			items = append(items, echo.Map{
				"product_name":     it.ProductName,
				"sku_code":         it.SKUCode,
				"quantity":         it.Quantity,
				"unit_price_cents": it.UnitPriceCents,
				"total_cents":      it.Quantity * it.UnitPriceCents,
				"vendor_id":        vo.VendorID,
			})
		}
	}
	customer := echo.Map{}
	if o.IsGuest {
		customer["name"] = o.GuestName
		customer["email"] = o.GuestEmail
	} else if o.UserID != nil {
		customer["user_id"] = *o.UserID
	}
	return c.JSON(http.StatusOK, echo.Map{
		"receipt_id":       o.ID,
		"date":             o.CreatedAt,
		"customer":         customer,
		"payment_method":   o.PaymentMethod,
		"shipping_address": o.ShippingAddress,
		"items":            items,
		"subtotal_cents":   o.SubtotalCents,
		"discount_cents":   o.DiscountCents,
		"total_cents":      o.TotalCents,
		"currency":         strings.ToUpper(o.Currency),
		"status":           o.Status,
	})
}

// ListVendorOrders handles GET /v1/vendor/orders for the vendor
// dashboard.
func (h *OrderHandler) ListVendorOrders(c echo.Context) error {
	vendorID, err := getVendorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	vos, err := h.OrderRepo.VendorOrdersForVendor(c.Request().Context(), vendorID, 100)
	if err != nil {
		return repoError(c, err)
	}
	out := make([]echo.Map, 0, len(vos))
	for _, vo := range vos {
		out = append(out, echo.Map{
			"id":          vo.ID,
			"order_id":    vo.OrderID,
			"status":      vo.Status,
			"total_cents": vo.TotalCents,
			"created_at":  vo.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"vendor_orders": out})
}

// UpdateVendorOrderStatus handles PATCH /v1/vendor/orders/:id/status.
// Only forward transitions are allowed; skipping a step or touching a
// terminal suborder returns 409. A successful move publishes an
// order.status_changed event, best effort.
func (h *OrderHandler) UpdateVendorOrderStatus(c echo.Context) error {
	vendorID, err := getVendorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	vendorOrderID := c.Param("id")
	if vendorOrderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vendor order id"})
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil || body.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
	}

	orderID, err := h.OrderRepo.UpdateVendorOrderStatus(c.Request().Context(), vendorOrderID, vendorID, body.Status)
	if err != nil {
		return repoError(c, err)
	}

	_ = queue_publisher.PublishOrderStatusChanged(c.Request().Context(), queue.OrderStatusChangedEvent{
		OrderID:       orderID,
		VendorOrderID: vendorOrderID,
		VendorID:      vendorID,
		Status:        body.Status,
		ChangedAt:     time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"id":       vendorOrderID,
		"order_id": orderID,
		"status":   body.Status,
	})
}
