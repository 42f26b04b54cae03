package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-checkout/internal/checkout"
	"github.com/iliyamo/marketplace-checkout/internal/model"
)

// CheckoutHandler exposes the settlement flow for registered shoppers
// and guests. The heavy lifting lives in checkout.Service; here we
// only bind, validate shape, and map errors to status codes.
type CheckoutHandler struct {
	Svc *checkout.Service
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(svc *checkout.Service) *CheckoutHandler {
	if svc == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Svc: svc}
}

type orderResponse struct {
	OrderID        string             `json:"order_id"`
	Status         string             `json:"status"`
	SubtotalCents  int64              `json:"subtotal_cents"`
	DiscountCents  int64              `json:"discount_cents"`
	TotalCents     int64              `json:"total_cents"`
	Currency       string             `json:"currency"`
	CouponApplied  bool               `json:"coupon_applied"`
	PaymentPending bool               `json:"payment_pending,omitempty"`
	ClientSecret   string             `json:"client_secret,omitempty"`
	VendorOrders   []vendorOrderBrief `json:"vendor_orders"`
}

type vendorOrderBrief struct {
	ID         string `json:"id"`
	VendorID   uint64 `json:"vendor_id"`
	Status     string `json:"status"`
	TotalCents int64  `json:"total_cents"`
}

func checkoutResponse(res *checkout.Result) orderResponse {
	out := orderResponse{
		OrderID:        res.Order.ID,
		Status:         res.Order.Status,
		SubtotalCents:  res.Order.SubtotalCents,
		DiscountCents:  res.Order.DiscountCents,
		TotalCents:     res.Order.TotalCents,
		Currency:       res.Order.Currency,
		CouponApplied:  res.CouponApplied,
		PaymentPending: res.PaymentPending,
		ClientSecret:   res.ClientSecret,
	}
	for _, vo := range res.Order.VendorOrders {
		out.VendorOrders = append(out.VendorOrders, vendorOrderBrief{
			ID: vo.ID, VendorID: vo.VendorID, Status: vo.Status, TotalCents: vo.TotalCents,
		})
	}
	return out
}

func checkoutError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, checkout.ErrCartEmpty):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cart is empty"})
	case errors.Is(err, checkout.ErrInvalidPaymentMethod):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment method"})
	case errors.Is(err, checkout.ErrLineInactive):
		return c.JSON(http.StatusConflict, echo.Map{"error": "sku no longer available"})
	default:
		return repoError(c, err)
	}
}

// Checkout handles POST /v1/checkout for an authenticated shopper.
// The cart's lines become the order; an invalid or exhausted coupon
// code never fails the request, the response just reports
// coupon_applied=false.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		CouponCode      string          `json:"coupon_code"`
		PaymentMethod   string          `json:"payment_method"`
		ShippingAddress json.RawMessage `json:"shipping_address"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PaymentMethod == "" {
		body.PaymentMethod = model.PaymentStripe
	}

	res, err := h.Svc.Checkout(c.Request().Context(), checkout.Input{
		UserID:          &userID,
		CouponCode:      body.CouponCode,
		PaymentMethod:   body.PaymentMethod,
		ShippingAddress: body.ShippingAddress,
	})
	if err != nil {
		return checkoutError(c, err)
	}
	return c.JSON(http.StatusCreated, checkoutResponse(res))
}

// GuestCheckout handles POST /v1/checkout/guest. Guests carry their
// lines in the request body instead of a cart; no reservations are
// involved, availability is checked once under lock at commit time.
func (h *CheckoutHandler) GuestCheckout(c echo.Context) error {
	var body struct {
		Email           string          `json:"email"`
		Name            string          `json:"name"`
		Phone           string          `json:"phone"`
		CouponCode      string          `json:"coupon_code"`
		PaymentMethod   string          `json:"payment_method"`
		ShippingAddress json.RawMessage `json:"shipping_address"`
		Items           []struct {
			SKUID    uint64 `json:"sku_id"`
			Quantity int64  `json:"quantity"`
		} `json:"items"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}
	if len(body.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "items is required"})
	}
	if body.PaymentMethod == "" {
		body.PaymentMethod = model.PaymentStripe
	}

	in := checkout.Input{
		Guest:           &checkout.GuestInfo{Email: body.Email, Name: body.Name, Phone: body.Phone},
		CouponCode:      body.CouponCode,
		PaymentMethod:   body.PaymentMethod,
		ShippingAddress: body.ShippingAddress,
	}
	for _, it := range body.Items {
		in.Lines = append(in.Lines, checkout.GuestLine{SKUID: it.SKUID, Quantity: it.Quantity})
	}

	res, err := h.Svc.Checkout(c.Request().Context(), in)
	if err != nil {
		return checkoutError(c, err)
	}
	return c.JSON(http.StatusCreated, checkoutResponse(res))
}
