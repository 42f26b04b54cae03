package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-checkout/internal/model"
	"github.com/iliyamo/marketplace-checkout/internal/pricing"
	"github.com/iliyamo/marketplace-checkout/internal/repository"
)

// CouponHandler serves admin coupon creation and the public validity
// preview used by cart pages. The preview is advisory: the final
// discount is decided again inside the checkout commit.
type CouponHandler struct {
	CouponRepo *repository.CouponRepo
}

// NewCouponHandler constructs a CouponHandler.
func NewCouponHandler(couponRepo *repository.CouponRepo) *CouponHandler {
	if couponRepo == nil {
		panic("nil repository passed to NewCouponHandler")
	}
	return &CouponHandler{CouponRepo: couponRepo}
}

// Create handles POST /v1/admin/coupons. Discount values are basis
// points for percentage coupons and cents for fixed ones.
func (h *CouponHandler) Create(c echo.Context) error {
	var body struct {
		Code             string    `json:"code"`
		DiscountType     string    `json:"discount_type"`
		DiscountValue    int64     `json:"discount_value"`
		MinPurchaseCents int64     `json:"min_purchase_cents"`
		StartsAt         time.Time `json:"starts_at"`
		EndsAt           time.Time `json:"ends_at"`
		MaxUses          int64     `json:"max_uses"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}
	if body.DiscountType != model.DiscountPercentage && body.DiscountType != model.DiscountFixed {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid discount_type"})
	}
	if body.DiscountValue <= 0 || (body.DiscountType == model.DiscountPercentage && body.DiscountValue > 10000) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid discount_value"})
	}
	if !body.EndsAt.After(body.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	if body.MaxUses <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_uses must be positive"})
	}

	coupon, err := h.CouponRepo.Create(c.Request().Context(), &model.Coupon{
		Code:             body.Code,
		DiscountType:     body.DiscountType,
		DiscountValue:    body.DiscountValue,
		MinPurchaseCents: body.MinPurchaseCents,
		StartsAt:         body.StartsAt.UTC(),
		EndsAt:           body.EndsAt.UTC(),
		MaxUses:          body.MaxUses,
		IsActive:         true,
	})
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":   coupon.ID,
		"code": coupon.Code,
	})
}

// Validate handles POST /v1/coupons/validate. Given a code and a
// subtotal it reports whether the coupon would currently apply and
// the discount it would grant. Unknown codes answer valid=false with
// 200, not 404, so the cart page can poll as the shopper types.
func (h *CouponHandler) Validate(c echo.Context) error {
	var body struct {
		Code          string `json:"code"`
		SubtotalCents int64  `json:"subtotal_cents"`
	}
	if err := c.Bind(&body); err != nil || body.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	coupon, err := h.CouponRepo.GetByCode(c.Request().Context(), body.Code)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"valid": false})
	}
	if err != nil {
		return repoError(c, err)
	}

	now := time.Now().UTC()
	if !coupon.ValidAt(now) || body.SubtotalCents < coupon.MinPurchaseCents {
		return c.JSON(http.StatusOK, echo.Map{"valid": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":          true,
		"discount_cents": pricing.CouponDiscount(coupon, body.SubtotalCents),
	})
}
