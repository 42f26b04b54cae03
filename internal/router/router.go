package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/marketplace-checkout/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/marketplace-checkout/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.
func RegisterRoutes(e *echo.Echo) {
	// Health check for load balancers and monitoring systems.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated endpoints: guest checkout,
// the coupon validity preview and the Stripe webhook. The webhook
// authenticates itself through its signature, not a JWT.
func RegisterPublic(e *echo.Echo, co *handler.CheckoutHandler, cp *handler.CouponHandler, wh *handler.WebhookHandler) {
	e.POST("/v1/checkout/guest", co.GuestCheckout)
	e.POST("/v1/coupons/validate", cp.Validate)
	e.POST("/v1/payments/webhook", wh.HandleStripe)
}

// RegisterCustomer registers the authenticated shopper surface: cart
// manipulation, checkout and order views. All routes require a valid
// access token with the CUSTOMER role.
func RegisterCustomer(e *echo.Echo, jwtSecret string, cart *handler.CartHandler, co *handler.CheckoutHandler, ord *handler.OrderHandler) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("CUSTOMER", "ADMIN"))

	g.GET("/cart", cart.Get)
	g.POST("/cart/add_item", cart.AddItem)
	g.POST("/cart/update_item", cart.UpdateItem)
	g.POST("/cart/remove_item", cart.RemoveItem)
	g.POST("/cart/clear", cart.Clear)

	g.POST("/checkout", co.Checkout)

	g.GET("/orders", ord.ListMine)
	g.GET("/orders/:id", ord.GetMine)
	g.GET("/orders/:id/receipt", ord.Receipt)
}

// RegisterVendor registers the vendor surface: the inventory ledger
// endpoints and suborder fulfillment. Requires the VENDOR role; the
// vendor_id claim scopes every operation to the caller's own rows.
func RegisterVendor(e *echo.Echo, jwtSecret string, inv *handler.VendorInventoryHandler, ord *handler.OrderHandler) {
	g := e.Group("/v1/vendor")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("VENDOR"))

	g.POST("/skus/:sku_id/restock", inv.Restock)
	g.POST("/skus/:sku_id/adjust", inv.Adjust)
	g.GET("/skus/:sku_id/transactions", inv.Transactions)

	g.GET("/orders", ord.ListVendorOrders)
	g.PATCH("/orders/:id/status", ord.UpdateVendorOrderStatus)
}

// RegisterAdmin registers administrative endpoints, currently coupon
// creation.
func RegisterAdmin(e *echo.Echo, jwtSecret string, cp *handler.CouponHandler) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))

	g.POST("/coupons", cp.Create)
}
