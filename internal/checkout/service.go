// Package checkout orchestrates the settlement flow: it turns a cart
// (or a guest's transient lines) into a priced, committed order, then
// arranges payment and notification. All inventory and money
// decisions happen inside the repositories' single commit
// transaction; this package sequences them and handles the
// surrounding best-effort work.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/marketplace-checkout/internal/model"
	"github.com/iliyamo/marketplace-checkout/internal/payments"
	"github.com/iliyamo/marketplace-checkout/internal/pricing"
	"github.com/iliyamo/marketplace-checkout/internal/queue"
	"github.com/iliyamo/marketplace-checkout/internal/repository"
)

// ErrCartEmpty is returned when a registered checkout finds no lines
// in the cart, or a guest checkout supplies none.
var ErrCartEmpty = errors.New("cart is empty")

// ErrInvalidPaymentMethod is returned for a payment method outside
// the supported set.
var ErrInvalidPaymentMethod = errors.New("invalid payment method")

// ErrLineInactive is returned when a line references a SKU that was
// deactivated after it entered the cart.
var ErrLineInactive = errors.New("sku no longer available")

// CatalogStore resolves SKUs for guest lines.
type CatalogStore interface {
	GetPriced(ctx context.Context, id uint64) (*repository.PricedSKU, error)
}

// CartStore supplies a registered shopper's cart and its joined lines.
type CartStore interface {
	GetOrCreate(ctx context.Context, userID uint64) (*model.Cart, error)
	Lines(ctx context.Context, cartID uint64) ([]repository.CartLine, error)
}

// CouponStore resolves coupon codes at pricing time. Redemption
// happens later, inside the commit transaction.
type CouponStore interface {
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
}

// DiscountStore supplies vendors' bulk discount tiers.
type DiscountStore interface {
	TiersForVendors(ctx context.Context, vendorIDs []uint64) (map[uint64][]model.BulkDiscount, error)
}

// OrderStore owns the commit transaction and post-commit updates.
type OrderStore interface {
	CommitCheckout(ctx context.Context, in repository.CommitInput) (*model.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID, intentID string) error
}

// Notifier publishes domain events after the commit. Failures are
// logged and ignored; the order stands either way.
type Notifier interface {
	OrderPlaced(ctx context.Context, ev queue.OrderPlacedEvent) error
}

// GuestInfo identifies a shopper checking out without an account.
type GuestInfo struct {
	Email string
	Name  string
	Phone string
}

// GuestLine is one transient line of a guest checkout.
type GuestLine struct {
	SKUID    uint64
	Quantity int64
}

// Input is one checkout attempt. Exactly one of UserID and Guest is
// set; Lines is used only for guest checkouts, registered shoppers
// check out their cart.
type Input struct {
	UserID          *uint64
	Guest           *GuestInfo
	Lines           []GuestLine
	CouponCode      string
	PaymentMethod   string
	Currency        string
	ShippingAddress json.RawMessage
}

// Result is the committed order plus what the frontend needs next.
// ClientSecret is set only for stripe orders whose intent was
// created; PaymentPending reports that intent creation failed and
// payment must be retried out of band.
type Result struct {
	Order          *model.Order
	CouponApplied  bool
	ClientSecret   string
	PaymentPending bool
}

// Service wires the stores together. Construct with NewService.
type Service struct {
	catalog   CatalogStore
	carts     CartStore
	coupons   CouponStore
	discounts DiscountStore
	orders    OrderStore
	gateway   payments.Gateway
	notifier  Notifier
}

// NewService returns a checkout service over the given stores.
// Gateway and notifier may be nil; stripe orders then commit as
// payment-pending and events are skipped.
func NewService(catalog CatalogStore, carts CartStore, coupons CouponStore, discounts DiscountStore, orders OrderStore, gateway payments.Gateway, notifier Notifier) *Service {
	return &Service{
		catalog:   catalog,
		carts:     carts,
		coupons:   coupons,
		discounts: discounts,
		orders:    orders,
		gateway:   gateway,
		notifier:  notifier,
	}
}

// Checkout runs the whole flow. Pricing is computed outside any
// transaction from captured unit prices and current tiers; the commit
// re-verifies availability under lock, so a price quote can survive a
// lost coupon race (totals fall back) but never a stock shortage
// (the commit fails with *inventory.InsufficientStockError).
func (s *Service) Checkout(ctx context.Context, in Input) (*Result, error) {
	if !model.ValidPaymentMethod(in.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}
	currency := in.Currency
	if currency == "" {
		currency = "usd"
	}

	var (
		commitLines []repository.CommitLine
		priceLines  []pricing.Line
		cartID      uint64
		userID      uint64
	)
	switch {
	case in.UserID != nil:
		userID = *in.UserID
		cart, err := s.carts.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, err
		}
		cartID = cart.ID
		lines, err := s.carts.Lines(ctx, cartID)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			if !l.SKUActive {
				return nil, ErrLineInactive
			}
			commitLines = append(commitLines, repository.CommitLine{
				SKUID:          l.Item.SKUID,
				VendorID:       l.VendorID,
				ProductID:      l.ProductID,
				SKUCode:        l.SKUCode,
				ProductName:    l.ProductName,
				Quantity:       l.Item.Quantity,
				UnitPriceCents: l.Item.UnitPriceCents,
			})
		}
	case in.Guest != nil:
		// Guest payloads may repeat a SKU across lines. Coalesce them
		// before the commit: availability is re-verified per line under
		// lock, so split lines for the same SKU would each pass the
		// check individually while their sum oversells the pool.
		quantities := make(map[uint64]int64)
		var skuOrder []uint64
		for _, gl := range in.Lines {
			if gl.Quantity <= 0 {
				continue
			}
			if _, seen := quantities[gl.SKUID]; !seen {
				skuOrder = append(skuOrder, gl.SKUID)
			}
			quantities[gl.SKUID] += gl.Quantity
		}
		for _, skuID := range skuOrder {
			ps, err := s.catalog.GetPriced(ctx, skuID)
			if err != nil {
				return nil, err
			}
			if !ps.SKU.IsActive {
				return nil, ErrLineInactive
			}
			commitLines = append(commitLines, repository.CommitLine{
				SKUID:          ps.SKU.ID,
				VendorID:       ps.SKU.VendorID,
				ProductID:      ps.SKU.ProductID,
				SKUCode:        ps.SKU.SKUCode,
				ProductName:    ps.ProductName,
				Quantity:       quantities[skuID],
				UnitPriceCents: ps.UnitPriceCents,
			})
		}
	default:
		return nil, ErrCartEmpty
	}
	if len(commitLines) == 0 {
		return nil, ErrCartEmpty
	}

	vendorSet := make(map[uint64]bool)
	var vendorIDs []uint64
	for _, cl := range commitLines {
		priceLines = append(priceLines, pricing.Line{
			SKUID:          cl.SKUID,
			VendorID:       cl.VendorID,
			Quantity:       cl.Quantity,
			UnitPriceCents: cl.UnitPriceCents,
		})
		if !vendorSet[cl.VendorID] {
			vendorSet[cl.VendorID] = true
			vendorIDs = append(vendorIDs, cl.VendorID)
		}
	}
	tiers, err := s.discounts.TiersForVendors(ctx, vendorIDs)
	if err != nil {
		return nil, err
	}

	// An unknown code prices the same as no code at all.
	var coupon *model.Coupon
	if in.CouponCode != "" {
		c, err := s.coupons.GetByCode(ctx, in.CouponCode)
		switch {
		case err == nil:
			coupon = c
		case errors.Is(err, repository.ErrNotFound):
		default:
			return nil, err
		}
	}

	quote := pricing.Price(priceLines, tiers, coupon, time.Now().UTC())
	for i := range commitLines {
		commitLines[i].UnitPriceCents = quote.Lines[i].FinalUnitPriceCents
	}

	order := &model.Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		IsGuest:         in.Guest != nil,
		PaymentMethod:   in.PaymentMethod,
		SubtotalCents:   quote.SubtotalCents,
		Currency:        currency,
		ShippingAddress: in.ShippingAddress,
	}
	if in.Guest != nil {
		order.GuestEmail = in.Guest.Email
		order.GuestName = in.Guest.Name
		order.GuestPhone = in.Guest.Phone
	}
	ci := repository.CommitInput{
		Order:  order,
		Lines:  commitLines,
		UserID: userID,
		CartID: cartID,
	}
	if quote.CouponApplied && coupon != nil {
		ci.Coupon = &repository.CouponCharge{CouponID: coupon.ID, DiscountCents: quote.DiscountCents}
	}

	committed, err := s.orders.CommitCheckout(ctx, ci)
	if err != nil {
		return nil, err
	}

	res := &Result{Order: committed, CouponApplied: committed.CouponID != nil}

	if in.PaymentMethod == model.PaymentStripe {
		if s.gateway == nil {
			res.PaymentPending = true
		} else if intent, err := s.gateway.CreateIntent(ctx, committed.ID, committed.TotalCents, currency); err != nil {
			// The order stands; payment is retried out of band.
			log.Printf("checkout: create payment intent for order %s failed: %v", committed.ID, err)
			res.PaymentPending = true
		} else {
			committed.PaymentIntentID = intent.ID
			res.ClientSecret = intent.ClientSecret
			if err := s.orders.AttachPaymentIntent(ctx, committed.ID, intent.ID); err != nil {
				log.Printf("checkout: attach payment intent for order %s failed: %v", committed.ID, err)
			}
		}
	}

	if s.notifier != nil {
		var items int64
		for _, cl := range commitLines {
			items += cl.Quantity
		}
		ev := queue.OrderPlacedEvent{
			OrderID:       committed.ID,
			UserID:        committed.UserID,
			IsGuest:       committed.IsGuest,
			PaymentMethod: committed.PaymentMethod,
			VendorIDs:     vendorIDs,
			ItemCount:     items,
			SubtotalCents: committed.SubtotalCents,
			DiscountCents: committed.DiscountCents,
			TotalCents:    committed.TotalCents,
			Currency:      committed.Currency,
			PlacedAt:      committed.CreatedAt.Format(time.RFC3339),
		}
		if err := s.notifier.OrderPlaced(ctx, ev); err != nil {
			log.Printf("checkout: publish order.placed for order %s failed: %v", committed.ID, err)
		}
	}

	return res, nil
}
