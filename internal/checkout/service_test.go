package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-checkout/internal/inventory"
	"github.com/iliyamo/marketplace-checkout/internal/model"
	"github.com/iliyamo/marketplace-checkout/internal/payments"
	"github.com/iliyamo/marketplace-checkout/internal/queue"
	"github.com/iliyamo/marketplace-checkout/internal/repository"
	"github.com/iliyamo/marketplace-checkout/internal/sweeper"
)

var errInjected = errors.New("injected failure")

type resKey struct {
	sku, user, cart uint64
}

// memStore is an in-memory implementation of every store interface
// the service uses. It enforces the same policies as the SQL
// repositories: availability under a single lock, conditional coupon
// redemption, all-or-nothing commits via snapshot rollback.
type memStore struct {
	mu           sync.Mutex
	skus         map[uint64]*repository.PricedSKU
	reservations map[resKey]*model.Reservation
	coupons      map[string]*model.Coupon
	tiers        map[uint64][]model.BulkDiscount
	carts        map[uint64]*model.Cart
	cartLines    map[uint64][]repository.CartLine
	orders       map[string]*model.Order
	ledger       map[uint64][]model.InventoryTransaction
	nextCartID   uint64

	failLedger bool // inject a failure mid-commit
}

func newMemStore() *memStore {
	return &memStore{
		skus:         make(map[uint64]*repository.PricedSKU),
		reservations: make(map[resKey]*model.Reservation),
		coupons:      make(map[string]*model.Coupon),
		tiers:        make(map[uint64][]model.BulkDiscount),
		carts:        make(map[uint64]*model.Cart),
		cartLines:    make(map[uint64][]repository.CartLine),
		orders:       make(map[string]*model.Order),
		ledger:       make(map[uint64][]model.InventoryTransaction),
	}
}

func (m *memStore) addSKU(id, vendorID uint64, stock, unitCents int64, name string) {
	m.skus[id] = &repository.PricedSKU{
		SKU: model.SKU{
			ID: id, ProductID: id, VendorID: vendorID,
			SKUCode: name, StockQuantity: stock, IsActive: true,
		},
		ProductName:    name,
		UnitPriceCents: unitCents,
	}
	m.ledger[id] = []model.InventoryTransaction{{SKUID: id, Type: model.TxPurchase, Quantity: stock}}
}

func (m *memStore) addCart(userID uint64, lines ...repository.CartLine) uint64 {
	m.nextCartID++
	id := m.nextCartID
	m.carts[userID] = &model.Cart{ID: id, UserID: userID}
	m.cartLines[id] = lines
	return id
}

func (m *memStore) cartLine(skuID uint64, qty int64) repository.CartLine {
	ps := m.skus[skuID]
	return repository.CartLine{
		Item:        model.CartItem{SKUID: skuID, Quantity: qty, UnitPriceCents: ps.UnitPriceCents},
		VendorID:    ps.SKU.VendorID,
		ProductID:   ps.SKU.ProductID,
		SKUCode:     ps.SKU.SKUCode,
		ProductName: ps.ProductName,
		SKUActive:   ps.SKU.IsActive,
	}
}

func (m *memStore) GetPriced(_ context.Context, id uint64) (*repository.PricedSKU, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.skus[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ps, nil
}

func (m *memStore) GetOrCreate(_ context.Context, userID uint64) (*model.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	m.nextCartID++
	c := &model.Cart{ID: m.nextCartID, UserID: userID}
	m.carts[userID] = c
	return c, nil
}

func (m *memStore) Lines(_ context.Context, cartID uint64) ([]repository.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.CartLine(nil), m.cartLines[cartID]...), nil
}

func (m *memStore) GetByCode(_ context.Context, code string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) TiersForVendors(_ context.Context, vendorIDs []uint64) (map[uint64][]model.BulkDiscount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint64][]model.BulkDiscount)
	for _, id := range vendorIDs {
		if ts, ok := m.tiers[id]; ok {
			out[id] = ts
		}
	}
	return out, nil
}

func (m *memStore) activeReservedLocked(skuID, excludeUser, excludeCart uint64, now time.Time) int64 {
	var sum int64
	for k, r := range m.reservations {
		if k.sku != skuID || r.Status != model.ReservationActive || !r.ExpiresAt.After(now) {
			continue
		}
		if k.user == excludeUser && k.cart == excludeCart {
			continue
		}
		sum += r.Quantity
	}
	return sum
}

// Hold mirrors ReservationRepo.Hold: lock, check availability
// excluding the caller's own hold, then upsert.
func (m *memStore) Hold(skuID, userID, cartID uint64, qty int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	ps, ok := m.skus[skuID]
	if !ok {
		return repository.ErrNotFound
	}
	reserved := m.activeReservedLocked(skuID, userID, cartID, now)
	if err := inventory.CheckHold(skuID, ps.SKU.StockQuantity, reserved, 0, qty); err != nil {
		return err
	}
	m.reservations[resKey{skuID, userID, cartID}] = &model.Reservation{
		SKUID: skuID, UserID: userID, CartID: cartID, Quantity: qty,
		ExpiresAt: now.Add(ttl), Status: model.ReservationActive,
	}
	return nil
}

// SweepExpired mirrors ReservationRepo.SweepExpired: a conditional
// flip of expired active holds to released.
func (m *memStore) SweepExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, r := range m.reservations {
		if r.Status == model.ReservationActive && !r.ExpiresAt.After(now) {
			r.Status = model.ReservationReleased
			n++
		}
	}
	return n, nil
}

func (m *memStore) holdStatus(skuID, userID, cartID uint64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[resKey{skuID, userID, cartID}]
	if !ok {
		return ""
	}
	return r.Status
}

type snapshot struct {
	stock   map[uint64]int64
	uses    map[string]int64
	status  map[resKey]string
	lines   map[uint64][]repository.CartLine
	ledgerN map[uint64]int
}

func (m *memStore) snapshotLocked() snapshot {
	s := snapshot{
		stock:   make(map[uint64]int64),
		uses:    make(map[string]int64),
		status:  make(map[resKey]string),
		lines:   make(map[uint64][]repository.CartLine),
		ledgerN: make(map[uint64]int),
	}
	for id, ps := range m.skus {
		s.stock[id] = ps.SKU.StockQuantity
		s.ledgerN[id] = len(m.ledger[id])
	}
	for code, c := range m.coupons {
		s.uses[code] = c.CurrentUses
	}
	for k, r := range m.reservations {
		s.status[k] = r.Status
	}
	for id, ls := range m.cartLines {
		s.lines[id] = ls
	}
	return s
}

func (m *memStore) restoreLocked(s snapshot) {
	for id, q := range s.stock {
		m.skus[id].SKU.StockQuantity = q
		m.ledger[id] = m.ledger[id][:s.ledgerN[id]]
	}
	for code, n := range s.uses {
		m.coupons[code].CurrentUses = n
	}
	for k, st := range s.status {
		m.reservations[k].Status = st
	}
	for id, ls := range s.lines {
		m.cartLines[id] = ls
	}
}

func (m *memStore) CommitCheckout(_ context.Context, in repository.CommitInput) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()

	want := make(map[uint64]int64)
	var skuSeq []uint64
	for _, l := range in.Lines {
		if _, seen := want[l.SKUID]; !seen {
			skuSeq = append(skuSeq, l.SKUID)
		}
		want[l.SKUID] += l.Quantity
	}
	for _, skuID := range skuSeq {
		ps, ok := m.skus[skuID]
		if !ok || !ps.SKU.IsActive {
			return nil, repository.ErrNotFound
		}
		reserved := m.activeReservedLocked(skuID, in.UserID, in.CartID, now)
		if err := inventory.CheckHold(skuID, ps.SKU.StockQuantity, reserved, 0, want[skuID]); err != nil {
			return nil, err
		}
	}

	snap := m.snapshotLocked()
	order := in.Order
	order.CreatedAt = now
	order.Status = model.OrderPending
	order.DiscountCents = 0
	order.CouponID = nil
	if in.Coupon != nil {
		for _, c := range m.coupons {
			if c.ID == in.Coupon.CouponID {
				if c.ValidAt(now) {
					c.CurrentUses++
					order.DiscountCents = in.Coupon.DiscountCents
					id := c.ID
					order.CouponID = &id
				}
				break
			}
		}
	}
	order.TotalCents = order.SubtotalCents - order.DiscountCents

	vendorTotals := make(map[uint64]int64)
	var vendorSeq []uint64
	for _, l := range in.Lines {
		ps := m.skus[l.SKUID]
		ps.SKU.StockQuantity -= l.Quantity
		if ps.SKU.StockQuantity < 0 {
			m.restoreLocked(snap)
			return nil, repository.ErrNegativeStock
		}
		m.ledger[l.SKUID] = append(m.ledger[l.SKUID], model.InventoryTransaction{
			SKUID: l.SKUID, Type: model.TxSale, Quantity: -l.Quantity, Reference: order.ID,
		})
		if m.failLedger {
			m.restoreLocked(snap)
			return nil, errInjected
		}
		if in.CartID != 0 {
			if r, ok := m.reservations[resKey{l.SKUID, in.UserID, in.CartID}]; ok && r.Status == model.ReservationActive {
				r.Status = model.ReservationConverted
			}
		}
		if _, ok := vendorTotals[l.VendorID]; !ok {
			vendorSeq = append(vendorSeq, l.VendorID)
		}
		vendorTotals[l.VendorID] += l.UnitPriceCents * l.Quantity
	}

	order.VendorOrders = nil
	for _, vid := range vendorSeq {
		order.VendorOrders = append(order.VendorOrders, model.VendorOrder{
			OrderID: order.ID, VendorID: vid, Status: model.OrderPending,
			TotalCents: vendorTotals[vid], CreatedAt: now,
		})
	}
	if in.CartID != 0 {
		m.cartLines[in.CartID] = nil
	}
	m.orders[order.ID] = order
	return order, nil
}

func (m *memStore) AttachPaymentIntent(_ context.Context, orderID, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	o.PaymentIntentID = intentID
	return nil
}

func (m *memStore) stockOf(skuID uint64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.skus[skuID].SKU.StockQuantity
}

func (m *memStore) ledgerSum(skuID uint64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.ledger[skuID] {
		sum += e.Quantity
	}
	return sum
}

type fakeGateway struct {
	fail    bool
	created []string
}

func (g *fakeGateway) CreateIntent(_ context.Context, orderID string, amountCents int64, currency string) (*payments.Intent, error) {
	if g.fail {
		return nil, errors.New("gateway down")
	}
	g.created = append(g.created, orderID)
	return &payments.Intent{ID: "pi_" + orderID, ClientSecret: "cs_" + orderID}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	placed []queue.OrderPlacedEvent
}

func (n *fakeNotifier) OrderPlaced(_ context.Context, ev queue.OrderPlacedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, ev)
	return nil
}

func newService(m *memStore, gw payments.Gateway, n Notifier) *Service {
	return NewService(m, m, m, m, m, gw, n)
}

func validCoupon(id uint64, code string, bps, maxUses int64) *model.Coupon {
	now := time.Now().UTC()
	return &model.Coupon{
		ID: id, Code: code, DiscountType: model.DiscountPercentage,
		DiscountValue: bps, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
		MaxUses: maxUses, IsActive: true,
	}
}

func TestCheckoutRegisteredHappyPath(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 10, 5000, "SHIRT-M")
	m.addSKU(2, 8, 10, 2500, "MUG-BLUE")
	m.coupons["SAVE10"] = validCoupon(1, "SAVE10", 1000, 100)
	userID := uint64(42)
	cartID := m.addCart(userID, m.cartLine(1, 2), m.cartLine(2, 1))
	require.NoError(t, m.Hold(1, userID, cartID, 2, 15*time.Minute))
	require.NoError(t, m.Hold(2, userID, cartID, 1, 15*time.Minute))

	gw := &fakeGateway{}
	nf := &fakeNotifier{}
	svc := newService(m, gw, nf)

	res, err := svc.Checkout(context.Background(), Input{
		UserID:        &userID,
		CouponCode:    "SAVE10",
		PaymentMethod: model.PaymentStripe,
	})
	require.NoError(t, err)

	// subtotal 125.00, coupon 10% -> total 112.50
	assert.Equal(t, int64(12500), res.Order.SubtotalCents)
	assert.Equal(t, int64(1250), res.Order.DiscountCents)
	assert.Equal(t, int64(11250), res.Order.TotalCents)
	assert.True(t, res.CouponApplied)
	assert.Equal(t, model.OrderPending, res.Order.Status)

	require.Len(t, res.Order.VendorOrders, 2)
	assert.Equal(t, int64(10000), res.Order.VendorOrders[0].TotalCents)
	assert.Equal(t, int64(2500), res.Order.VendorOrders[1].TotalCents)

	assert.Equal(t, int64(8), m.stockOf(1))
	assert.Equal(t, int64(9), m.stockOf(2))
	assert.Equal(t, m.stockOf(1), m.ledgerSum(1))
	assert.Equal(t, m.stockOf(2), m.ledgerSum(2))

	assert.Empty(t, m.cartLines[cartID])
	assert.Equal(t, model.ReservationConverted, m.reservations[resKey{1, userID, cartID}].Status)

	assert.Equal(t, "cs_"+res.Order.ID, res.ClientSecret)
	assert.False(t, res.PaymentPending)
	require.Len(t, nf.placed, 1)
	assert.Equal(t, res.Order.ID, nf.placed[0].OrderID)
}

func TestCheckoutGuestLines(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 5, 1000, "SHIRT-M")
	svc := newService(m, &fakeGateway{}, &fakeNotifier{})

	res, err := svc.Checkout(context.Background(), Input{
		Guest:         &GuestInfo{Email: "g@example.com", Name: "G"},
		Lines:         []GuestLine{{SKUID: 1, Quantity: 2}},
		PaymentMethod: model.PaymentCOD,
	})
	require.NoError(t, err)

	assert.True(t, res.Order.IsGuest)
	assert.Nil(t, res.Order.UserID)
	assert.Equal(t, "g@example.com", res.Order.GuestEmail)
	assert.Equal(t, int64(2000), res.Order.TotalCents)
	assert.Equal(t, int64(3), m.stockOf(1))
	// COD: no payment intent
	assert.Empty(t, res.ClientSecret)
}

func TestCheckoutGuestDuplicateLinesMergeBySKU(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 10, 1000, "SHIRT-M")
	svc := newService(m, nil, &fakeNotifier{})

	res, err := svc.Checkout(context.Background(), Input{
		Guest:         &GuestInfo{Email: "g@example.com", Name: "G"},
		Lines:         []GuestLine{{SKUID: 1, Quantity: 2}, {SKUID: 1, Quantity: 3}},
		PaymentMethod: model.PaymentCOD,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), res.Order.SubtotalCents)
	assert.Equal(t, int64(5), m.stockOf(1))
	assert.Equal(t, int64(-5), m.ledgerSum(1))
	// Merged into a single sale, not one per submitted line.
	m.mu.Lock()
	assert.Len(t, m.ledger[1], 1)
	m.mu.Unlock()
}

func TestCheckoutGuestDuplicateLinesCannotEatHolds(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 10, 1000, "SHIRT-M")
	require.NoError(t, m.Hold(1, 99, 99, 5, 15*time.Minute))
	svc := newService(m, nil, &fakeNotifier{})

	// 4+4 of the same SKU: each slice alone fits the 5 available
	// units, but their sum would dig into the other shopper's hold.
	_, err := svc.Checkout(context.Background(), Input{
		Guest:         &GuestInfo{Email: "g@example.com", Name: "G"},
		Lines:         []GuestLine{{SKUID: 1, Quantity: 4}, {SKUID: 1, Quantity: 4}},
		PaymentMethod: model.PaymentCOD,
	})
	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(8), ise.Requested)
	assert.Equal(t, int64(5), ise.Available)

	assert.Equal(t, int64(10), m.stockOf(1))
	assert.Equal(t, int64(0), m.ledgerSum(1))
	assert.Empty(t, m.orders)
}

func TestCheckoutEmptyCart(t *testing.T) {
	m := newMemStore()
	userID := uint64(42)
	svc := newService(m, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{UserID: &userID, PaymentMethod: model.PaymentCOD})
	assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestCheckoutInvalidPaymentMethod(t *testing.T) {
	m := newMemStore()
	userID := uint64(42)
	svc := newService(m, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{UserID: &userID, PaymentMethod: "wire"})
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestCheckoutUnknownCouponIgnored(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 5, 1000, "SHIRT-M")
	userID := uint64(42)
	m.addCart(userID, m.cartLine(1, 1))
	svc := newService(m, nil, nil)

	res, err := svc.Checkout(context.Background(), Input{
		UserID: &userID, CouponCode: "NOSUCH", PaymentMethod: model.PaymentCOD,
	})
	require.NoError(t, err)
	assert.False(t, res.CouponApplied)
	assert.Equal(t, int64(1000), res.Order.TotalCents)
}

func TestCheckoutCouponCapFallsBackSilently(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 10, 1000, "SHIRT-M")
	m.coupons["ONCE"] = validCoupon(1, "ONCE", 1000, 1)
	svc := newService(m, nil, nil)

	u1, u2 := uint64(1), uint64(2)
	m.addCart(u1, m.cartLine(1, 1))
	m.addCart(u2, m.cartLine(1, 1))

	first, err := svc.Checkout(context.Background(), Input{UserID: &u1, CouponCode: "ONCE", PaymentMethod: model.PaymentCOD})
	require.NoError(t, err)
	assert.Equal(t, int64(900), first.Order.TotalCents)
	assert.True(t, first.CouponApplied)

	second, err := svc.Checkout(context.Background(), Input{UserID: &u2, CouponCode: "ONCE", PaymentMethod: model.PaymentCOD})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), second.Order.TotalCents)
	assert.False(t, second.CouponApplied)
}

func TestCheckoutInsufficientStockRollsBackEverything(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 1, 1000, "SHIRT-M")
	m.coupons["SAVE10"] = validCoupon(1, "SAVE10", 1000, 100)
	userID := uint64(42)
	cartID := m.addCart(userID, m.cartLine(1, 2))
	svc := newService(m, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{
		UserID: &userID, CouponCode: "SAVE10", PaymentMethod: model.PaymentCOD,
	})
	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(1), ise.Available)

	assert.Equal(t, int64(1), m.stockOf(1))
	assert.Equal(t, int64(0), m.coupons["SAVE10"].CurrentUses)
	assert.Len(t, m.cartLines[cartID], 1)
	assert.Empty(t, m.orders)
}

func TestCheckoutMidCommitFailureIsAtomic(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 5, 1000, "SHIRT-M")
	m.addSKU(2, 7, 5, 1000, "SHIRT-L")
	m.coupons["SAVE10"] = validCoupon(1, "SAVE10", 1000, 100)
	m.failLedger = true
	userID := uint64(42)
	cartID := m.addCart(userID, m.cartLine(1, 1), m.cartLine(2, 1))
	require.NoError(t, m.Hold(1, userID, cartID, 1, 15*time.Minute))
	svc := newService(m, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{
		UserID: &userID, CouponCode: "SAVE10", PaymentMethod: model.PaymentCOD,
	})
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, int64(5), m.stockOf(1))
	assert.Equal(t, int64(5), m.stockOf(2))
	assert.Equal(t, m.stockOf(1), m.ledgerSum(1))
	assert.Equal(t, int64(0), m.coupons["SAVE10"].CurrentUses)
	assert.Equal(t, model.ReservationActive, m.reservations[resKey{1, userID, cartID}].Status)
	assert.Len(t, m.cartLines[cartID], 2)
	assert.Empty(t, m.orders)
}

func TestCheckoutIntentFailureKeepsOrder(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 5, 1000, "SHIRT-M")
	userID := uint64(42)
	m.addCart(userID, m.cartLine(1, 1))
	svc := newService(m, &fakeGateway{fail: true}, nil)

	res, err := svc.Checkout(context.Background(), Input{UserID: &userID, PaymentMethod: model.PaymentStripe})
	require.NoError(t, err)

	assert.True(t, res.PaymentPending)
	assert.Empty(t, res.ClientSecret)
	assert.Len(t, m.orders, 1)
	assert.Equal(t, int64(4), m.stockOf(1))
}

func TestConcurrentHoldsNeverOversell(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 5, 1000, "SHIRT-M")

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			results <- m.Hold(1, user, user, 1, 15*time.Minute)
		}(uint64(i + 1))
	}
	wg.Wait()
	close(results)

	var ok, short int
	for err := range results {
		if err == nil {
			ok++
		} else {
			var ise *inventory.InsufficientStockError
			require.ErrorAs(t, err, &ise)
			short++
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, short)
}

func TestSweepReleasesExpiredHoldExactlyOnce(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 5, 1000, "SHIRT-M")
	// A negative TTL backdates the hold: its window has already
	// passed, but the row still sits in active status until swept.
	require.NoError(t, m.Hold(1, 1, 1, 5, -time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.New(m, 5*time.Millisecond).Run(ctx)

	assert.Eventually(t, func() bool {
		return m.holdStatus(1, 1, 1) == model.ReservationReleased
	}, time.Second, 5*time.Millisecond)
	cancel()

	// The pool is back to full: another shopper can hold all of it.
	require.NoError(t, m.Hold(1, 2, 2, 5, 15*time.Minute))

	// A released row is not swept again.
	n, err := m.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, model.ReservationReleased, m.holdStatus(1, 1, 1))
	assert.Equal(t, model.ReservationActive, m.holdStatus(1, 2, 2))
}

func TestConcurrentCheckoutsLastUnit(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 1, 1000, "SHIRT-M")
	svc := newService(m, nil, nil)

	u1, u2 := uint64(1), uint64(2)
	m.addCart(u1, m.cartLine(1, 1))
	m.addCart(u2, m.cartLine(1, 1))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []uint64{u1, u2} {
		wg.Add(1)
		go func(i int, u uint64) {
			defer wg.Done()
			_, errs[i] = svc.Checkout(context.Background(), Input{UserID: &u, PaymentMethod: model.PaymentCOD})
		}(i, u)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			var ise *inventory.InsufficientStockError
			require.ErrorAs(t, err, &ise)
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, int64(0), m.stockOf(1))
	assert.Equal(t, m.ledgerSum(1), m.stockOf(1))
}

func TestCheckoutBulkTierApplied(t *testing.T) {
	m := newMemStore()
	m.addSKU(1, 7, 20, 10000, "SHIRT-M")
	m.tiers[7] = []model.BulkDiscount{
		{VendorID: 7, MinQuantity: 5, DiscountBPs: 1000, IsActive: true},
		{VendorID: 7, MinQuantity: 10, DiscountBPs: 2000, IsActive: true},
	}
	userID := uint64(42)
	m.addCart(userID, m.cartLine(1, 7))
	svc := newService(m, nil, nil)

	res, err := svc.Checkout(context.Background(), Input{UserID: &userID, PaymentMethod: model.PaymentCOD})
	require.NoError(t, err)

	// 7 units clears the 5-unit 10% tier: 100.00 -> 90.00 per unit.
	assert.Equal(t, int64(63000), res.Order.SubtotalCents)
	assert.Equal(t, int64(63000), res.Order.TotalCents)
}
