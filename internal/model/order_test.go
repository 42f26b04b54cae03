package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	allowed := [][2]string{
		{OrderPending, OrderPaid},
		{OrderPending, OrderCancelled},
		{OrderPaid, OrderProcessing},
		{OrderPaid, OrderCancelled},
		{OrderProcessing, OrderShipped},
		{OrderProcessing, OrderCancelled},
		{OrderShipped, OrderDelivered},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc[0], tc[1]), "%s -> %s", tc[0], tc[1])
	}

	// Skipped stages, backward moves, cancelling after shipment and
	// anything out of a terminal state are all denied.
	denied := [][2]string{
		{OrderPending, OrderShipped},
		{OrderPaid, OrderPending},
		{OrderShipped, OrderCancelled},
		{OrderDelivered, OrderShipped},
		{OrderCancelled, OrderPending},
		{OrderDelivered, OrderDelivered},
		{"bogus", OrderPaid},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc[0], tc[1]), "%s -> %s", tc[0], tc[1])
	}
}

func TestCanVendorTransitionExcludesSettlement(t *testing.T) {
	// The paid status only ever arrives through payment settlement.
	assert.False(t, CanVendorTransition(OrderPending, OrderPaid))
	assert.False(t, CanVendorTransition(OrderCancelled, OrderPaid))

	// Before settlement a vendor may only cancel.
	assert.True(t, CanVendorTransition(OrderPending, OrderCancelled))
	assert.False(t, CanVendorTransition(OrderPending, OrderProcessing))
	assert.False(t, CanVendorTransition(OrderPending, OrderShipped))

	// From paid onward the fulfillment moves match the shared table.
	assert.True(t, CanVendorTransition(OrderPaid, OrderProcessing))
	assert.True(t, CanVendorTransition(OrderPaid, OrderCancelled))
	assert.True(t, CanVendorTransition(OrderProcessing, OrderShipped))
	assert.True(t, CanVendorTransition(OrderShipped, OrderDelivered))
	assert.False(t, CanVendorTransition(OrderShipped, OrderCancelled))
	assert.False(t, CanVendorTransition(OrderDelivered, OrderShipped))
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, ValidPaymentMethod(PaymentStripe))
	assert.True(t, ValidPaymentMethod(PaymentCOD))
	assert.False(t, ValidPaymentMethod("wire"))
	assert.False(t, ValidPaymentMethod(""))
}
