package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableClampsAtZero(t *testing.T) {
	assert.Equal(t, int64(4), Available(10, 6))
	assert.Equal(t, int64(0), Available(10, 10))
	// Over-reservation can happen after a vendor shrinks stock under
	// existing holds; availability must not go negative.
	assert.Equal(t, int64(0), Available(5, 9))
}

// Mirrors the two-shopper scenario: stock 10, A holds 6, B asks for 5
// and is told only 4 remain, then succeeds with 4.
func TestCheckHoldCompetingShoppers(t *testing.T) {
	// Shopper A holds 6 of 10.
	require.NoError(t, CheckHold(1, 10, 0, 0, 6))

	// Shopper B requests 5 while A's 6 are held.
	err := CheckHold(1, 10, 6, 0, 5)
	require.Error(t, err)
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, uint64(1), ise.SKUID)
	assert.Equal(t, int64(5), ise.Requested)
	assert.Equal(t, int64(4), ise.Available)

	// B retries with 4 and succeeds; nothing is left afterwards.
	require.NoError(t, CheckHold(1, 10, 6, 0, 4))
	assert.Equal(t, int64(0), Available(10, 10))
}

// Upsizing an existing hold is evaluated against availability that
// excludes the shopper's own held quantity.
func TestCheckHoldExcludesOwnReservation(t *testing.T) {
	// Stock 10, shopper already holds 3, someone else holds 5.
	// Asking for 5 total must pass: 10 - (8-3) = 5 available to them.
	require.NoError(t, CheckHold(7, 10, 8, 3, 5))

	// Asking for 6 total must fail with available=5.
	err := CheckHold(7, 10, 8, 3, 6)
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(5), ise.Available)
}
