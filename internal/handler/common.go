package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-checkout/internal/inventory"
	"github.com/iliyamo/marketplace-checkout/internal/repository"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// The JWT middleware stores the claim as whatever type the token carried, so
// several representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	return contextUint(c, "user_id")
}

// getVendorID extracts the vendor_id claim set for VENDOR accounts.
func getVendorID(c echo.Context) (uint64, error) {
	return contextUint(c, "vendor_id")
}

func contextUint(c echo.Context, key string) (uint64, error) {
	v := c.Get(key)
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid " + key + " in context")
}

// pathID parses a numeric path parameter, rejecting zero.
func pathID(c echo.Context, name string) (uint64, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}

// repoError translates repository and inventory sentinel errors into
// JSON responses. Shortages carry the live availability so clients
// can offer the shopper the remaining quantity.
func repoError(c echo.Context, err error) error {
	var short *inventory.InsufficientStockError
	switch {
	case errors.As(err, &short):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "insufficient stock",
			"sku_id":    short.SKUID,
			"requested": short.Requested,
			"available": short.Available,
		})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
