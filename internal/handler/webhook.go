package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/marketplace-checkout/internal/payments"
	"github.com/iliyamo/marketplace-checkout/internal/queue"
	"github.com/iliyamo/marketplace-checkout/internal/repository"
	queue_publisher "github.com/iliyamo/marketplace-checkout/internal/service"
)

// WebhookHandler settles orders from Stripe webhook deliveries. Every
// request must carry a valid Stripe-Signature header; unsigned or
// mis-signed payloads are rejected before anything is parsed. A redis
// dedup key per event id short-circuits redeliveries, and the status
// guard in the database makes settlement idempotent even when redis
// is down.
type WebhookHandler struct {
	OrderRepo *repository.OrderRepo
	Redis     *redis.Client
	Secret    string
}

// NewWebhookHandler constructs a WebhookHandler. Redis may be nil;
// dedup then falls back to the database guard alone.
func NewWebhookHandler(orderRepo *repository.OrderRepo, rdb *redis.Client, secret string) *WebhookHandler {
	if orderRepo == nil || secret == "" {
		panic("nil repository or empty secret passed to NewWebhookHandler")
	}
	return &WebhookHandler{OrderRepo: orderRepo, Redis: rdb, Secret: secret}
}

// HandleStripe handles POST /v1/payments/webhook. Only
// payment_intent.succeeded does work; every other event type is
// acknowledged and dropped. Responses are always 2xx for verified
// deliveries so Stripe stops retrying.
func (h *WebhookHandler) HandleStripe(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	sig := c.Request().Header.Get("Stripe-Signature")
	ev, err := payments.ParseEvent(payload, sig, h.Secret, payments.DefaultTolerance)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "signature verification failed"})
	}

	if ev.Type != "payment_intent.succeeded" {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	ctx := c.Request().Context()
	var dedupKey string
	if h.Redis != nil && ev.ID != "" {
		dedupKey = fmt.Sprintf("dedup:stripe:%s", ev.ID)
		set, err := h.Redis.SetNX(ctx, dedupKey, 1, 24*time.Hour).Result()
		if err == nil && !set {
			// already processed this delivery
			return c.JSON(http.StatusOK, echo.Map{"received": true, "duplicate": true})
		}
	}

	var intent payments.IntentObject
	if err := json.Unmarshal(ev.Data.Object, &intent); err != nil || intent.ID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed intent object"})
	}

	orderID, settled, err := h.OrderRepo.MarkPaidByIntent(ctx, intent.ID)
	if errors.Is(err, repository.ErrNotFound) {
		// Intent for an order we never stored: acknowledge so Stripe
		// does not retry forever, but flag it in the response.
		return c.JSON(http.StatusOK, echo.Map{"received": true, "unknown_intent": true})
	}
	if err != nil {
		// 5xx so Stripe redelivers; drop the dedup key so the retry
		// is not mistaken for a duplicate.
		if dedupKey != "" {
			_ = h.Redis.Del(ctx, dedupKey).Err()
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "settlement failed"})
	}

	if settled {
		order, err := h.OrderRepo.GetByID(ctx, orderID, nil)
		if err == nil {
			_ = queue_publisher.PublishPaymentConfirmed(ctx, queue.PaymentConfirmedEvent{
				OrderID:         orderID,
				PaymentIntentID: intent.ID,
				TotalCents:      order.TotalCents,
				ConfirmedAt:     time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true, "settled": settled})
}
