// Package payments holds the Stripe integration: a thin REST client
// for creating payment intents and the webhook signature and event
// parsing used to settle orders. Checkout depends only on the Gateway
// interface so tests can swap in a fake.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Intent is the slice of a Stripe payment intent the checkout flow
// needs: the id to settle against later and the client secret the
// frontend confirms with.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// Gateway creates payment intents. The zero implementation is the
// Stripe REST client below; tests use an in-memory fake.
type Gateway interface {
	CreateIntent(ctx context.Context, orderID string, amountCents int64, currency string) (*Intent, error)
}

// StripeClient talks to the Stripe API over HTTPS using the secret
// key. Only the payment_intents endpoint is used.
type StripeClient struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

// NewStripeClient returns a client bound to the live Stripe API.
func NewStripeClient(secretKey string) *StripeClient {
	return &StripeClient{
		secretKey: secretKey,
		baseURL:   "https://api.stripe.com",
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateIntent creates a payment intent for the given amount tagged
// with the order id in metadata, so the webhook can correlate the
// payment back to the order even without the stored intent id.
func (c *StripeClient) CreateIntent(ctx context.Context, orderID string, amountCents int64, currency string) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", currency)
	form.Set("metadata[order_id]", orderID)
	form.Set("automatic_payment_methods[enabled]", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stripe: create intent returned %d: %s", resp.StatusCode, body)
	}
	var intent Intent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}
