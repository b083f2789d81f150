package lava

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clearmarkhq/clearmark/internal/pkg/env"
)

// Client talks to the lava.top public gateway. Every call authenticates with
// the X-Api-Key header.
const defaultAPIBaseURL = "https://gate.lava.top"

type Client struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client
}

// CreateInvoiceRequest is the v3 invoice creation payload. Periodicity is
// only sent for subscription offers.
type CreateInvoiceRequest struct {
	Email           string `json:"email"`
	OfferID         string `json:"offerId"`
	Currency        string `json:"currency"`
	PaymentProvider string `json:"paymentProvider,omitempty"`
	PaymentMethod   string `json:"paymentMethod,omitempty"`
	Periodicity     string `json:"periodicity,omitempty"`
}

// Invoice is the provider's view of a freshly created payment: its order id,
// initial status and the URL the buyer is redirected to.
type Invoice struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PaymentURL string `json:"paymentUrl"`
}

func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("LAVA_API_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("LAVA_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateInvoice registers a payment with the provider and returns the order
// id plus the checkout URL for the buyer.
func (c *Client) CreateInvoice(ctx context.Context, in CreateInvoiceRequest) (*Invoice, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("LAVA_API_KEY is not configured")
	}
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.OfferID) == "" {
		return nil, errors.New("email and offer id are required")
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/api/v3/invoice", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("lava invoice creation failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out Invoice
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("invalid lava response: %w; body=%s", err, string(body))
	}
	if out.ID == "" {
		return nil, fmt.Errorf("lava response missing invoice id: body=%s", string(body))
	}
	return &out, nil
}

// CancelSubscription revokes a subscription contract on the provider side.
// The provider keys subscriptions by parent contract id and buyer email.
func (c *Client) CancelSubscription(ctx context.Context, parentContractID, buyerEmail string) error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("LAVA_API_KEY is not configured")
	}
	if strings.TrimSpace(parentContractID) == "" || strings.TrimSpace(buyerEmail) == "" {
		return errors.New("contract id and email are required")
	}

	q := url.Values{}
	q.Set("contractId", parentContractID)
	q.Set("email", buyerEmail)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.APIBaseURL+"/api/v1/subscriptions?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lava subscription cancel failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
