// Package payments talks to the escrow payment gateway. Funds for an
// order are held by the gateway until the engine releases them to the
// provider's connected account.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	URL        string
	SecretKey  string
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("payments: URL is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("payments: SecretKey is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		secret:  cfg.SecretKey,
		http:    httpClient,
	}, nil
}

// Transfer is the gateway's record of a completed payout.
type Transfer struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"` // minor units
	Currency    string `json:"currency"`
	Reference   string `json:"transfer_group"`
	Created     int64  `json:"created"`
}

// ReleasePayment moves escrowed funds to the provider's connected
// account. Amount is in major units; the gateway speaks minor units.
func (c *Client) ReleasePayment(ctx context.Context, accountID string, amount decimal.Decimal, reference string) error {
	if accountID == "" {
		return fmt.Errorf("payments: destination account is required")
	}
	if !amount.IsPositive() {
		return fmt.Errorf("payments: amount must be positive, got %s", amount)
	}

	form := url.Values{}
	form.Set("amount", amount.Mul(decimal.NewFromInt(100)).Round(0).String())
	form.Set("currency", "usd")
	form.Set("destination", accountID)
	form.Set("transfer_group", reference)

	resp, err := c.post(ctx, "/v1/transfers", form)
	if err != nil {
		return err
	}
	return resp.Error()
}

// Account is the subset of the gateway's connected-account object the
// platform cares about.
type Account struct {
	ID             string `json:"id"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
	DetailsNeeded  bool   `json:"details_submitted"`
}

// RetrieveAccount reports whether a provider's connected account can
// receive payouts yet.
func (c *Client) RetrieveAccount(ctx context.Context, accountID string) (*Account, error) {
	resp, err := c.get(ctx, "/v1/accounts/"+accountID)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	var acct Account
	if err := json.Unmarshal(resp.Body, &acct); err != nil {
		return nil, fmt.Errorf("payments: decode account: %w", err)
	}
	return &acct, nil
}

// CreatePaymentIntent opens an escrow hold for a new order. The client
// secret goes back to the browser to confirm the charge.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, reference string) (string, error) {
	form := url.Values{}
	form.Set("amount", amount.Mul(decimal.NewFromInt(100)).Round(0).String())
	form.Set("currency", "usd")
	form.Set("metadata[order_id]", reference)

	resp, err := c.post(ctx, "/v1/payment_intents", form)
	if err != nil {
		return "", err
	}
	if err := resp.Error(); err != nil {
		return "", err
	}
	var out struct {
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("payments: decode intent: %w", err)
	}
	return out.ClientSecret, nil
}

type response struct {
	StatusCode int
	Body       []byte
}

func (r *response) Error() error {
	if r.StatusCode < 400 {
		return nil
	}
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(r.Body, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("payments: %s", errResp.Error.Message)
	}
	return fmt.Errorf("payments: status %d", r.StatusCode)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("payments: create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*response, error) {
	req.Header.Set("Authorization", "Bearer "+c.secret)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("payments: read response: %w", err)
	}
	return &response{StatusCode: resp.StatusCode, Body: body}, nil
}
