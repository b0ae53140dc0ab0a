// Package slipverify calls the external bank-slip verification API. The
// service is treated as unreliable: callers must never invoke it inside a
// database transaction.
package slipverify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable indicates the verification service could not be reached or
// returned a malformed response.
var ErrUnavailable = errors.New("slipverify: service unavailable")

// Result is the verification outcome. Raw preserves the provider's full
// response body for auditing and later re-inspection.
type Result struct {
	Verified     bool
	Amount       float64
	TransferDate *time.Time
	Raw          json.RawMessage
}

// Client wraps interactions with the slip verification API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type verifyRequest struct {
	SlipImage      string  `json:"slip_image"`
	ExpectedAmount float64 `json:"expected_amount"`
}

type verifyResponse struct {
	Verified     bool    `json:"verified"`
	Amount       float64 `json:"amount"`
	TransferDate *string `json:"transfer_date"`
}

// Verify submits the slip reference and expected amount and returns the
// provider's verdict. Network and decode failures wrap ErrUnavailable so
// callers can distinguish outage from a genuine rejection.
func (c *Client) Verify(ctx context.Context, slipRef string, expectedAmount float64) (Result, error) {
	payload, err := json.Marshal(verifyRequest{SlipImage: slipRef, ExpectedAmount: expectedAmount})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/v1/verify", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 500 {
		return Result{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("slipverify: request rejected with status %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	var decoded verifyResponse
	if err := json.NewDecoder(io.TeeReader(resp.Body, &buf)).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	result := Result{
		Verified: decoded.Verified,
		Amount:   decoded.Amount,
		Raw:      json.RawMessage(buf.Bytes()),
	}
	if decoded.TransferDate != nil {
		if ts, err := time.Parse(time.RFC3339, *decoded.TransferDate); err == nil {
			result.TransferDate = &ts
		}
	}
	return result, nil
}
