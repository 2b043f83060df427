package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/antonminaichev/zion-orders/internal/logger"
)

const DefaultEngineTimeout = 30 * time.Second

// EngineClient posts a signed body to the automation engine. It returns the
// upstream status and its decoded answer.
type EngineClient interface {
	Send(ctx context.Context, body []byte, signature, key string) (int, interface{}, error)
}

type HTTPEngineClient struct {
	Client *http.Client
	URL    string
}

func NewHTTPEngineClient(url string, timeout time.Duration) *HTTPEngineClient {
	if timeout <= 0 {
		timeout = DefaultEngineTimeout
	}
	return &HTTPEngineClient{Client: &http.Client{Timeout: timeout}, URL: url}
}

func (c *HTTPEngineClient) Send(ctx context.Context, body []byte, signature, key string) (int, interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)
	req.Header.Set("Idempotency-Key", key)

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, decodeAnswer(raw), nil
}

func decodeAnswer(raw []byte) interface{} {
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]string{"raw": string(raw)}
	}
	return data
}

// StorefrontClient tells the storefront that an order reached the customer.
type StorefrontClient interface {
	MarkDelivered(ctx context.Context, orderID string) error
}

type HTTPStorefrontClient struct {
	Client     *http.Client
	BaseURL    string
	UserToken  string
	UserSecret string
}

func (c *HTTPStorefrontClient) MarkDelivered(ctx context.Context, orderID string) error {
	if c.BaseURL == "" {
		logger.Log.InfoContext(ctx, "storefront API not configured, mark delivered skipped", "order_id", orderID)
		return nil
	}
	endpoint := fmt.Sprintf("%s/orders/%s/status", c.BaseURL, url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader([]byte(`{"status":"delivered"}`)))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Token", c.UserToken)
	req.Header.Set("User-Secret-Key", c.UserSecret)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
