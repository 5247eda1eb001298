// Package inventory queries the external stock-lookup endpoint.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
)

const maxBodyBytes = 1 << 20

// Client fetches the quantity for one (product, store) pair. It does not
// retry and does not cache.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	cfg        model.InventoryConfig
	log        zerolog.Logger
}

// NewClient validates cfg and builds a client. A nil httpClient gets a
// default one; the per-call timeout is applied through the request context.
func NewClient(cfg model.InventoryConfig, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid inventory url %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QuantityField == "" {
		cfg.QuantityField = "stock"
	}
	if cfg.ProductParam == "" {
		cfg.ProductParam = "id"
	}
	if cfg.StoreParam == "" {
		cfg.StoreParam = "storeId"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, baseURL: u, cfg: cfg, log: logger}, nil
}

// Fetch returns the current quantity or an error of kind KindTransientFetch
// or KindMalformedResponse. A failure means "unknown", never zero.
func (c *Client) Fetch(ctx context.Context, key model.StockKey) (int, error) {
	if !key.Valid() {
		return 0, errx.InvalidArgument("product and store ids are required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(key), nil)
	if err != nil {
		return 0, errx.Transient(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errx.Transient(fmt.Errorf("get %s: %w", key, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return 0, errx.Transient(fmt.Errorf("get %s: unexpected status %d", key, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, errx.Transient(fmt.Errorf("read %s: %w", key, err))
	}

	qty, err := c.decodeQuantity(body)
	if err != nil {
		return 0, errx.Malformed(fmt.Errorf("decode %s: %w", key, err))
	}

	c.log.Debug().Str("product", key.ProductID).Str("store", key.StoreID).Int("quantity", qty).Msg("inventory lookup")
	return qty, nil
}

func (c *Client) requestURL(key model.StockKey) string {
	u := *c.baseURL
	q := u.Query()
	q.Set(c.cfg.ProductParam, key.ProductID)
	q.Set(c.cfg.StoreParam, key.StoreID)
	u.RawQuery = q.Encode()
	return u.String()
}

// decodeQuantity fails closed: a missing, null, quoted, fractional or
// negative field is an error, never a guess.
func (c *Client) decodeQuantity(body []byte) (int, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, err
	}
	raw, ok := payload[c.cfg.QuantityField]
	if !ok || string(raw) == "null" {
		return 0, fmt.Errorf("field %q missing", c.cfg.QuantityField)
	}

	// json.Number also accepts "7", so strings are rejected up front.
	if raw[0] == '"' {
		return 0, fmt.Errorf("field %q is a string, not a number", c.cfg.QuantityField)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("field %q is not a number: %w", c.cfg.QuantityField, err)
	}
	qty, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("field %q is not an integer: %w", c.cfg.QuantityField, err)
	}
	if qty < 0 {
		return 0, fmt.Errorf("field %q is negative: %d", c.cfg.QuantityField, qty)
	}
	return int(qty), nil
}
