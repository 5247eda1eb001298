package presenter

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

	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
)

// WebhookDeliverer posts messages as JSON to an operator-side endpoint.
//
//	POST <url>        {"notification": {...}, "text": "..."}  -> {"message_ref": "..."}
//	PUT  <url>/<ref>  {"text": "..."}
//
// When the endpoint answers without a ref, one is generated.
type WebhookDeliverer struct {
	url     string
	timeout time.Duration
	client  *http.Client
	log     zerolog.Logger
}

type deliverRequest struct {
	Notification model.RestockNotification `json:"notification"`
	Text         string                    `json:"text"`
}

type deliverResponse struct {
	MessageRef string `json:"message_ref"`
}

type editRequest struct {
	Text string `json:"text"`
}

func NewWebhookDeliverer(cfg model.PresenterConfig, client *http.Client, logger zerolog.Logger) (*WebhookDeliverer, error) {
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid WEBHOOK_URL %q", cfg.WebhookURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDeliverer{
		url:     strings.TrimRight(cfg.WebhookURL, "/"),
		timeout: timeout,
		client:  client,
		log:     logger,
	}, nil
}

func (d *WebhookDeliverer) DeliverNotification(ctx context.Context, n model.RestockNotification, content string) (string, error) {
	body, err := d.send(ctx, http.MethodPost, d.url, deliverRequest{Notification: n, Text: content})
	if err != nil {
		return "", err
	}

	// A 2xx without a ref is a delivered message that cannot be edited later.
	var resp deliverResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			d.log.Warn().Err(err).Int64("notification_id", n.ID).Msg("webhook returned an unreadable body")
		}
	}
	return resp.MessageRef, nil
}

func (d *WebhookDeliverer) EditMessage(ctx context.Context, ref string, content string) error {
	if ref == "" {
		return errx.InvalidArgument("message ref is empty")
	}
	_, err := d.send(ctx, http.MethodPut, d.url+"/"+url.PathEscape(ref), editRequest{Text: content})
	return err
}

func (d *WebhookDeliverer) send(ctx context.Context, method, target string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(b))
	if err != nil {
		return nil, errx.Delivery(err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		return nil, errx.Delivery(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return nil, errx.Delivery(err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, errx.Delivery(fmt.Errorf("webhook %s %s: status %d", method, target, res.StatusCode))
	}
	return body, nil
}

var _ Deliverer = (*WebhookDeliverer)(nil)
